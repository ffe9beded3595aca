package models

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 社群成員角色
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleMember    = "member"
)

// 社群訊息類型
const (
	MessageTypeText         = "text"
	MessageTypeTask         = "task"
	MessageTypeAchievement  = "achievement"
	MessageTypeAnnouncement = "announcement"
)

// Community 環保社群
type Community struct {
	Name        string    `gorm:"size:100;uniqueIndex" json:"name"`
	Description string    `json:"description"`
	CreatorID   uuid.UUID `gorm:"type:uuid;index" json:"creator_id"`
	IsPrivate   bool      `gorm:"default:false" json:"is_private"`
	JoinCode    string    `gorm:"size:8;uniqueIndex" json:"join_code"`
	MemberCount uint      `gorm:"default:1" json:"member_count"`
	Base
}

// BeforeCreate 建立時自動產生加入碼
func (c *Community) BeforeCreate(tx *gorm.DB) error {
	if err := c.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if c.JoinCode == "" {
		code, err := generateJoinCode()
		if err != nil {
			return err
		}
		c.JoinCode = code
	}
	return nil
}

const joinCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateJoinCode() (string, error) {
	code := make([]byte, 8)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(joinCodeChars))))
		if err != nil {
			return "", err
		}
		code[i] = joinCodeChars[n.Int64()]
	}
	return string(code), nil
}

// CommunityMembership 社群成員資格
type CommunityMembership struct {
	CommunityID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_community_user" json:"community_id"`
	UserID      uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_community_user" json:"user_id"`
	Role        string    `gorm:"size:20;default:member" json:"role"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	Base
}

// CommunityMessage 社群訊息。
// Metadata 為開放式 key-value 資料，目前使用的 key：
// action、screen、community_id、achievement_type、task_id
type CommunityMessage struct {
	CommunityID uuid.UUID         `gorm:"type:uuid;index" json:"community_id"`
	SenderID    uuid.UUID         `gorm:"type:uuid;index" json:"sender_id"`
	MessageType string            `gorm:"size:20;default:text" json:"message_type"`
	Content     string            `json:"content"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	IsPinned    bool              `gorm:"default:false" json:"is_pinned"`
	Base
}
