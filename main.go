package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saish660/Ecotrack-App/auth"
	"github.com/saish660/Ecotrack-App/config"
	"github.com/saish660/Ecotrack-App/controllers"
	"github.com/saish660/Ecotrack-App/routes"
	"github.com/saish660/Ecotrack-App/services"
)

func main() {
	dispatchOnce := flag.Bool("dispatch", false, "執行一次推播排程後結束")
	flag.Parse()

	config.InitDB()

	ctx := context.Background()

	firebaseService, err := services.NewFirebaseService(ctx, config.DB, os.Getenv("FIREBASE_SERVICE_ACCOUNT_KEY"))
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	var composer services.Composer
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		composer, err = services.NewGeminiComposer(ctx, apiKey)
		if err != nil {
			log.Printf("Gemini client unavailable, using static messages: %v", err)
			composer = &services.StaticComposer{}
		}
	} else {
		log.Printf("GEMINI_API_KEY not set, using static messages")
		composer = &services.StaticComposer{}
	}

	dispatchService := services.NewDispatchService(config.DB, firebaseService, composer)
	if timeout := os.Getenv("DISPATCH_SEND_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			dispatchService.SendTimeout = d
		} else {
			log.Printf("Invalid DISPATCH_SEND_TIMEOUT %q, using default", timeout)
		}
	}

	serverLocation := time.Local
	if tz := os.Getenv("TIME_ZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			log.Fatalf("Invalid TIME_ZONE %q: %v", tz, err)
		}
		serverLocation = loc
	}

	if *dispatchOnce {
		report := dispatchService.Run(ctx, time.Now().In(serverLocation))
		log.Printf("Dispatch finished: slot=%s %s candidates=%d sent=%d failed=%d",
			report.Date, report.Time, report.TotalCandidates, report.Sent, report.Failed)
		return
	}

	controllers.SetDB(config.DB)
	controllers.SetupDeviceController(services.NewDeviceService(config.DB, firebaseService))
	controllers.SetupNotificationController(config.DB, firebaseService)
	controllers.SetupDispatchController(dispatchService, os.Getenv("CRON_SECRET"), serverLocation)
	auth.SetAPIKeyMiddlewareDB(config.DB)

	router := gin.Default()
	routes.SetupRouter(router)

	if err := router.Run(":8080"); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
