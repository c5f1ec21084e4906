package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/mmlink/ispbot-backend/database"
	"github.com/mmlink/ispbot-backend/internal/config"
	"github.com/mmlink/ispbot-backend/internal/handlers"
	"github.com/mmlink/ispbot-backend/internal/jobs"
	"github.com/mmlink/ispbot-backend/internal/routes"
	"github.com/mmlink/ispbot-backend/internal/services"
	"github.com/mmlink/ispbot-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			if err := godotenv.Load("environments/.env.development"); err != nil {
				log.Println("⚠️  No .env file found - checking environment variables")
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize storage
	var store storage.Store
	storageKind := "PostgreSQL Database"
	if cfg.UseMemoryStore {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
		storageKind = "In-Memory (Testing)"
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		db, err := database.Connect(cfg.Database)
		if err != nil {
			log.Fatal(err)
		}
		if err := database.Migrate(db); err != nil {
			log.Fatal(err)
		}
		store = storage.NewDatabaseStore(db)
		log.Println("✅ Using PostgreSQL database storage")
	}
	defer store.Close()

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.SeedPackages(seedCtx, store); err != nil {
		log.Fatal("Failed to seed packages:", err)
	}
	cancelSeed()

	// Outbound WhatsApp
	var outbound services.Outbound = services.LogOutbound{}
	if cfg.Twilio.Configured() {
		twilioService, err := services.NewTwilioService(cfg.Twilio)
		if err != nil {
			log.Fatal("Failed to initialize Twilio service:", err)
		}
		outbound = twilioService
		log.Println("✅ Twilio service initialized")
	} else {
		log.Println("⚠️  Twilio credentials not found - replies will only be logged")
	}

	// Conversation engine
	sessions := services.NewSessionManager(store, cfg.StoreTimeout)
	ai := services.NewOpenAIResponder(cfg.AI)

	registration, err := services.NewRegistrationWorkflow(sessions, services.DefaultValidators(store, cfg.Timezone, time.Now), store, store)
	if err != nil {
		log.Fatal("Failed to build registration workflow:", err)
	}
	payment := services.NewPaymentWorkflow(sessions, store, store, store)
	diagnostics := services.NewDiagnosticsWorkflow(sessions, store, store, services.NewSpeedtestNetMeter(), outbound, cfg.SpeedTestTimeout, cfg.Timezone)
	chat := services.NewChatWorkflow(sessions, store, store, ai)

	router, err := services.NewRouter(services.RouterDeps{
		Sessions:   sessions,
		Workflows:  []services.Workflow{registration, payment, diagnostics, chat},
		Payments:   payment,
		History:    diagnostics,
		Relay:      chat,
		AI:         ai,
		Outbound:   outbound,
		MaxRetries: cfg.MaxVersionRetries,
	})
	if err != nil {
		log.Fatal("Failed to build message router:", err)
	}
	dispatcher := services.NewDispatcher(router, cfg.Workers, cfg.QueueSize, cfg.MessageTimeout)
	operators := services.NewOperatorService(store, store, store, outbound, cfg.JWTSecret, cfg.JWTTTL)

	sweeper := jobs.NewSessionSweeper(store, cfg.SessionTTL, cfg.SweepInterval, cfg.StoreTimeout)
	sweeper.Start()

	log.Println("✅ All services initialized and scheduled jobs started")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "MMLink ISP Bot v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, cfg, routes.Handlers{
		WhatsApp: handlers.NewWhatsAppHandler(dispatcher, router, cfg.MessageTimeout),
		Support:  handlers.NewSupportHandler(operators),
		Payments: handlers.NewPaymentHandler(operators),
		Health:   handlers.NewHealthHandler(version, storageKind, cfg.Twilio.Configured(), cfg.AI.APIKey != "", store),
		Tokens:   operators,
	})

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Shutting down server...")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 MMLink ISP Bot starting on port %s", cfg.Port)
	log.Printf("📊 Storage: %s", storageKind)
	log.Printf("🌍 Environment: %s", cfg.Environment)
	log.Printf("📱 WhatsApp: %s", configured(cfg.Twilio.Configured()))
	log.Printf("🤖 AI answers: %s", configured(cfg.AI.APIKey != ""))
	log.Println("========================================")

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("❌ Server stopped: %v", err)
	}

	log.Println("⏹️  Draining in-flight messages...")
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.MessageTimeout)
	defer cancelDrain()
	if err := dispatcher.Shutdown(drainCtx); err != nil {
		log.Printf("⚠️  Some messages were not processed: %v", err)
	}
	log.Println("⏹️  Stopping session sweeper...")
	sweeper.Stop()
	log.Println("👋 Bye")
}

func configured(ok bool) string {
	if !ok {
		return "Not configured"
	}
	return "Configured"
}
