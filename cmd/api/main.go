package main

import (
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	config "github.com/mindmates/backend/configs"
	"github.com/mindmates/backend/database"
	"github.com/mindmates/backend/handlers"
	"github.com/mindmates/backend/jobs"
	"github.com/mindmates/backend/middleware"
	"github.com/mindmates/backend/routes"
	"github.com/mindmates/backend/services"
	"github.com/mindmates/backend/store"
	"github.com/mindmates/backend/websocket"
	"github.com/robfig/cron/v3"
)

func main() {
	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()

	var rdb *redis.Client
	if addr := config.Config("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.Config("REDIS_PASSWORD"),
		})
		log.Println("✅ Redis token blacklist enabled")
	} else {
		log.Println("Warning: REDIS_ADDR not set, token blacklist disabled")
	}
	middleware.SetBlacklistClient(rdb)

	tokenService := services.NewTokenService(config.Config("JWT_SECRET"), 72*time.Hour, rdb)
	fileService, err := services.NewFileService(config.Config("CLOUDINARY_URL"))
	if err != nil {
		log.Fatalf("🔥 Failed to initialize Cloudinary: %v", err)
	}

	messageStore := store.NewMessageStore(database.DB)
	communityStore := store.NewCommunityStore(database.DB)

	hub := websocket.NewHub()
	gateway := websocket.NewGateway(hub, tokenService, fileService, messageStore, communityStore, websocket.Config{
		BroadcastReadReceipts: config.ConfigBool("BROADCAST_READ_RECEIPTS"),
	})

	handlers.Setup(hub, gateway, tokenService, fileService, messageStore, communityStore)

	c := cron.New()
	c.AddFunc("0 3 * * *", jobs.PurgeDeletedMessages)
	go c.Start()
	log.Println("✅ Cron job for message retention scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "MindMates",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to MindMates API",
		})
	})

	routes.AuthRoutes(app)
	routes.ProfileRoutes(app)
	routes.MessagingRoutes(app)
	routes.CommunityRoutes(app)
	routes.ForumRoutes(app)
	routes.UploadRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	port := config.ConfigOr("PORT", "8080")
	log.Printf("✅ Server is running on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
