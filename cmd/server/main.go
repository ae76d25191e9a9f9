package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/api/handlers"
	"github.com/postpilot/postpilot/internal/api/middleware"
	job "github.com/postpilot/postpilot/internal/jobs"
	"github.com/postpilot/postpilot/internal/platform"
	"github.com/postpilot/postpilot/internal/queue"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	asynqClient := asynq.NewClient(redisConn)
	defer asynqClient.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	profileRepo := repository.NewProfileRepository(db)
	oauthStateRepo := repository.NewOAuthStateRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	postRepo := repository.NewPostRepository(db)
	postScheduleRepo := repository.NewPostScheduleRepository(db)
	publishJobRepo := repository.NewPublishJobRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)

	adapters := platform.NewRegistry(*cfg)
	taskClient := queue.NewClient(asynqClient)

	connectionService := service.NewConnectionService(*cfg, adapters, oauthStateRepo, socialAccountRepo, profileRepo)
	accountService := service.NewAccountService(socialAccountRepo, profileRepo)
	storageService := service.NewStorageService(*cfg)
	postService := service.NewPostService(db, postRepo, postScheduleRepo, socialAccountRepo, mediaAssetRepo, profileRepo, storageService)
	schedulerService := service.NewSchedulerService(*cfg, adapters, publishJobRepo, postScheduleRepo, socialAccountRepo, postRepo, taskClient)
	generateService := service.NewGenerateService(*cfg)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	connection := handlers.NewConnectionHandler(*cfg, connectionService, accountService)
	app.Get("/oauth/:platform/callback", connection.Callback)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	api.Post("/connect", connection.Connect)
	api.Get("/accounts", connection.ListSocialAccounts)
	api.Post("/accounts/remove", connection.DeleteSocialAccount)

	post := handlers.NewPostHandler(postService)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/info", post.PostInfo)
	api.Post("/posts/remove", post.RemovePost)
	api.Get("/schedules", post.ListSchedules)

	generate := handlers.NewGenerateHandler(generateService)
	api.Post("/generate", generate.GenerateContent)

	// cron jobs
	tickJob := job.NewSchedulerTickJob(schedulerService, connectionService)
	refreshTokenJob := job.NewTokenRefreshJob(*cfg, socialAccountRepo, adapters)

	c := cron.New()
	c.AddFunc("@every 00h01m00s", tickJob.Tick)
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		worker := queue.NewWorker(schedulerService)
		mux.HandleFunc(queue.TaskTypePublishJob, worker.HandlePublishJobTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
