package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/yungbote/tutorbridge-backend/internal/clients/gcp"
	"github.com/yungbote/tutorbridge-backend/internal/clients/redis"
	"github.com/yungbote/tutorbridge-backend/internal/data/db"
	"github.com/yungbote/tutorbridge-backend/internal/data/repos"
	tutorhttp "github.com/yungbote/tutorbridge-backend/internal/http"
	httpH "github.com/yungbote/tutorbridge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/tutorbridge-backend/internal/http/middleware"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/envutil"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
	"github.com/yungbote/tutorbridge-backend/internal/platform/openai"
	"github.com/yungbote/tutorbridge-backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	checkpointRepo := repos.NewCheckpointRepo(thePG, log)
	documentRepo := repos.NewDocumentRepo(thePG, log)

	// Clients
	log.Info("Setting up clients...")
	turnLock, err := redis.NewTurnLock(log)
	if err != nil {
		log.Warn("Redis turn lock unavailable, using in-process lock", "error", err)
		turnLock = redis.NewLocalTurnLock()
	}
	defer turnLock.Close()

	var stt gcp.Speech
	if envutil.Bool("SPEECH_ENABLED", true) {
		stt, err = gcp.NewSpeech(log)
		if err != nil {
			log.Warn("Speech client unavailable, audio turns will use client transcripts", "error", err)
			stt = nil
		} else {
			defer stt.Close()
		}
	}

	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up services...")
	documentService := services.NewDocumentService(thePG, log, documentRepo)
	answerService := services.NewAnswerService(log, openaiClient)
	quizEngine := services.NewQuizEngine(log, openaiClient)
	ingestService := services.NewIngestService(log, stt)
	routerService := services.NewRouterService(log, documentService)
	turnService := services.NewTurnService(log, checkpointRepo, turnLock, ingestService, routerService, quizEngine, answerService, documentService)

	// HTTP
	server := tutorhttp.NewServer(tutorhttp.RouterConfig{
		Log:             log,
		AuthMiddleware:  httpMW.NewAuthMiddleware(log),
		TurnHandler:     httpH.NewTurnHandler(turnService),
		ThreadHandler:   httpH.NewThreadHandler(checkpointRepo),
		DocumentHandler: httpH.NewDocumentHandler(documentRepo),
		HealthHandler:   httpH.NewHealthHandler(),
	})

	addr := ":" + envutil.Str("PORT", "8080")
	log.Info("Starting server", "addr", addr)
	if err := server.Run(addr); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
