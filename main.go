package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	chromem "github.com/philippgille/chromem-go"
	"github.com/subosito/gotenv"

	"github.com/palaverhq/palaver/adapters/broker"
	httpadapter "github.com/palaverhq/palaver/adapters/http"
	"github.com/palaverhq/palaver/adapters/llm"
	"github.com/palaverhq/palaver/adapters/memorystore"
	"github.com/palaverhq/palaver/adapters/notifier"
	"github.com/palaverhq/palaver/adapters/planner"
	memstore "github.com/palaverhq/palaver/adapters/storage/memory"
	sqlitestore "github.com/palaverhq/palaver/adapters/storage/sqlite"
	"github.com/palaverhq/palaver/adapters/tokenizer"
	"github.com/palaverhq/palaver/adapters/websocket"
	"github.com/palaverhq/palaver/config"
	"github.com/palaverhq/palaver/domain"
	"github.com/palaverhq/palaver/usecase"

	hashadapter "github.com/palaverhq/palaver/adapters/hasher"
)

func main() {
	gotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	geminiLlm, err := llm.NewGeminiClient(ctx, cfg.ChatModel)
	if err != nil {
		log.Fatalf("initializing llm client: %v", err)
	}

	var (
		sessionStore   domain.SessionStore
		messageStore   domain.MessageStore
		sessionCreator httpadapter.SessionCreator
	)
	switch cfg.StorageBackend {
	case "sqlite":
		store, err := sqlitestore.NewStore(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("initializing sqlite store: %v", err)
		}
		defer store.Close()
		sessionStore = store
		messageStore = store
		sessionCreator = store
	default:
		sessions := memstore.NewSessionStore()
		sessionStore = sessions
		sessionCreator = sessions
		messageStore = memstore.NewMessageStore()
	}

	var embedFn chromem.EmbeddingFunc
	if cfg.EmbeddingsBaseURL != "" {
		embedFn = chromem.NewEmbeddingFuncOpenAICompat(cfg.EmbeddingsBaseURL, cfg.EmbeddingsAPIKey, cfg.EmbeddingsModel, nil)
	} else {
		embedFn = chromem.NewEmbeddingFuncDefault()
	}
	memories, err := memorystore.New(cfg.VectorDataDir, embedFn)
	if err != nil {
		log.Fatalf("initializing memory store: %v", err)
	}

	eventBroker := broker.NewChannelBroker()
	defer eventBroker.Close()

	svc := usecase.NewResponseService(usecase.ResponseServiceDeps{
		Llm:       geminiLlm,
		Sessions:  sessionStore,
		Messages:  messageStore,
		Memories:  memories,
		Planner:   planner.NewClient(cfg.PlannerURL, cfg.PlannerTimeout),
		Notifier:  notifier.New(eventBroker),
		Tokenizer: tokenizer.New(),
		Hasher:    hashadapter.New(),
		Budget: usecase.BudgetConfig{
			CompletionTokenLimit:     cfg.CompletionTokenLimit,
			ResponseTokenReservation: cfg.ResponseTokenReservation,
			PlanWeight:               cfg.PlanWeight,
			SemanticMemoryWeight:     cfg.SemanticMemoryWeight,
			DocumentMemoryWeight:     cfg.DocumentMemoryWeight,
		},
		ChatProfile: domain.SamplingProfile{
			Temperature:      0.7,
			TopP:             1,
			FrequencyPenalty: 0.5,
			PresencePenalty:  0.5,
			MaxTokens:        cfg.ResponseTokenReservation,
		},
		Options: usecase.DefaultPromptOptions(),
		BotID:   cfg.BotID,
		BotName: cfg.BotName,
	})

	wsServer := websocket.NewServer(eventBroker)
	wsServer.RunHub()

	handler := httpadapter.NewChatHandler(svc, sessionCreator, messageStore, memories,
		cfg.APIKey, cfg.APISecret, cfg.JWTSecret, cfg.JWTExpiry)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	e.Use(middleware.BodyLimit("1MB"))

	// Websocket attach, same JWT gate as the HTTP API
	wsGroup := e.Group("/ws")
	wsGroup.Use(handler.JWTMiddleware)
	wsGroup.GET("", wsServer.Handler)

	api := e.Group("/api/v1")
	api.GET("/health", handler.HealthCheck)
	api.POST("/auth/token", handler.GenerateJWT)

	chats := api.Group("/chats")
	chats.Use(handler.JWTMiddleware)
	chats.POST("", handler.CreateChat)
	chats.GET("/:chatID/messages", handler.ListMessages)
	chats.POST("/:chatID/documents", handler.ImportDocument)

	generate := chats.Group("/:chatID/messages")
	generate.Use(handler.RateLimitMiddleware)
	generate.POST("", handler.SendMessage)

	log.Printf("Palaver listening on %s", cfg.ListenAddr)
	log.Fatal(e.Start(cfg.ListenAddr))
}
