package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/ragserver/config"
	"github.com/mohammad-safakhou/ragserver/internal/chat"
	"github.com/mohammad-safakhou/ragserver/internal/conversation"
	"github.com/mohammad-safakhou/ragserver/internal/identity"
	"github.com/mohammad-safakhou/ragserver/internal/persist"
	"github.com/mohammad-safakhou/ragserver/internal/rag"
	"github.com/mohammad-safakhou/ragserver/internal/runtime"
	"github.com/mohammad-safakhou/ragserver/internal/store"
	"github.com/mohammad-safakhou/ragserver/tools/websearch"
)

// Run wires the full pipeline and serves it. Postgres and the document
// index are best effort: the server starts without them and reports their
// absence via /api/status and per-request errors. Redis, when selected as
// the conversation backend, is required because history would be lost
// silently without it.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	// Durable mirror is optional. A missing or unreachable Postgres only
	// disables persistence; answering still works from the live store.
	var st *store.Store
	if cfg.Databases.Postgres.Configured() {
		dsn := cfg.Databases.Postgres.DSN()
		if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
			baseLogger.Printf("migrations failed, continuing without durable store: %v", err)
		} else {
			var err error
			st, err = store.NewWithDSN(ctx, dsn)
			if err != nil {
				baseLogger.Printf("postgres unavailable, continuing without durable store: %v", err)
				st = nil
			}
		}
	}

	// Live conversation store.
	var convOpts []conversation.StoreOption
	storeType := conversation.StoreType(cfg.Conversation.Store)
	if storeType == "" {
		storeType = conversation.MemoryStore
	}
	if storeType == conversation.RedisStore {
		if cfg.Databases.Redis.Host == "" {
			return fmt.Errorf("redis conversation store selected but databases.redis.host is empty")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Databases.Redis.Addr(),
			Password: cfg.Databases.Redis.Password,
			DB:       cfg.Databases.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Databases.Redis.Addr(), err)
		}
		convOpts = append(convOpts, conversation.WithRedisClient(rdb))
	}
	conv, err := conversation.NewStore(storeType, convOpts...)
	if err != nil {
		return err
	}

	var users identity.UserRegistry
	if st != nil {
		users = st
	}
	mode := identity.Mode(cfg.Auth.Mode)
	if mode == "" {
		mode = identity.ModePlain
	}
	resolver, err := identity.NewResolver(mode, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, conv, users, nil)
	if err != nil {
		return err
	}

	if cfg.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("openai api key not configured (providers.openai.api_key)")
	}
	completer, err := rag.NewOpenAICompleter(
		cfg.Providers.OpenAI.APIKey,
		cfg.Providers.OpenAI.BaseURL,
		cfg.Providers.OpenAI.CompletionModel,
		cfg.Providers.OpenAI.Temperature,
		cfg.Providers.OpenAI.MaxTokens,
		cfg.Providers.OpenAI.Timeout,
	)
	if err != nil {
		return err
	}

	engine := rag.NewEngine(rag.Config{
		DocsFolder:   cfg.Documents.Folder,
		IndexPath:    cfg.Documents.IndexPath,
		ChunkSize:    cfg.Documents.ChunkSize,
		ChunkOverlap: cfg.Documents.ChunkOverlap,
		TopK:         cfg.Documents.TopK,
	}, completer, nil)
	if err := engine.OpenOrBuild(); err != nil {
		baseLogger.Printf("document index unavailable at startup: %v", err)
	}

	var searcher websearch.WebSearcher
	if cfg.WebSearch.Enabled {
		searcher, err = websearch.NewWebSearcher(websearch.Provider(cfg.WebSearch.Provider), cfg.WebSearch.APIKey)
		if err != nil {
			return err
		}
	}
	orch := rag.NewOrchestrator(engine, searcher, cfg.WebSearch.MaxResults, nil)

	var durable persist.DurableStore
	if st != nil {
		durable = st
	}
	syncer := persist.NewSyncer(durable, 0, nil)

	svc := chat.NewService(resolver, conv, cfg.Conversation.HistoryWindow, orch, syncer, nil)

	tokenMode := mode == identity.ModeToken
	api := e.Group("/api")
	auth := &AuthHandler{Service: svc, TokenMode: tokenMode}
	auth.Register(api.Group("/auth"))
	chatGroup := api.Group("")
	if tokenMode {
		chatGroup.Use(runtime.EchoAuthMiddleware([]byte(cfg.Auth.JWTSecret)))
	}
	ch := &ChatHandler{
		Service:    svc,
		TokenMode:  tokenMode,
		IndexReady: engine.Ready,
		WebEnabled: cfg.WebSearch.Enabled,
	}
	ch.Register(chatGroup, api)

	if addr == "" {
		addr = cfg.General.Listen
		if addr == "" {
			addr = ":8000"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
