// Package main runs the Conversation Service: HTTP API, persistence, the
// cost multiplier and the LLM proxy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paidchat/internal/chatservice"
	"paidchat/internal/config"
	"paidchat/internal/httpapi"
	"paidchat/internal/llm"
	llmstub "paidchat/internal/llm/stub"
	"paidchat/internal/storage"
	chstore "paidchat/internal/storage/clickhouse"
	"paidchat/internal/storage/memory"
	"paidchat/internal/storage/migrations"
	pgstore "paidchat/internal/storage/postgres"
)

// stores holds the storage implementations the service needs.
type stores struct {
	users     storage.UserStore
	agents    storage.AgentStore
	messages  storage.MessageStore
	costs     storage.CostStore
	exchanges storage.ExchangeStore
	ready     func(ctx context.Context) error
}

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if err := config.LoadDotEnv(); err != nil {
		logger.Printf("Ignoring .env: %v", err)
	}

	addr := flag.String("addr", config.Env("PAIDCHAT_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional analytics)")
	useMemory := flag.Bool("use-memory", config.EnvBool("PAIDCHAT_USE_MEMORY", false), "Use in-memory storage instead of PostgreSQL")
	skipMigrations := flag.Bool("skip-migrations", false, "Do not apply database migrations on startup")
	geminiKey := flag.String("gemini-api-key", os.Getenv("GEMINI_API_KEY"), "Gemini API key (stub responder when empty)")
	geminiModel := flag.String("gemini-model", config.Env("GEMINI_MODEL", llm.DefaultGeminiModel), "Gemini model name")
	stubReply := flag.String("stub-reply", "I can't say that, but nice try!", "Reply of the stub responder")
	replyTimeout := flag.Duration("reply-timeout", config.EnvDuration("PAIDCHAT_REPLY_TIMEOUT", chatservice.DefaultReplyTimeout), "Hard timeout for agent replies")
	pgMaxConns := flag.Int("pg-max-conns", config.EnvInt("POSTGRES_MAX_CONNS", 10), "PostgreSQL pool size")
	flag.Parse()

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, storeConfig{
		postgresDSN:    *postgresDSN,
		clickhouseDSN:  *clickhouseDSN,
		useMemory:      *useMemory,
		skipMigrations: *skipMigrations,
		maxConns:       int32(*pgMaxConns),
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	responder, closeResponder, err := createResponder(ctx, *geminiKey, *geminiModel, *stubReply, logger)
	if err != nil {
		logger.Fatalf("Failed to create responder: %v", err)
	}
	defer closeResponder()

	svc, err := chatservice.New(chatservice.Options{
		Users:        st.users,
		Agents:       st.agents,
		Messages:     st.messages,
		Costs:        st.costs,
		Exchanges:    st.exchanges,
		Responder:    responder,
		ReplyTimeout: *replyTimeout,
		Logger:       log.New(os.Stdout, "[chat] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("Failed to create service: %v", err)
	}
	if err := svc.SeedDefaultAgent(ctx); err != nil {
		logger.Fatalf("Failed to seed default agent: %v", err)
	}

	srv := &http.Server{
		Addr: *addr,
		Handler: httpapi.NewRouter(httpapi.Options{
			Backend: svc,
			Ready:   st.ready,
			Logger:  log.New(os.Stdout, "[http] ", log.LstdFlags),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-errCh:
		logger.Printf("HTTP server error: %v", err)
	}

	go func() {
		sig := <-sigCh
		logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Graceful shutdown failed: %v", err)
	}
	logger.Println("Shutdown complete")
}

type storeConfig struct {
	postgresDSN    string
	clickhouseDSN  string
	useMemory      bool
	skipMigrations bool
	maxConns       int32
}

// createStores creates the configured stores. ClickHouse is optional; without
// it exchanges are not recorded.
func createStores(ctx context.Context, cfg storeConfig, logger *log.Logger) (*stores, func(), error) {
	if cfg.useMemory {
		users := memory.NewUserStore()
		logger.Println("Using in-memory storage")
		return &stores{
			users:     users,
			agents:    memory.NewAgentStore(),
			messages:  memory.NewMessageStore(users),
			costs:     memory.NewCostStore(),
			exchanges: memory.NewExchangeStore(),
		}, func() {}, nil
	}

	if !cfg.skipMigrations {
		if err := migrations.RunPostgresMigrations(ctx, cfg.postgresDSN); err != nil {
			return nil, nil, err
		}
		logger.Println("PostgreSQL migrations applied")
	}

	pool, err := pgstore.NewPool(ctx, cfg.postgresDSN, pgstore.PoolConfig{MaxConns: cfg.maxConns})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	st := &stores{
		users:    pgstore.NewUserStore(pool),
		agents:   pgstore.NewAgentStore(pool),
		messages: pgstore.NewMessageStore(pool),
		costs:    pgstore.NewCostStore(pool),
		ready:    pool.Ping,
	}
	cleanup := func() { pool.Close() }

	if cfg.clickhouseDSN == "" {
		logger.Println("No ClickHouse DSN, exchange analytics disabled")
		return st, cleanup, nil
	}

	var chConn *chstore.Conn
	if cfg.skipMigrations {
		chConn, err = chstore.NewConn(ctx, cfg.clickhouseDSN)
	} else {
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.clickhouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	st.exchanges = chstore.NewExchangeStore(chConn)

	return st, func() {
		chConn.Close()
		pool.Close()
	}, nil
}

func createResponder(ctx context.Context, apiKey, model, stubReply string, logger *log.Logger) (llm.Responder, func(), error) {
	if apiKey == "" {
		logger.Println("No Gemini API key, using stub responder")
		return llmstub.NewResponder(stubReply), func() {}, nil
	}
	g, err := llm.NewGemini(ctx, apiKey, llm.WithModel(model))
	if err != nil {
		return nil, nil, err
	}
	return g, func() { _ = g.Close() }, nil
}
