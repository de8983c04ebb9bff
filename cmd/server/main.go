package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/lead-intelligence/internal/api"
	"github.com/ignite/lead-intelligence/internal/cache"
	"github.com/ignite/lead-intelligence/internal/config"
	"github.com/ignite/lead-intelligence/internal/conversions"
	"github.com/ignite/lead-intelligence/internal/crm"
	"github.com/ignite/lead-intelligence/internal/llm"
	"github.com/ignite/lead-intelligence/internal/repository/postgres"
	"github.com/ignite/lead-intelligence/internal/scoring"
	"github.com/ignite/lead-intelligence/internal/storage"
)

func main() {
	log.Println("Lead Intelligence server starting")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.CRM.AccessToken == "" {
		log.Fatal("CRM access token not configured (set CRM_ACCESS_TOKEN)")
	}

	ctx := context.Background()

	crmClient := crm.NewClient(cfg.CRM.BaseURL, cfg.CRM.AccessToken, cfg.CRM.Timeout())

	var contactCache scoring.ContactCache
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Redis unavailable, contact caching disabled: %v", err)
		} else {
			contactCache = cache.NewContactCache(redisClient, cfg.Redis.TTL())
			log.Printf("Contact cache enabled (redis %s, ttl %s)", cfg.Redis.Addr, cfg.Redis.TTL())
		}
	}

	var conversionSource scoring.ConversionSource
	if cfg.Snowflake.Enabled {
		store, err := conversions.NewStore(conversions.Config{
			User:      cfg.Snowflake.User,
			Password:  cfg.Snowflake.Password,
			Account:   cfg.Snowflake.Account,
			Database:  cfg.Snowflake.Database,
			Schema:    cfg.Snowflake.Schema,
			Warehouse: cfg.Snowflake.Warehouse,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Snowflake: %v", err)
		}
		defer store.Close()
		conversionSource = store
		log.Println("Conversion history source: Snowflake")
	} else {
		log.Println("Snowflake not configured; pattern analysis and conversion metrics disabled")
	}

	provider := buildLLMProvider(ctx, cfg)

	engine := scoring.NewEngine(crmClient, crmClient, conversionSource, contactCache, provider)
	handlers := api.NewHandlers(engine)

	if cfg.Database.Enabled {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("Failed to ping database: %v", err)
		}
		handlers.SetRunRepo(postgres.NewScoringRunRepo(db))
		log.Println("Scoring run history enabled")
	}

	snapshots, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize snapshot storage: %v", err)
	}
	handlers.SetSnapshotStore(snapshots)
	log.Printf("Snapshot storage: %s", cfg.Storage.Type)

	router := api.SetupRoutes(handlers)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// buildLLMProvider picks the configured model backend. OpenAI wins when
// both are configured; nil means rules-only operation.
func buildLLMProvider(ctx context.Context, cfg *config.Config) scoring.LLMProvider {
	if cfg.OpenAI.Enabled {
		provider := llm.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		if cfg.OpenAI.BaseURL != "" {
			provider.SetBaseURL(cfg.OpenAI.BaseURL)
		}
		log.Println("LLM provider: OpenAI")
		return provider
	}
	if cfg.Bedrock.Enabled {
		provider, err := llm.NewBedrockProvider(ctx, cfg.Bedrock.ModelID, cfg.Bedrock.Region)
		if err != nil {
			log.Printf("Bedrock provider unavailable, falling back to rules-only scoring: %v", err)
			return nil
		}
		log.Println("LLM provider: AWS Bedrock")
		return provider
	}
	log.Println("No LLM provider configured; rules-only scoring")
	return nil
}
