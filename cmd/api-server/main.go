// Package main API Server 入口
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

	"advisors-admin/internal/apiserver/server"
	"advisors-admin/internal/config"
	"advisors-admin/internal/engine"
	"advisors-admin/internal/provider"
	"advisors-admin/internal/shared/cache"
	"advisors-admin/internal/shared/infra"
	"advisors-admin/internal/shared/model"
	"advisors-admin/internal/shared/storage/dbutil"
	"advisors-admin/internal/shared/storage/driver/postgres"
	"advisors-admin/internal/shared/storage/driver/sqlite"
	"advisors-admin/internal/shared/storage/repository"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换数据库和 Redis）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	// 初始化持久化存储（SQLite 或 PostgreSQL）
	db, dialect, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := dialect.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	store := repository.NewStore(db, dialect)
	log.Printf("Connected to %s", cfg.DBDriver)

	// 组装基础设施（存储 + 缓存 + 事件总线）
	// Redis 未启用时缓存退化为 NoOp，切换事件只推本实例的连接
	stack := &infra.Infrastructure{
		Storage: store,
		Cache:   cache.NewNoOpCache(),
	}
	if cfg.RedisOn {
		redisInfra, err := infra.NewRedisInfra(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		stack.Cache = redisInfra.Cache()
		stack.EventBus = redisInfra.EventBus()
		log.Println("Connected to Redis")
	}
	defer func() {
		if err := stack.Close(); err != nil {
			log.Printf("Infrastructure close error: %v", err)
		}
	}()

	// 初始化模型供应商（嵌入路径带缓存）
	completer, embedder := buildProviders(cfg)
	cachedEmbedder := provider.NewCachedEmbedder(embedder, stack.Cache, 0)

	// 初始化路由引擎
	eng, err := engine.New(engineConfig(cfg), cachedEmbedder, completer, store, nil)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	// 从仓储恢复自定义角色、触发模式和记忆
	if err := restoreState(eng, store); err != nil {
		log.Fatalf("Failed to restore state: %v", err)
	}

	// 切换后刷新会话快照缓存（运维查询用，允许短暂滞后）
	if cfg.RedisOn {
		eng.OnSwitch(func(sessionID string, _ model.SwitchEvent) {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				session, err := eng.GetSession(sessionID)
				if err != nil {
					return
				}
				if err := stack.Cache.SetSessionSnapshot(ctx, session, 0); err != nil {
					log.Printf("session snapshot write failed: %v", err)
				}
			}()
		})
	}

	h := server.NewHandler(eng, stack.EventBus)

	// 启动后台维护（过期记忆清理）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.StartMaintenance(ctx, cfg.Memory.SweepInterval.Std())

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

// openDatabase 按配置的驱动打开数据库
func openDatabase(cfg *config.Config) (*sql.DB, dbutil.Dialect, error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return db, postgres.NewDialect(), nil
	default: // sqlite
		db, err := sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return db, sqlite.NewDialect(), nil
	}
}

// buildProviders 构建补全和嵌入供应商
//
// mock 始终可用；openai/anthropic 只在配置了 API Key 时注册。
// 指定的供应商不可用时回退 mock（本地开发无 Key 的场景）。
// Anthropic 无嵌入接口，嵌入供应商需单独指定。
func buildProviders(cfg *config.Config) (provider.Provider, provider.Provider) {
	registry := provider.NewRegistry()
	registry.Register(provider.NewMock())

	if cfg.OpenAIAPIKey != "" {
		registry.Register(provider.NewOpenAI(provider.OpenAIConfig{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.Provider.OpenAI.BaseURL,
			Model:          cfg.Provider.OpenAI.Model,
			EmbeddingModel: cfg.Provider.OpenAI.EmbeddingModel,
			Timeout:        cfg.Provider.OpenAI.Timeout.Std(),
		}))
	}
	if cfg.AnthropicAPIKey != "" {
		registry.Register(provider.NewAnthropic(provider.AnthropicConfig{
			APIKey:    cfg.AnthropicAPIKey,
			BaseURL:   cfg.Provider.Anthropic.BaseURL,
			Model:     cfg.Provider.Anthropic.Model,
			MaxTokens: cfg.Provider.Anthropic.MaxTokens,
			Timeout:   cfg.Provider.Anthropic.Timeout.Std(),
		}))
	}

	completer, ok := registry.Get(cfg.Provider.Default)
	if !ok {
		log.Printf("provider %q not available, falling back to mock", cfg.Provider.Default)
		completer, _ = registry.Get("mock")
	}
	embedder, ok := registry.Get(cfg.Provider.Embedder)
	if !ok || cfg.Provider.Embedder == "anthropic" {
		log.Printf("embedder %q not available, falling back to mock", cfg.Provider.Embedder)
		embedder, _ = registry.Get("mock")
	}

	log.Printf("Providers: completer=%s embedder=%s", completer.Name(), embedder.Name())
	return completer, embedder
}

// engineConfig 把应用配置映射为引擎配置
func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		HysteresisRatio:      cfg.Routing.HysteresisRatio,
		DiversityBonusWeight: float64(cfg.Routing.DiversityBonusWeight),
		MaxInheritanceDepth:  cfg.Routing.MaxInheritanceDepth,
		TTL: engine.MemoryTTL{
			Session:   cfg.Memory.TTLSession.Std(),
			User:      cfg.Memory.TTLUser.Std(),
			Knowledge: cfg.Memory.TTLKnowledge.Std(),
		},
		SearchWeights: engine.SearchWeights{
			Similarity:    cfg.Memory.SimilarityWeight,
			Importance:    cfg.Memory.ImportanceWeight,
			Recency:       cfg.Memory.RecencyWeight,
			RecencyWindow: cfg.Memory.RecencyWindow.Std(),
		},
		SearchLimit: cfg.Memory.SearchLimit,
	}
}

// restoreState 从仓储加载并恢复引擎状态
func restoreState(eng *engine.Engine, store *repository.Store) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	roles, err := store.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	triggers, err := store.ListTriggers(ctx)
	if err != nil {
		return fmt.Errorf("list triggers: %w", err)
	}
	memories, err := store.ListMemories(ctx)
	if err != nil {
		return fmt.Errorf("list memories: %w", err)
	}

	if err := eng.LoadState(roles, triggers, memories); err != nil {
		return err
	}
	log.Printf("Restored state: %d roles, %d triggers, %d memories",
		len(roles), len(triggers), len(memories))
	return nil
}
