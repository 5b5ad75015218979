package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docqa/internal/ai"
	appsvc "docqa/internal/app"
	"docqa/internal/cache"
	"docqa/internal/config"
	"docqa/internal/embedder"
	mysqlClient "docqa/internal/platform/mysql"
	rabbitmqClient "docqa/internal/platform/rabbitmq"
	redisClient "docqa/internal/platform/redis"
	sqliteClient "docqa/internal/platform/sqlite"
	"docqa/internal/repository"
	"docqa/internal/settings"
	"docqa/internal/synthesizer"
	"docqa/internal/vectorindex"
	"docqa/internal/worker"
)

// snapshotStore is what both storage drivers provide.
type snapshotStore interface {
	appsvc.SnapshotStore
	appsvc.EventStore
}

type App struct {
	Config      *config.Config
	RAG         *appsvc.RAGService
	SQLite      *sql.DB
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	EventWorker *worker.IndexEventWorker
	Ollama      *ai.OllamaClient

	EmbeddingCache *cache.EmbeddingCache
	Publisher      *rabbitmqClient.EventPublisher

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	a := &App{Config: cfg, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			log.Printf("close partially initialised resources failed: %v", closeErr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	completer, embedProvider, err := a.newProviders()
	if err != nil {
		return err
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	embedOpts := []embedder.Option{
		embedder.WithBatchSize(cfg.Embedding.BatchSize),
		embedder.WithWorkers(cfg.Embedding.Workers),
	}
	if cfg.Redis.Enabled {
		a.Redis, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		ttl := time.Duration(cfg.Redis.EmbeddingTTLSeconds) * time.Second
		a.EmbeddingCache = cache.NewEmbeddingCache(a.Redis, ttl)
		embedOpts = append(embedOpts, embedder.WithCache(a.EmbeddingCache))
	}

	var publisher appsvc.EventPublisher
	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.IndexEventQueue)
		if err != nil {
			return err
		}
		a.Publisher = rabbitmqClient.NewEventPublisher(a.MQConn, cfg.RabbitMQ.IndexEventQueue)
		publisher = a.Publisher
		a.EventWorker = worker.NewIndexEventWorker(a.MQConn, store, cfg.RabbitMQ.IndexEventQueue)
		if err := a.EventWorker.Start(ctx); err != nil {
			return fmt.Errorf("start index event worker failed: %w", err)
		}
	}

	settingsStore, err := settings.NewStore(cfg.RuntimeDefaults())
	if err != nil {
		return fmt.Errorf("seed runtime settings failed: %w", err)
	}

	compareModels := cfg.LLM.CompareModels
	if len(compareModels) == 0 {
		compareModels = []string{cfg.LLM.Model}
	}

	a.RAG = appsvc.NewRAGService(
		vectorindex.New(),
		settingsStore,
		embedder.New(embedProvider, embedOpts...),
		synthesizer.New(completer, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second),
		store,
		store,
		publisher,
		compareModels,
		cfg.MaxUploadBytes(),
	)

	// a failed startup reload leaves the index empty until /documents/reload
	res, err := a.RAG.Reload(ctx)
	if err != nil {
		log.Printf("startup index reload failed, starting empty: %v", err)
	} else {
		log.Printf("index loaded: %d documents, %d chunks", res.Documents, res.Chunks)
	}
	return nil
}

// newProviders builds the chat and embedding providers, both behind one
// shared limiter so ingestion bursts cannot starve queries.
func (a *App) newProviders() (ai.Completer, ai.Embedder, error) {
	cfg := a.Config
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	limiter := ai.NewLimiter(cfg.LLM.MaxConcurrency, cfg.LLM.RequestsPerSecond)

	var completer ai.Completer
	switch cfg.LLM.Provider {
	case config.ProviderOllama:
		client, err := ai.NewOllamaClient(cfg.LLM.BaseURL, timeout)
		if err != nil {
			return nil, nil, err
		}
		a.Ollama = client
		completer = client
	default:
		completer = ai.NewOpenAICompatibleClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, timeout)
	}

	var embedProvider ai.Embedder
	switch cfg.Embedding.Provider {
	case config.ProviderHash:
		return ai.LimitCompleter(completer, limiter), ai.NewHashEmbedder(cfg.Embedding.Dimension), nil
	case config.ProviderOllama:
		client, err := ai.NewOllamaClient(cfg.Embedding.BaseURL, timeout)
		if err != nil {
			return nil, nil, err
		}
		if a.Ollama == nil {
			a.Ollama = client
		}
		embedProvider = client
	default:
		embedProvider = ai.NewOpenAICompatibleClient(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, timeout)
	}
	return ai.LimitCompleter(completer, limiter), ai.LimitEmbedder(embedProvider, limiter), nil
}

func (a *App) openStore(ctx context.Context) (snapshotStore, error) {
	cfg := a.Config
	switch cfg.Storage.Driver {
	case config.StorageMySQL:
		db, err := mysqlClient.New(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, err
		}
		a.MySQL = db
		repo := repository.NewSnapshotRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("auto migrate tables failed: %w", err)
		}
		return repo, nil
	default:
		db, err := sqliteClient.New(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.SQLite = db
		return repository.NewSQLiteSnapshotStore(ctx, db)
	}
}

func (a *App) Close() error {
	var errs []error
	if a.EventWorker != nil {
		a.EventWorker.Close()
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close mysql: %w", err))
			}
		}
	}
	if a.SQLite != nil {
		if err := a.SQLite.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sqlite: %w", err))
		}
	}
	return errors.Join(errs...)
}
