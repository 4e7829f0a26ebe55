package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	database "github.com/yeopl/route-planner/app/db"
	"github.com/yeopl/route-planner/config"
	"github.com/yeopl/route-planner/internal/api/chat"
	"github.com/yeopl/route-planner/internal/api/llm"
	placeSearch "github.com/yeopl/route-planner/internal/api/place_search"
	"github.com/yeopl/route-planner/internal/api/planner"
	"github.com/yeopl/route-planner/internal/api/recommend"
	"github.com/yeopl/route-planner/internal/conversation"
	"github.com/yeopl/route-planner/internal/itinerary"
	"github.com/yeopl/route-planner/internal/storage"
)

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Container holds all application dependencies
type Container struct {
	Config             *config.Config
	Logger             *slog.Logger
	Pool               *pgxpool.Pool
	Mongo              *mongo.Client
	KV                 storage.KV
	Conversations      *conversation.Store
	ChatHandler        *chat.Handler
	PlaceSearchHandler *placeSearch.Handler
	PlannerHandler     *planner.Handler
}

// NewContainer initializes and returns a new dependency container
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	kv, err := c.openStorage(ctx)
	if err != nil {
		c.Close(ctx)
		return nil, err
	}
	return c.wire(ctx, kv)
}

// NewWithKV wires the application on top of an existing store. Tests use it
// with storage.NewMemoryKV.
func NewWithKV(ctx context.Context, cfg *config.Config, kv storage.KV, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}
	return c.wire(ctx, kv)
}

func (c *Container) wire(ctx context.Context, kv storage.KV) (*Container, error) {
	cfg, logger := c.Config, c.Logger
	c.KV = kv

	provider, err := llm.NewProvider(ctx, *cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize language model provider", slog.Any("error", err))
		c.Close(ctx)
		return nil, err
	}

	var searchClient placeSearch.Client
	if cfg.Search.APIKey != "" {
		searchClient = placeSearch.NewKakaoClient(cfg.Search.BaseURL, cfg.Search.APIKey, cfg.Search.Timeout, logger)
	} else {
		logger.Warn("KAKAO_REST_API_KEY is not set; recommended places keep model coordinates")
	}
	searchService := placeSearch.NewServiceImpl(searchClient, cfg.Search.CacheTTL, cfg.Search.Concurrency, logger)

	chatService := chat.NewServiceImpl(provider, logger)
	recommendService := recommend.NewServiceImpl(provider, searchService, logger)

	c.Conversations = conversation.NewStore(kv, logger)
	c.Conversations.Load(ctx)
	route := itinerary.NewStore(c.Conversations, logger)
	plannerService := planner.NewServiceImpl(c.Conversations, route, chatService, recommendService, logger)

	c.ChatHandler = chat.NewHandler(chatService, recommendService, logger)
	c.PlaceSearchHandler = placeSearch.NewHandler(searchService, logger)
	c.PlannerHandler = planner.NewHandler(plannerService, logger)

	logger.Info("Container initialized",
		slog.String("llm_provider", provider.Name()),
		slog.Bool("search_enabled", searchService.Enabled()),
		slog.String("storage_driver", cfg.Storage.Driver))
	return c, nil
}

func (c *Container) openStorage(ctx context.Context) (storage.KV, error) {
	cfg, logger := c.Config, c.Logger
	ns := cfg.Storage.Namespace

	switch cfg.Storage.Driver {
	case DriverMemory:
		logger.Warn("Using in-memory storage; state is lost on restart")
		return storage.NewMemoryKV(), nil

	case DriverFile:
		return storage.NewFileKV(cfg.Storage.File.Path, ns, logger)

	case DriverPostgres:
		dbConfig, err := database.NewDatabaseConfig(cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
			logger.Error("Failed to run database migrations", slog.Any("error", err))
			return nil, err
		}
		pool, err := database.Init(ctx, dbConfig.ConnectionURL, logger)
		if err != nil {
			return nil, err
		}
		c.Pool = pool
		if !database.WaitForDB(ctx, pool, logger) {
			return nil, fmt.Errorf("database not ready")
		}
		return storage.NewPostgresKV(pool, ns, logger), nil

	case DriverMongo:
		mcfg := cfg.Storage.Mongo
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(mcfg.URI))
		if err != nil {
			logger.Error("Failed to connect to MongoDB", slog.Any("error", err))
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		c.Mongo = client
		if err := client.Ping(ctx, nil); err != nil {
			logger.Error("MongoDB ping failed", slog.Any("error", err))
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		coll := client.Database(mcfg.Database).Collection(mcfg.Collection)
		return storage.NewMongoKV(coll, ns, logger), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// Close releases all resources held by the container
func (c *Container) Close(ctx context.Context) {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Mongo != nil {
		if err := c.Mongo.Disconnect(ctx); err != nil {
			c.Logger.Error("Failed to disconnect MongoDB", slog.Any("error", err))
		}
	}
}
