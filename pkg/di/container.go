package di

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"radiance/backend/internal/api"
	"radiance/backend/internal/bot"
	"radiance/backend/internal/room"
	"radiance/backend/internal/service"
	"radiance/backend/internal/ws"
	"radiance/backend/pkg/cache"
	"radiance/backend/pkg/config"
	"radiance/backend/pkg/health"
	"radiance/backend/pkg/jwt"
	"radiance/backend/pkg/logger"
	"radiance/backend/pkg/resilience"
	"radiance/backend/shared/observability"
	sharedredis "radiance/backend/shared/redis"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *logger.Logger

	JWTService *jwt.Service
	Cache      *cache.Cache

	Participants *service.ParticipantService
	Messages     *service.MessageService

	Redis         *redis.Client
	Registry      room.Registry
	redisRegistry *room.RedisRegistry

	Breaker   *resilience.CircuitBreaker
	Generator bot.Generator
	Replier   *bot.Replier

	Hub         *ws.Hub
	ChatHandler *api.ChatHandler
	Health      *health.Checker

	MetricsRegistry *prometheus.Registry
	Metrics         *observability.ChatMetrics
	meterProvider   *sdkmetric.MeterProvider
}

// New builds the object graph. With Redis enabled the room registry fans out
// through pub/sub and New fails if the subscription cannot be established.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logger.Logger) (*Container, error) {
	if log == nil {
		log = logger.GetGlobal()
	}

	c := &Container{
		Config: cfg,
		DB:     db,
		Logger: log,
	}

	c.MetricsRegistry = prometheus.NewRegistry()
	c.MetricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mp, err := observability.SetupMetrics(cfg.Observability.ServiceName, c.MetricsRegistry)
	if err != nil {
		return nil, err
	}
	c.meterProvider = mp
	c.Metrics, err = observability.NewChatMetrics(mp)
	if err != nil {
		return nil, fmt.Errorf("create chat metrics: %w", err)
	}

	c.JWTService = jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)
	if c.JWTService.UsesDevSecret() {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		log.Warn("JWT_SECRET is not set, using the development secret")
	}

	c.Cache = cache.NewCache(cfg.Cache.TTL, cfg.Cache.PurgeWindow, cfg.Cache.MaxSize)
	c.Participants = service.NewParticipantService(db, c.Cache)
	c.Messages = service.NewMessageService(db)

	local := room.NewLocalRegistry(log, c.Metrics)
	c.Registry = local
	if cfg.Redis.Enabled {
		c.Redis = sharedredis.NewClient(sharedredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := sharedredis.Ping(ctx, c.Redis); err != nil {
			c.Close(ctx)
			return nil, err
		}
		c.redisRegistry = room.NewRedisRegistry(c.Redis, local, log)
		if err := c.redisRegistry.Start(ctx); err != nil {
			c.Close(ctx)
			return nil, fmt.Errorf("start redis room registry: %w", err)
		}
		c.Registry = c.redisRegistry
		log.Info("Room fan-out through Redis pub/sub", "addr", cfg.Redis.Addr)
	}

	c.Breaker = resilience.NewCircuitBreaker(resilience.DefaultConfig("yandexgpt"), log)
	c.Generator = bot.NewYandexGPT(bot.YandexGPTConfig{
		Endpoint:    cfg.Bot.Endpoint,
		APIKey:      cfg.Bot.APIKey,
		AuthScheme:  cfg.Bot.AuthScheme,
		FolderID:    cfg.Bot.FolderID,
		Model:       cfg.Bot.Model,
		Temperature: cfg.Bot.Temperature,
		MaxTokens:   cfg.Bot.MaxTokens,
		Timeout:     cfg.Bot.Timeout,
	}, c.Breaker, log)
	if cfg.Bot.APIKey == "" {
		log.Warn("YAGPT_API_KEY is not set, bot replies will fail")
	}
	if cfg.Bot.FolderID == "" {
		log.Warn("YAGPT_FOLDER_ID is not set, bot replies will fail")
	}

	c.Replier = bot.NewReplier(c.Generator, ws.NewReplySink(c.Messages, c.Registry), bot.Options{
		Workers:   cfg.Bot.Workers,
		QueueSize: cfg.Bot.QueueSize,
		Timeout:   cfg.Bot.Timeout,
	}, log, c.Metrics)

	c.Hub = ws.NewHub(c.Registry, c.Messages, c.Participants, c.Replier, ws.Config{
		SendBuffer:     cfg.Chat.SendBuffer,
		MaxMessageSize: cfg.Chat.MaxMessageSize,
		WriteWait:      cfg.Chat.WriteWait,
		PongWait:       cfg.Chat.PongWait,
		MessageRate:    cfg.Chat.MessageRate,
		MessageBurst:   cfg.Chat.MessageBurst,
		AllowedOrigins: cfg.Security.AllowedOrigins,
	}, log, c.Metrics)

	c.ChatHandler = api.NewChatHandler(c.Messages, c.Participants, cfg.Chat.HistoryLimit)

	c.Health = health.NewChecker(log, cfg.Observability.HealthInterval)
	c.Health.RegisterDatabaseCheck(func(ctx context.Context) error {
		return config.TestConnection(ctx, db)
	})
	if c.Redis != nil {
		c.Health.RegisterRedisCheck(func(ctx context.Context) error {
			return sharedredis.Ping(ctx, c.Redis)
		})
	}
	if cfg.Bot.APIKey != "" {
		if u, err := url.Parse(cfg.Bot.Endpoint); err == nil {
			c.Health.RegisterAPICheck("yandexgpt", u.Scheme+"://"+u.Host, nil)
		}
	}
	c.Health.RegisterCheck("bot-breaker", false, func(context.Context) (health.Status, string, error) {
		switch c.Breaker.State() {
		case resilience.StateOpen:
			return health.StatusDegraded, "Bot replies are short-circuited", nil
		case resilience.StateHalfOpen:
			return health.StatusDegraded, "Bot replies are being probed", nil
		default:
			return health.StatusUp, "Bot replies are flowing", nil
		}
	})

	return c, nil
}

// Close releases everything New created, in dependency order: open sessions
// first, then queued bot replies, then the pub/sub relay.
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	if c.Hub != nil {
		c.Hub.Shutdown()
	}
	if c.Replier != nil {
		if err := c.Replier.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain bot replies: %w", err))
		}
	}
	if c.redisRegistry != nil {
		if err := c.redisRegistry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close room relay: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if c.Cache != nil {
		c.Cache.Stop()
	}
	if c.meterProvider != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.meterProvider.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}

	return errors.Join(errs...)
}
