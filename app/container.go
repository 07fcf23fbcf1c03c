package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"chatrelay/app/config"
	"chatrelay/internal/broker"
	"chatrelay/internal/handlers"
	"chatrelay/internal/ports"
	"chatrelay/internal/repositories"
	"chatrelay/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"
)

type Container struct {
	isShuttingDown bool

	GinEngine   *gin.Engine
	Config      *config.Config
	Redis       *redis.Client
	RateLimiter *RateLimiter

	Metrics        *Metrics
	Logger         *slog.Logger
	TracerProvider *tracesdk.TracerProvider
	Tracer         trace.Tracer

	Server *http.Server

	Repository *repositories.RepositoryAdapter
	Broker     ports.IBroker

	ChatService *services.ChatService

	ChatHandler      *handlers.ChatHandler
	WebsocketHandler *handlers.WebsocketHandler
}

func NewContainer() (*Container, error) {
	container := &Container{}

	if err := container.initCore(); err != nil {
		return nil, err
	}

	if err := container.initProductionFeatures(); err != nil {
		return nil, err
	}

	return container, nil
}

func (c *Container) initCore() error {
	var cfg, err = config.LoadConfig()
	if err != nil {
		return err
	}
	c.Config = &cfg

	c.Logger = c.initLogger()
	c.Redis = c.initRedis()

	if err = c.initTracing(); err != nil {
		return err
	}

	c.Repository, err = repositories.NewRepositoryAdapter(c.Redis, c.Logger)
	if err != nil {
		c.Logger.Error("Repository initialize error", "error", err.Error())
		return err
	}

	c.Broker = c.initBroker()

	c.ChatService = services.NewChatService(c.Repository.Chats, c.Repository.Messages, c.Repository.Sequence, c.Broker, c.Logger)

	c.RateLimiter = NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)

	c.ChatHandler = handlers.NewChatHandler(c.ChatService, c.Logger)
	c.WebsocketHandler = handlers.NewWebSocketHandler(c.ChatService, c.Broker, c.Logger)

	c.Server = c.initServer()

	return nil
}

// initProductionFeatures builds the metrics set first and the engine after,
// because gin snapshots a route's handler chain at registration: middleware
// added once a route exists never runs for it.
func (c *Container) initProductionFeatures() error {
	c.initMetrics()

	c.GinEngine = c.initGinEngine()
	c.Server.Handler = c.GinEngine

	return nil
}

func (c *Container) initMetrics() {
	c.Metrics = &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request duration",
			},
			[]string{"method", "endpoint"},
		),
		MessagesPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chat_messages_published_total",
				Help: "Messages appended and published to the broadcast channel",
			},
		),
		LiveSessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chat_live_sessions_active",
				Help: "Currently open live sessions",
			},
		),
	}
	prometheus.MustRegister(
		c.Metrics.RequestsTotal,
		c.Metrics.RequestDuration,
		c.Metrics.MessagesPublished,
		c.Metrics.LiveSessionsActive,
	)

	c.ChatService.SetPublishedCounter(c.Metrics.MessagesPublished)
	c.WebsocketHandler.SetActiveGauge(c.Metrics.LiveSessionsActive)
}

func (c *Container) initTracing() error {
	if !c.Config.Tracing.Enabled {
		c.Logger.Info("tracing disabled")
		return nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(c.Config.Tracing.Endpoint)))
	if err != nil {
		return err
	}

	c.TracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(c.Config.Tracing.ServiceName),
			attribute.String("environment", c.Config.Environment.Current),
		)),
	)

	otel.SetTracerProvider(c.TracerProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	c.Tracer = c.TracerProvider.Tracer("chatrelay-app")

	c.Logger.Info("tracing initialized", "endpoint", c.Config.Tracing.Endpoint)
	return nil
}

func (c *Container) initHealthRoutes(eng *gin.Engine) {
	eng.GET("/health", func(ctx *gin.Context) {
		health := map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		if err := c.Repository.HealthCheck(ctx.Request.Context()); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			ctx.JSON(503, health)
			return
		}

		health["redis"] = "healthy"
		ctx.JSON(200, health)
	})

	eng.GET("/ready", func(ctx *gin.Context) {
		if c.isShuttingDown {
			ctx.JSON(503, gin.H{"status": "shutting down"})
			return
		}
		ctx.JSON(200, gin.H{"status": "ready"})
	})

	eng.GET("/live", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "live"})
	})
}

func (c *Container) initGinEngine() *gin.Engine {
	var eng = gin.Default()

	if c.Config.Tracing.Enabled {
		eng.Use(otelgin.Middleware(c.Config.Tracing.ServiceName))
	}
	eng.Use(services.RequestIDMiddleware())
	eng.Use(MetricsMiddleware(c.Metrics))

	eng.GET("/metrics", gin.WrapH(promhttp.Handler()))
	c.initHealthRoutes(eng)

	chats := eng.Group("/chats")
	chats.Use(RateLimitMiddleware(c.RateLimiter))
	{
		chats.POST("", c.ChatHandler.CreateChat)
		chats.POST("/:chatId/messages", c.ChatHandler.CreateMessage)
		chats.GET("/:chatId/messages", c.ChatHandler.GetMessages)
		chats.DELETE("/:chatId", c.ChatHandler.DeleteChat)

		chats.GET("/:chatId/ws", c.WebsocketHandler.HandleWebSocket)
	}

	return eng
}

func (c *Container) initLogger() *slog.Logger {
	var logger *slog.Logger
	if c.Config.Environment.Current == "development" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	slog.SetDefault(logger)
	return logger
}

func (c *Container) initRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
}

func (c *Container) initBroker() ports.IBroker {
	if c.Config.Broker.Driver == "memory" {
		c.Logger.Info("using in-memory broadcast broker")
		return broker.NewMemoryBroker(c.Config.Broker.Buffer, c.Logger)
	}
	return broker.NewRedisBroker(c.Redis, c.Config.Broker.Buffer, c.Logger)
}

func (c *Container) initServer() *http.Server {
	return &http.Server{
		Addr:         ":" + c.Config.Server.Port,
		ReadTimeout:  time.Duration(c.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(c.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(c.Config.Server.IdleTimeout) * time.Second,
	}
}

func (c *Container) Close() error {
	c.isShuttingDown = true

	if c.TracerProvider != nil {
		if err := c.TracerProvider.Shutdown(context.Background()); err != nil {
			c.Logger.Error("failed to shutdown tracer provider", "error", err)
		}
	}

	if c.Redis != nil {
		return c.Redis.Close()
	}

	return nil
}
