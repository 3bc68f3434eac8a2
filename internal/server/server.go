package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/metric"

	"github.com/zhejian/url-shortener/qrform/internal/api"
	"github.com/zhejian/url-shortener/qrform/internal/auth"
	"github.com/zhejian/url-shortener/qrform/internal/config"
	"github.com/zhejian/url-shortener/qrform/internal/creation"
	"github.com/zhejian/url-shortener/qrform/internal/events"
	"github.com/zhejian/url-shortener/qrform/internal/middleware"
	"github.com/zhejian/url-shortener/qrform/internal/observability"
	"github.com/zhejian/url-shortener/qrform/internal/qr"
	"github.com/zhejian/url-shortener/qrform/internal/repository"
	"github.com/zhejian/url-shortener/qrform/internal/service"
)

// redisPinger adapts *redis.Client to api.CacheInterface.
type redisPinger struct{ client *redis.Client }

func (r *redisPinger) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NewRouter initializes all dependencies and returns a configured Gin router.
// A nil obs runs without metrics and with a discarding logger.
func NewRouter(cfg *config.Config, db *pgxpool.Pool, cache *redis.Client, publisher events.Publisher, obs *observability.Observability) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var metrics *observability.Metrics
	var meter metric.Meter
	if obs != nil {
		logger = obs.Logger
		metrics = obs.Metrics
		meter = obs.MeterProvider.Meter("qrform")
	}

	baseRepo := repository.NewResultRepository(db)
	results := repository.NewCachedResultRepository(baseRepo, cache, cfg.Cache.TTL)
	creator := creation.NewClient(creation.Config{
		BaseURL:         cfg.Creation.BaseURL,
		Timeout:         cfg.Creation.Timeout,
		CookieName:      cfg.Auth.CookieName,
		BreakerFailures: cfg.Creation.BreakerFailures,
		BreakerTimeout:  cfg.Creation.BreakerTimeout,
	}, metrics, logger)
	forms := service.NewFormService(creator, results, publisher, qr.NewRenderer(meter), service.Options{
		QRSize:       cfg.App.QRSize,
		HistoryLimit: cfg.App.HistoryLimit,
		Metrics:      metrics,
		Logger:       logger,
	})
	handler := api.NewHandler(forms, db, &redisPinger{client: cache}, logger)

	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.Telemetry.ServiceName),
		middleware.Logging(logger),
		middleware.Session(cfg.App.SessionCookie, cfg.App.SessionMaxAge, cfg.App.Environment == "production"),
		middleware.Auth(auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer), cfg.Auth.CookieName, logger),
	)
	if obs != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{})))
	}
	handler.RegisterRoutes(r)
	return r
}

// NewServer initializes all dependencies and returns a configured HTTP server.
func NewServer(cfg *config.Config, db *pgxpool.Pool, cache *redis.Client, publisher events.Publisher, obs *observability.Observability) *http.Server {
	router := NewRouter(cfg, db, cache, publisher, obs)

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
}
