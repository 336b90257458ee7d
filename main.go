package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/justinas/alice"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tripvista/travel-platform/internal/audit"
	"github.com/tripvista/travel-platform/internal/authn"
	"github.com/tripvista/travel-platform/internal/cache"
	"github.com/tripvista/travel-platform/internal/config"
	"github.com/tripvista/travel-platform/internal/observe"
	"github.com/tripvista/travel-platform/internal/refresh"
	"github.com/tripvista/travel-platform/internal/server"
	"github.com/tripvista/travel-platform/internal/storage"
	"github.com/tripvista/travel-platform/internal/store"
	"github.com/tripvista/travel-platform/internal/task"
	"github.com/tripvista/travel-platform/internal/wechat"
)

// services collects the wired collaborators the routes are built from.
type services struct {
	registry   *cache.Registry
	tracker    *task.Tracker
	dispatcher *refresh.Dispatcher
	pool       *refresh.Pool

	adminUsers  *store.AdminUsers
	users       *store.Users
	attractions *store.Attractions
	products    *store.Products
	articles    *store.Articles
	configs     *store.Configs
	home        *store.Home

	codec     *authn.TokenCodec
	sessions  *authn.Sessions
	blacklist *authn.Blacklist

	uploader  *storage.Uploader
	exchanger CodeExchanger
}

func buildServices(cfg config.Config, db *gorm.DB) (*services, error) {
	registry, err := cache.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("cache registry configuration failed: %w", err)
	}

	svc := &services{
		registry:    registry,
		tracker:     task.NewTracker(task.NewGormStore(db)),
		pool:        refresh.NewPool(),
		adminUsers:  store.NewAdminUsers(db),
		users:       store.NewUsers(db),
		attractions: store.NewAttractions(db),
		products:    store.NewProducts(db),
		articles:    store.NewArticles(db),
		configs:     store.NewConfigs(db),
	}
	svc.home = store.NewHome(svc.attractions, svc.products, svc.articles, svc.configs)

	payments := store.NewPaymentConfigs(db)
	svc.dispatcher = refresh.NewDispatcher(svc.registry, svc.tracker, svc.pool, map[cache.Type]refresh.Source{
		cache.TypeAttraction: refresh.EntitySource(func(ctx context.Context, id int64) (any, error) {
			return svc.attractions.FindByID(ctx, id)
		}),
		cache.TypeProduct: refresh.EntitySource(func(ctx context.Context, id int64) (any, error) {
			return svc.products.FindByID(ctx, id)
		}),
		cache.TypeArticle: refresh.EntitySource(func(ctx context.Context, id int64) (any, error) {
			return svc.articles.FindByID(ctx, id)
		}),
		cache.TypeHome: refresh.SingletonSource(cache.HomeKey, func(ctx context.Context) (any, error) {
			return svc.home.Snapshot(ctx)
		}),
		cache.TypeMiniprogram: refresh.SetSource(
			svc.configs.Keys,
			func(ctx context.Context, key string) (any, error) {
				return svc.configs.FindByKey(ctx, key)
			},
		),
		cache.TypePayment: refresh.SetSource(
			payments.AppIDs,
			func(ctx context.Context, appID string) (any, error) {
				return payments.FindByAppID(ctx, appID)
			},
		),
	})

	svc.codec = authn.NewTokenCodec(cfg.Auth)
	svc.sessions = authn.NewSessions(registry)
	svc.blacklist = authn.NewBlacklist(registry)

	if cfg.Storage.Enabled() {
		svc.uploader = storage.NewUploader(cfg.Storage, cfg.Server.MaxUploadBytes)
	} else {
		log.Warn().Msg("object storage not configured; uploads disabled")
	}

	if cfg.Auth.WechatAppID != "" && cfg.Auth.WechatSecret != "" {
		svc.exchanger = wechat.New(cfg.Auth.WechatAppID, cfg.Auth.WechatSecret)
	} else {
		log.Warn().Msg("wechat credentials not configured; mini-program login disabled")
	}

	return svc, nil
}

func configureServerRoutes(cfg config.Config, svc *services) http.Handler {
	// wrap a mux such that HTTP telemetry is configured by default
	muxWithoutTelemetry := http.NewServeMux()
	mux := observe.NewMux(muxWithoutTelemetry)

	auditor := audit.Middleware()
	adminGate := authn.NewAdminGate(svc.codec, svc.adminUsers, svc.blacklist).Middleware()
	miniGate := authn.NewMiniprogramGate(svc.sessions, cfg.Auth.SessionHeader).Middleware()

	// JSON bodies on this API are small; uploads get their own larger limit
	requestLimiter := maxRequestSize(64 << 10)
	uploadLimiter := maxRequestSize(cfg.Server.MaxUploadBytes + (64 << 10))

	adminRoutes := alice.New(requestLimiter, auditor, adminGate)
	miniRoutes := alice.New(requestLimiter, auditor, miniGate)
	commonRoutes := alice.New(uploadLimiter, auditor, adminGate, miniGate)

	// admin console
	mux.Handle("POST /api/v1/admin/auth/login", adminRoutes.Then(handleAdminLogin(svc.adminUsers, svc.codec)))
	mux.Handle("POST /api/v1/admin/auth/logout", adminRoutes.Then(handleAdminLogout(svc.blacklist)))
	mux.Handle("POST /api/v1/admin/cache/refresh", adminRoutes.Then(handleCacheRefresh(svc.dispatcher)))
	mux.Handle("GET /api/v1/admin/cache/tasks", adminRoutes.Then(handleCacheTaskList(svc.tracker)))
	mux.Handle("GET /api/v1/admin/cache/tasks/{taskId}", adminRoutes.Then(handleCacheTaskStatus(svc.tracker)))
	mux.Handle("GET /api/v1/admin/cache/stats", adminRoutes.Then(handleCacheStats(svc.registry)))
	mux.Handle("DELETE /api/v1/admin/cache/{cacheType}", adminRoutes.Then(handleCacheInvalidate(svc.registry)))

	// shared surface, either identity accepted
	mux.Handle("POST /api/v1/common/upload", commonRoutes.Then(handleUpload(svc.uploader)))

	// mini-program client
	mux.Handle("POST /api/v1/miniprogram/auth/login", miniRoutes.Then(handleMiniprogramLogin(svc.exchanger, svc.users, svc.sessions)))
	mux.Handle("POST /api/v1/miniprogram/auth/logout", miniRoutes.Then(handleMiniprogramLogout(svc.sessions, cfg.Auth.SessionHeader)))
	mux.Handle("GET /api/v1/miniprogram/auth/info", miniRoutes.Then(handleMiniprogramUserInfo(svc.users)))
	mux.Handle("GET /api/v1/miniprogram/home", miniRoutes.Then(handleHomeData(svc.registry, svc.home)))
	mux.Handle("GET /api/v1/miniprogram/config/{key}", miniRoutes.Then(handleConfigEntry(svc.registry, svc.configs)))
	mux.Handle("GET /api/v1/miniprogram/attractions/{id}", miniRoutes.Then(handleAttractionDetail(svc.registry, svc.attractions)))
	mux.Handle("GET /api/v1/miniprogram/products/{id}", miniRoutes.Then(handleProductDetail(svc.registry, svc.products)))
	mux.Handle("GET /api/v1/miniprogram/articles/{id}", miniRoutes.Then(handleArticleDetail(svc.registry, svc.articles)))

	// healthchecks are excluded from telemetry and auditing
	muxWithoutTelemetry.Handle("GET /healthcheck", handleHealthCheck())

	return mux
}

func main() {
	configureLogging()

	logBuildInfo()

	if err := launchServer(); err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func launchServer() error {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	// configure telemetry, including wrapping the default HTTP client
	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}
	http.DefaultTransport = observe.HTTPTransport(http.DefaultTransport, cfg.Observe)
	http.DefaultClient = &http.Client{Transport: http.DefaultTransport}

	db, err := store.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("database configuration failed: %w", err)
	}

	svc, err := buildServices(cfg, db)
	if err != nil {
		return err
	}

	handler := configureServerRoutes(cfg, svc)

	// preload the aggregate caches; failures fall back to lazy fills
	go svc.dispatcher.WarmUp(ctx)

	var hooks server.ShutdownHooks
	hooks.AddContext("refresh pool", svc.pool.Shutdown)
	hooks.Add("cache registry", svc.registry.Close)
	hooks.AddContext("database", func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	hooks.AddContext("telemetry", shutdownTelemetry)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		MaxHeaderBytes:    20 << 10,
		ReadHeaderTimeout: 20 * time.Second, // prevent Slowloris attacks
	}

	return server.Run(srv, time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second, &hooks)
}

func configureLogging() {
	// Set global level to the minimum: allows the OTel SDK logging to be
	// configured separately. Any logger that sets its own level effectively
	// bypasses the global.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}
