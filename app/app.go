package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bloudan-catalogue/app/controller"
	"bloudan-catalogue/app/router"
	"bloudan-catalogue/config"
	"bloudan-catalogue/db"
	"bloudan-catalogue/repository"
	"bloudan-catalogue/service"
)

// App holds the wired HTTP handler and the resources it owns
type App struct {
	Handler    http.Handler
	assembler  *service.DocumentAssembler
	dispatcher *service.EmailDispatcher
	stopProxy  func()
	closers    []func() error
	log        *zap.Logger
}

// Initialize initializes the application
func Initialize(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	a := &App{log: log}
	defer func() {
		if err != nil {
			a.Shutdown(context.Background())
		}
	}()

	// Catalogue store is optional: without it only POST /catalogue/render works
	var items service.ItemSource
	if dsn := cfg.Database.DSN(); dsn != "" {
		if err = db.InitDB(ctx, dsn, log); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.closers = append(a.closers, db.CloseDB)
		items = repository.NewCatalogueRepository(db.DB, log)
	} else {
		log.Warn("⚠️  No database configured, catalogue store endpoints are disabled")
	}

	proxy, closeCache, err := NewImageProxy(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeCache)

	// Renders fetch images from a loopback /proxy owned by the app, so they do
	// not depend on the public listener's port or lifetime
	proxyURL := cfg.Render.ProxyBaseURL
	if proxyURL == "" {
		if proxyURL, a.stopProxy, err = StartLocalProxy(proxy, log); err != nil {
			return nil, err
		}
		log.Info("✓ Image proxy for rendering started", zap.String("url", proxyURL))
	}
	assembler := NewAssembler(cfg, proxyURL, log)
	a.assembler = assembler

	var store service.ObjectStore
	if cfg.Storage.Enabled() {
		s3Store, err := service.NewS3ObjectStore(ctx, cfg.Storage, log)
		if err != nil {
			return nil, err
		}
		store = s3Store
		log.Info("✓ Download links enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	var emails controller.EmailQueue
	if cfg.Email.SMTPEnabled() && items != nil {
		mailer, err := service.NewSMTPMailer(cfg.Email)
		if err != nil {
			return nil, err
		}
		a.dispatcher = service.NewEmailDispatcher(items, assembler, mailer,
			cfg.Email.Workers, cfg.Email.QueueSize, cfg.Render.GenerationTimeout, log)
		a.dispatcher.Start()
		emails = a.dispatcher
	} else {
		log.Warn("⚠️  SMTP or catalogue store not configured, email delivery is disabled")
	}

	controllers := &router.Controllers{
		Proxy:     controller.NewProxyController(proxy, log),
		Catalogue: controller.NewCatalogueController(items, assembler, store, emails, log),
	}

	mux := http.NewServeMux()
	router.SetupRoutes(mux, controllers)
	a.Handler = router.WithRequestLogging(mux, log)

	return a, nil
}

// DrainEmails refuses new email jobs and waits for queued ones to be sent.
// Call it before the HTTP server stops so drained renders still reach the
// proxy when PROXY_BASE_URL points at the public listener.
func (a *App) DrainEmails(ctx context.Context) error {
	if a.dispatcher == nil {
		return nil
	}
	return a.dispatcher.Stop(ctx)
}

// Shutdown drains queued emails, then stops the render proxy and releases
// resources
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.DrainEmails(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.stopProxy != nil {
		a.stopProxy()
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewImageProxy wires the proxy with its optional Drive client and cache.
// Redis is preferred for the cache when configured, the disk cache otherwise.
// The returned func releases the cache connection.
func NewImageProxy(ctx context.Context, cfg *config.Config, log *zap.Logger) (*service.ImageProxy, func() error, error) {
	closeCache := func() error { return nil }

	var drive service.DriveDownloader
	if cfg.Proxy.CredentialsPath != "" {
		driveService, err := service.NewDriveService(ctx, cfg.Proxy.CredentialsPath)
		if err != nil {
			log.Warn("⚠️  Drive service unavailable, Drive images are fetched over HTTP", zap.Error(err))
		} else {
			drive = driveService
		}
	}

	var cache service.ImageCache
	if cfg.Redis.Addr != "" {
		redisCache, err := service.NewRedisImageCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Proxy.CacheTTL, log)
		if err != nil {
			log.Warn("⚠️  Redis image cache unavailable, using disk cache", zap.Error(err))
		} else {
			cache = redisCache
			closeCache = redisCache.Close
		}
	}
	if cache == nil && cfg.Proxy.CacheDir != "" {
		diskCache, err := service.NewDiskImageCache(cfg.Proxy.CacheDir, cfg.Proxy.CacheTTL, log)
		if err != nil {
			return nil, nil, err
		}
		cache = diskCache
	}

	return service.NewImageProxy(cfg.Proxy.AllowedHosts, cfg.Proxy.UpstreamTimeout, drive, cache, log), closeCache, nil
}

// NewAssembler wires the rendering pipeline against the proxy at proxyBaseURL
func NewAssembler(cfg *config.Config, proxyBaseURL string, log *zap.Logger) *service.DocumentAssembler {
	var writer service.DocumentWriter = service.NewFPDFWriter()
	if cfg.Render.Backend == "chrome" {
		writer = service.NewChromeWriter(cfg.Render.ChromePath, log)
	}

	resolver := service.NewProxyResolver(proxyBaseURL,
		service.NewAssetLocator(cfg.Render.AssetBaseURL), cfg.Render.ImageFetchTimeout)

	return service.NewDocumentAssembler(
		resolver,
		writer,
		service.DefaultPageLayout(cfg.Render.Brand, cfg.Render.Subtitle),
		cfg.Render.FetchConcurrency,
		cfg.Render.GenerationTimeout,
		log,
	)
}

// StartLocalProxy serves /proxy on a loopback port for renders that run
// without the HTTP server. It returns the base URL and a stop function.
func StartLocalProxy(proxy *service.ImageProxy, log *zap.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen for local proxy: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/proxy", controller.NewProxyController(proxy, log).Proxy)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("❌ Local proxy stopped", zap.Error(err))
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
	return "http://" + ln.Addr().String(), stop, nil
}
