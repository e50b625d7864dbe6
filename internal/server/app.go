// Package server wires the GuardShare services together and runs the HTTP
// and gRPC transports plus the background sweeper until a shutdown signal.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/guardshare/internal/logging"
	"github.com/dmitrijs2005/guardshare/internal/server/config"
	"github.com/dmitrijs2005/guardshare/internal/server/httpapi"
	"github.com/dmitrijs2005/guardshare/internal/server/ratelimit"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/guardshare/internal/server/services"
	"github.com/dmitrijs2005/guardshare/internal/server/storage"

	gs "github.com/dmitrijs2005/guardshare/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	rm      repomanager.RepositoryManager
	redis   *redis.Client
	sweeper *services.Sweeper
	http    *httpapi.Server
	grpc    *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel)

	rm, err := newRepositoryManager(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	blobs, err := storage.NewS3Store(ctx, storage.Options{
		AccessKey:   c.S3RootUser,
		SecretKey:   c.S3RootPassword,
		Bucket:      c.S3Bucket,
		Region:      c.S3Region,
		Endpoint:    c.S3BaseEndpoint,
		URLValidity: c.PresignValidityDuration,
	})
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("s3 init error: %w", err)
	}

	app := &App{config: c, logger: logger, rm: rm}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	if c.RedisAddr != "" {
		client, err := ratelimit.Dial(ctx, c.RedisAddr)
		if err != nil {
			_ = rm.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.redis = client
		limiter = ratelimit.NewRedisLimiter(client)
	}

	us := services.NewUserService(rm, c, logger)
	fs := services.NewFileService(rm, blobs, logger)
	ls := services.NewLinkService(rm, logger)
	as := services.NewAccessService(rm, blobs, logger)
	app.sweeper = services.NewSweeper(rm, c.SweepInterval, c.PurgeInactiveAfter, logger)

	if c.AdminUserName != "" && c.AdminPassword != "" {
		if err := us.EnsureSuperuser(ctx, c.AdminUserName, c.AdminPassword); err != nil {
			app.close()
			return nil, fmt.Errorf("bootstrap superuser: %w", err)
		}
	}

	proxies, err := httpapi.ParseTrustedProxies(c.TrustedProxies)
	if err != nil {
		app.close()
		return nil, err
	}

	h := httpapi.NewHandler(us, fs, ls, as, app.sweeper, limiter, limitsFromConfig(c), proxies, logger)
	app.http = httpapi.NewServer(c.EndpointAddrHTTP, h, logger)
	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, us, as)

	return app, nil
}

func newRepositoryManager(ctx context.Context, c *config.Config) (repomanager.RepositoryManager, error) {
	switch c.StorageBackend {
	case config.StorageBackendMemory:
		return repomanager.NewMemoryRepositoryManager(), nil
	case config.StorageBackendPostgres:
		db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		return repomanager.NewPostgresRepositoryManager(db)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func limitsFromConfig(c *config.Config) httpapi.Limits {
	policy := func(name string, l config.RateLimit) ratelimit.Policy {
		return ratelimit.Policy{Name: name, Limit: l.Requests, Window: l.Window}
	}
	return httpapi.Limits{
		General: policy("general", c.RateLimitGeneral),
		Auth:    policy("auth", c.RateLimitAuth),
		Upload:  policy("upload", c.RateLimitUpload),
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// serve runs fn and cancels the whole app when it fails.
func (app *App) serve(ctx context.Context, cancelFunc context.CancelFunc, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		app.logger.Error(ctx, "server failed", "server", name, "error", err)
		cancelFunc()
	}
}

// Run blocks until a signal arrives or one of the servers fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageBackend)

	app.initSignalHandler(cancelFunc)

	app.sweeper.Start(ctx)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.serve(ctx, cancelFunc, "http", app.http.Run)
	}()
	go func() {
		defer wg.Done()
		app.serve(ctx, cancelFunc, "grpc", app.grpc.Run)
	}()

	wg.Wait()

	app.sweeper.Stop()
	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(context.Background(), "redis close failed", "error", err)
		}
	}
	if err := app.rm.Close(); err != nil {
		app.logger.Warn(context.Background(), "repository close failed", "error", err)
	}
}
