// Package app wires configuration into the service graph shared by the
// HTTP server and the operator CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-attendance/internal/attendance"
	"github.com/iliyamo/venue-attendance/internal/businessday"
	"github.com/iliyamo/venue-attendance/internal/checkin"
	"github.com/iliyamo/venue-attendance/internal/clock"
	"github.com/iliyamo/venue-attendance/internal/config"
	"github.com/iliyamo/venue-attendance/internal/database"
	"github.com/iliyamo/venue-attendance/internal/handler"
	"github.com/iliyamo/venue-attendance/internal/ledger"
	"github.com/iliyamo/venue-attendance/internal/lifecycle"
	"github.com/iliyamo/venue-attendance/internal/lock"
	"github.com/iliyamo/venue-attendance/internal/middleware"
	"github.com/iliyamo/venue-attendance/internal/queue"
	"github.com/iliyamo/venue-attendance/internal/repair"
	"github.com/iliyamo/venue-attendance/internal/reporting"
	"github.com/iliyamo/venue-attendance/internal/repository"
	"github.com/iliyamo/venue-attendance/internal/repository/memory"
	"github.com/iliyamo/venue-attendance/internal/router"
)

// Store is every persistence port the services use.  Both the MySQL
// repositories and the in-memory store implement it.
type Store interface {
	lifecycle.Store
	ledger.Store
	attendance.Store
	reporting.Store
	repair.Store
	businessday.SettingsStore
}

var (
	_ Store = (*repository.Store)(nil)
	_ Store = (*memory.Store)(nil)
)

// Options overrides parts of the graph.  Zero fields are built from
// Config.
type Options struct {
	Store    Store
	Redis    *redis.Client
	Clock    clock.Clock
	Notifier queue.Notifier
}

// App is the assembled service graph.
type App struct {
	Config config.Config
	Log    *zap.Logger
	Clock  clock.Clock
	Store  Store
	Redis  *redis.Client

	Ledger     *ledger.Ledger
	Lifecycle  *lifecycle.Lifecycle
	Reconciler *attendance.Reconciler
	CheckIn    *checkin.Service
	Aggregator *reporting.Aggregator
	Repair     *repair.Job

	async  *queue.Async
	db     *sql.DB
	ownsRD bool
}

// New builds the graph.  With STORE_DRIVER=mysql it opens the database
// (and creates the schema when DB_AUTO_MIGRATE is set).  A Redis outage
// is not fatal: the lock falls back to in-process and the rollup cache
// and rate limiter are disabled.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, opts Options) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Log: log, Clock: opts.Clock, Store: opts.Store, Redis: opts.Redis}
	if a.Clock == nil {
		a.Clock = clock.System{}
	}

	if a.Store == nil {
		st, err := a.openStore(ctx)
		if err != nil {
			return nil, err
		}
		a.Store = st
	}

	if a.Redis == nil && (cfg.LockBackend == config.LockRedis || cfg.RollupCache.Enabled || cfg.RateLimit.Enabled) {
		rdb, err := config.NewRedisClient(ctx)
		if err != nil {
			log.Warn("redis unavailable, continuing without it", zap.Error(err))
		} else {
			a.Redis, a.ownsRD = rdb, true
		}
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.LockBackend == config.LockRedis {
		if a.Redis != nil {
			locker = lock.NewRedis(a.Redis, lock.RedisConfig{TTL: cfg.LockTTL, Wait: cfg.LockWait})
		} else {
			log.Warn("LOCK_BACKEND=redis without redis, using in-process lock")
		}
	}
	guard := lock.NewGuard(locker)

	notifier := opts.Notifier
	if notifier == nil {
		if cfg.NotifyEnabled {
			notifier = queue.NewPublisher(cfg.RabbitURL, log.Named("publisher"))
		} else {
			notifier = queue.Nop{}
		}
	}
	a.async = queue.NewAsync(notifier, log.Named("notify"), 0)

	a.Ledger = ledger.New(a.Store, guard, a.Clock, log.Named("ledger"))
	a.Lifecycle = lifecycle.New(a.Store, a.Ledger, guard, a.Clock, a.async, lifecycle.Config{
		TokenTTL:    cfg.TokenTTL,
		NoShowGrace: cfg.NoShowGrace,
	}, log.Named("lifecycle"))
	a.Reconciler = attendance.NewReconciler(a.Store, a.Lifecycle, a.Ledger, guard, a.Clock, log.Named("attendance"))
	a.CheckIn = checkin.NewService(a.Ledger, a.Lifecycle, a.Reconciler, guard, log.Named("checkin"))

	var cache reporting.Cache
	if cfg.RollupCache.Enabled && a.Redis != nil {
		cache = reporting.NewRedisCache(a.Redis, cfg.RollupCache.Prefix, cfg.RollupCache.TTL)
	}
	resolver := businessday.NewConfigResolver(a.Store, cfg.DefaultTimezone)
	a.Aggregator = reporting.NewAggregator(a.Store, resolver, cache, a.Clock, log.Named("reporting"))
	a.Repair = repair.NewJob(a.Store, a.Reconciler, cfg.RepairTimeout, log.Named("repair"))
	return a, nil
}

func (a *App) openStore(ctx context.Context) (Store, error) {
	switch a.Config.StoreDriver {
	case config.DriverMemory:
		a.Log.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	case config.DriverMySQL, "":
		c := a.Config
		db, err := database.Open(ctx, database.DSN(c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if c.DBAutoMigrate {
			if err := database.EnsureSchema(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		a.db = db
		return repository.NewStore(db), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", a.Config.StoreDriver)
}

// Echo returns the HTTP server with every route mounted.
func (a *App) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(a.Log.Named("http")))
	e.Use(middleware.Recover(a.Log.Named("http")))

	router.RegisterRoutes(e)
	router.RegisterAPI(e, router.Handlers{
		Scan:         handler.NewScanHandler(a.CheckIn, a.Log),
		Reservations: handler.NewReservationHandler(a.Lifecycle, a.Reconciler, a.CheckIn, a.Log),
		Attendance:   handler.NewAttendanceHandler(a.Lifecycle, a.Reconciler, a.Log),
		Reports:      handler.NewReportHandler(a.Aggregator, a.Log),
		Admin:        handler.NewAdminHandler(a.Repair, a.Lifecycle, a.Log),
	}, a.Config.JWTSecret, middleware.NewTokenBucket(a.Config.RateLimit, a.Redis))
	return e
}

// StartConsumer runs the notification log consumer until ctx is done when
// NOTIFY_CONSUMER_ENABLED is set.
func (a *App) StartConsumer(ctx context.Context) {
	if !a.Config.NotifyConsumerEnabled {
		return
	}
	go func() {
		err := queue.StartNotificationConsumer(ctx, a.Config.RabbitURL, a.Config.NotifyLogDir, a.Log.Named("consumer"))
		if err != nil && ctx.Err() == nil {
			a.Log.Error("notification consumer stopped", zap.Error(err))
		}
	}()
}

// Close waits for pending notifications and releases connections.
func (a *App) Close() error {
	a.async.Wait()
	var err error
	if a.ownsRD && a.Redis != nil {
		err = a.Redis.Close()
	}
	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
