package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliyamo/title-reviews/internal/config"
	"github.com/iliyamo/title-reviews/internal/database"
	"github.com/iliyamo/title-reviews/internal/handler"
	"github.com/iliyamo/title-reviews/internal/metrics"
	"github.com/iliyamo/title-reviews/internal/notify"
	"github.com/iliyamo/title-reviews/internal/queue"
	"github.com/iliyamo/title-reviews/internal/repository"
	"github.com/iliyamo/title-reviews/internal/repository/memory"
	"github.com/iliyamo/title-reviews/internal/router"
	"github.com/iliyamo/title-reviews/internal/service"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Check{}

	stores, db, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		checks["mysql"] = db.PingContext
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		logger.Warn("redis unavailable; rate limiting and response cache disabled")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	dispatcher := newDispatcher(ctx, config.LoadMailConfig(), logger)

	svc := service.New(stores, dispatcher, service.Config{
		JWTSecret:  cfg.JWTSecret,
		TokenTTL:   cfg.AccessTTL,
		BcryptCost: cfg.BcryptCost,
		PageSize:   cfg.PageSize,
	}, service.WithLogger(logger), service.WithMetrics(m))

	e := router.New(router.Deps{
		API:       handler.NewAPI(svc),
		Auth:      svc,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Gatherer:  prometheus.DefaultGatherer,
		Checks:    checks,
		Logger:    logger,
	})
	e.Use(echomw.Recover())
	e.Use(requestLogger(logger))

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// openStores returns the persistence backend chosen by STORE_DRIVER.  The
// *sql.DB is nil for the memory backend.
func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (service.Stores, *sql.DB, error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		mem := memory.New()
		return service.Stores{
			Users:      mem.Users(),
			Categories: mem.Categories(),
			Genres:     mem.Genres(),
			Titles:     mem.Titles(),
			Reviews:    mem.Reviews(),
			Comments:   mem.Comments(),
		}, nil, nil
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return service.Stores{}, nil, err
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return service.Stores{}, nil, err
		}
	}
	return service.Stores{
		Users:      repository.NewUserRepo(db),
		Categories: repository.NewCategoryRepo(db),
		Genres:     repository.NewGenreRepo(db),
		Titles:     repository.NewTitleRepo(db),
		Reviews:    repository.NewReviewRepo(db),
		Comments:   repository.NewCommentRepo(db),
	}, db, nil
}

// newDispatcher picks how confirmation codes leave the process.  With the
// amqp driver the same process can also run the consumer that hands queued
// mail to SMTP.
func newDispatcher(ctx context.Context, mc config.MailConfig, logger *slog.Logger) service.Dispatcher {
	smtpMailer := func() *notify.SMTPMailer {
		return notify.NewSMTPMailer(mc.SMTPHost, mc.SMTPPort, mc.SMTPUser, mc.SMTPPass, mc.From)
	}
	switch mc.Driver {
	case config.NotifyAMQP:
		if mc.Consume {
			consumer := queue.NewConsumer(mc.AMQPURL, mc.MailQueue, smtpMailer(), logger)
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("mail consumer stopped", "error", err)
				}
			}()
		}
		return notify.NewAMQPDispatcher(mc.AMQPURL, mc.MailQueue)
	case config.NotifySMTP:
		return smtpMailer()
	default:
		return notify.NewLogDispatcher(logger)
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	logValues := func(c echo.Context, v echomw.RequestLoggerValues) error {
		attrs := []slog.Attr{
			slog.String("method", v.Method),
			slog.String("uri", v.URI),
			slog.Int("status", v.Status),
			slog.Duration("latency", v.Latency),
			slog.String("remote_ip", v.RemoteIP),
		}
		level := slog.LevelInfo
		if v.Error != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("error", v.Error.Error()))
		}
		logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
		return nil
	}
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:     true,
		LogURI:        true,
		LogStatus:     true,
		LogLatency:    true,
		LogRemoteIP:   true,
		LogError:      true,
		HandleError:   true,
		LogValuesFunc: logValues,
	})
}
