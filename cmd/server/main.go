package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-booking-core/internal/cache"
	"github.com/iliyamo/cinema-booking-core/internal/config"
	"github.com/iliyamo/cinema-booking-core/internal/database"
	"github.com/iliyamo/cinema-booking-core/internal/handler"
	"github.com/iliyamo/cinema-booking-core/internal/logger"
	"github.com/iliyamo/cinema-booking-core/internal/memstore"
	"github.com/iliyamo/cinema-booking-core/internal/middleware"
	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/queue"
	"github.com/iliyamo/cinema-booking-core/internal/repository"
	"github.com/iliyamo/cinema-booking-core/internal/router"
	"github.com/iliyamo/cinema-booking-core/internal/service"
	"github.com/iliyamo/cinema-booking-core/internal/store"
	"github.com/iliyamo/cinema-booking-core/internal/sweeper"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logrus.NewEntry(logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Env:    cfg.Env,
	})).WithField("env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *logrus.Entry) error {
	st, catalog, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.WithField("addr", cfg.Redis.Addr).Warn("redis unavailable; rate limiting, stats cache and sweep lease disabled")
	} else {
		defer rdb.Close()
	}

	notifier, closeNotifier, err := newNotifier(cfg.Notify, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithNotifier(notifier),
		service.WithRules(service.Rules{
			HoldWindow:   cfg.Booking.HoldWindow,
			MaxHeldSeats: cfg.Booking.MaxSeats,
			CancelCutoff: cfg.Booking.CancelCutoff,
			SweepBatch:   cfg.Sweep.BatchSize,
		}),
	}
	if rdb != nil && cfg.StatsCache.Enabled {
		opts = append(opts, service.WithStatsCache(cache.NewStatsCache(rdb, cfg.StatsCache, log)))
	}
	bookings := service.NewBookingService(st, catalog, opts...)
	inventory := service.NewInventoryService(st, catalog, opts...)

	if cfg.StoreDriver == config.StoreMemory {
		if err := seedDemo(ctx, catalog.(*memstore.Catalog), inventory, log); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	e := newServer(cfg, rdb, log, bookings, inventory)
	runner := newSweeper(cfg.Sweep, rdb, bookings, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.Port).Info("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	g.Go(func() error { return runner.Run(gctx) })
	if cfg.Notify.ConsumeEvents && cfg.Notify.Driver == config.NotifyRabbitMQ {
		consumer := queue.NewConsumer(cfg.Notify.RabbitURL, cfg.Notify.Queue, cfg.Notify.ConsumerLog, log)
		g.Go(func() error { return consumer.Run(gctx) })
	}
	return g.Wait()
}

// openStore returns the booking store and catalog for the configured
// driver, plus a function that releases them.
func openStore(ctx context.Context, cfg config.Config, log *logrus.Entry) (store.Store, service.Catalog, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn("using in-memory store; bookings are lost on restart")
		return memstore.New(), memstore.NewCatalog(), func() {}, nil
	}

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}
	log.WithFields(logrus.Fields{"host": cfg.DB.Host, "db": cfg.DB.Name}).Info("connected to mysql")
	return repository.NewStore(db), repository.NewCatalogRepo(db), func() { _ = db.Close() }, nil
}

// newNotifier picks the confirmation sink.  Broker connections are made
// lazily, so a broker that is down at startup only costs failed
// notifications.
func newNotifier(cfg config.NotifyConfig, log *logrus.Entry) (service.Notifier, func(), error) {
	switch cfg.Driver {
	case config.NotifyRabbitMQ:
		p := queue.NewRabbitPublisher(cfg.RabbitURL, cfg.Queue, log)
		return p, closer(p, log), nil
	case config.NotifyKafka:
		p, err := queue.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		return p, closer(p, log), nil
	}
	return queue.NewLogNotifier(log), func() {}, nil
}

func closer(c io.Closer, log *logrus.Entry) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.WithError(err).Warn("close notifier")
		}
	}
}

func newServer(cfg config.Config, rdb *redis.Client, log *logrus.Entry, bookings *service.BookingService, inventory *service.InventoryService) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	deps := router.Deps{
		JWTSecret: cfg.JWTSecret,
		Bookings:  handler.NewBookingHandler(bookings),
		Inventory: handler.NewInventoryHandler(inventory),
	}
	if rdb != nil {
		deps.RateLimit = middleware.NewTokenBucket(cfg.RateLimit, rdb, log)
	}
	router.Register(e, deps)
	return e
}

func newSweeper(cfg config.SweepConfig, rdb *redis.Client, bookings *service.BookingService, log *logrus.Entry) *sweeper.Runner {
	opts := []sweeper.Option{sweeper.WithLogger(log)}
	if rdb != nil && cfg.LeaseTTL > 0 {
		host, _ := os.Hostname()
		owner := host + "-" + uuid.NewString()
		opts = append(opts, sweeper.WithLease(cache.NewLease(rdb, "sweep:lease", owner, cfg.LeaseTTL)))
	}
	return sweeper.New(bookings, cfg.Interval, opts...)
}

// seedDemo gives the in-memory driver one screen of 40 seats and a
// showtime tomorrow evening so the API can be tried without MySQL.
func seedDemo(ctx context.Context, catalog *memstore.Catalog, inventory *service.InventoryService, log *logrus.Entry) error {
	screenID := uuid.New()
	layout := make([]model.ScreenSeat, 0, 40)
	for row := 'A'; row <= 'E'; row++ {
		for n := 1; n <= 8; n++ {
			seatType := "STANDARD"
			if row == 'E' {
				seatType = "VIP"
			}
			layout = append(layout, model.ScreenSeat{
				ID:         uuid.New(),
				SeatNumber: fmt.Sprintf("%c%d", row, n),
				SeatType:   seatType,
				Active:     true,
			})
		}
	}
	catalog.AddScreen(screenID, layout)

	tomorrow := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	st, n, err := inventory.Schedule(ctx, model.Showtime{
		MovieID:    uuid.New(),
		ScreenID:   screenID,
		MovieTitle: "Demo Feature",
		CinemaName: "Local Cinema",
		ScreenName: "Screen 1",
		StartsAt:   tomorrow,
		EndsAt:     tomorrow.Add(2 * time.Hour),
	}, 1000)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"showtime_id": st.ID, "seats": n}).Info("seeded demo showtime")
	return nil
}
