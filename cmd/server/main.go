package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/op/go-logging"

	"github.com/iliyamo/restaurant-ordering/internal/config"
	"github.com/iliyamo/restaurant-ordering/internal/database"
	"github.com/iliyamo/restaurant-ordering/internal/handler"
	"github.com/iliyamo/restaurant-ordering/internal/logger"
	"github.com/iliyamo/restaurant-ordering/internal/middleware"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/queue"
	"github.com/iliyamo/restaurant-ordering/internal/realtime"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
	"github.com/iliyamo/restaurant-ordering/internal/repository/memory"
	"github.com/iliyamo/restaurant-ordering/internal/router"
	"github.com/iliyamo/restaurant-ordering/internal/service"
)

var log = logging.MustGetLogger("main")

// stores is the persistence backend chosen by STORAGE.
type stores struct {
	db          *sql.DB // nil for the memory backend
	restaurants service.RestaurantStore
	users       service.UserStore
	tokens      service.TokenStore
	categories  service.CategoryStore
	products    service.ProductStore
	modifiers   service.ModifierStore
	tables      service.TableStore
	orders      service.OrderStore
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warning("using the in-memory store; data is lost on restart")
		m := memory.New()
		return &stores{
			restaurants: m.Restaurants,
			users:       m.Users,
			tokens:      m.Tokens,
			categories:  m.Categories,
			products:    m.Products,
			modifiers:   m.Modifiers,
			tables:      m.Tables,
			orders:      m.Orders,
		}, nil
	}

	db, err := database.Open(database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &stores{
		db:          db,
		restaurants: repository.NewRestaurantRepo(db),
		users:       repository.NewUserRepo(db),
		tokens:      repository.NewTokenRepo(db),
		categories:  repository.NewCategoryRepo(db),
		products:    repository.NewProductRepo(db),
		modifiers:   repository.NewModifierRepo(db),
		tables:      repository.NewTableRepo(db),
		orders:      repository.NewOrderRepo(db),
	}, nil
}

func main() {
	if err := run(); err != nil {
		log.Critical(err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	hub := realtime.NewHub(cfg.WSAllowedOrigins, st.users)
	defer hub.Close()
	notifier := realtime.Notifier(hub)
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.AMQPURL, cfg.EventsQueue)
		defer pub.Close()
		notifier = realtime.Multi{hub, pub}

		consumer := &queue.Consumer{URL: cfg.AMQPURL, Queue: cfg.EventsQueue, Path: cfg.EventsLogPath}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("event consumer stopped: %v", err)
			}
		}()
	}

	// nil when Redis is unreachable; rate limiting and caching then pass through
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	accounts := service.NewAccounts(service.AccountsConfig{
		JWTSecret:        cfg.JWTSecret,
		AccessTTLMin:     cfg.AccessTTLMin,
		RefreshTTLDays:   cfg.RefreshTTLDays,
		BcryptCost:       cfg.BcryptCost,
		ExposeResetToken: !cfg.Prod(),
	}, st.users, st.tokens)
	transitions := model.ParseTransitionPolicy(cfg.OrderTransitions)

	health := handler.Health{}
	if st.db != nil {
		health.DB = st.db
	}
	e := router.New(router.Handlers{
		Health:      health,
		WS:          &handler.WSHandler{Auth: accounts, Hub: hub},
		Users:       handler.NewUserHandler(accounts),
		Restaurants: handler.NewRestaurantHandler(service.NewRestaurants(st.restaurants, st.users)),
		Catalog:     handler.NewCatalogHandler(service.NewCatalog(st.categories, st.products, st.modifiers, notifier)),
		Tables:      handler.NewTableHandler(service.NewTables(st.tables, st.users, notifier)),
		Orders:      handler.NewOrderHandler(service.NewOrders(st.orders, st.tables, st.products, st.users, notifier, transitions)),
	}, router.Options{
		Auth:      accounts,
		RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb),
		Cache:     middleware.NewRedisCache(cfg.Cache, rdb),
		Prod:      cfg.Prod(),
	})

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Infof("listening on %s (env=%s storage=%s)", addr, cfg.Env, cfg.Storage)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
