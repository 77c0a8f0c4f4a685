package main

// POST /webhook                     - Telegram bot updates
// GET  /api/products                - catalog listing (category, q, page)
// GET  /api/products/{id}           - one product
// GET  /api/cart                    - session cart
// POST /api/cart/items              - add a product to the cart
// PUT  /api/cart/items/{id}         - set a line quantity
// DELETE /api/cart/items/{id}       - remove a line
// POST /api/orders                  - checkout
// GET  /api/orders[/{id}]           - order listing / details
// PATCH /api/orders/{id}/status     - status update
// GET  /health, /metrics

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"telegram-shop/bot"
	"telegram-shop/config"
	"telegram-shop/handler"
	"telegram-shop/metrics"
	"telegram-shop/service"
	"telegram-shop/store"
	"telegram-shop/telegram"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "telegram-shop",
		Usage: "storefront backend and order notification bot",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "register-webhook", Usage: "call setWebhook before serving"},
				},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations to DATABASE_URL",
				Action: migrateDB,
			},
			{
				Name:   "set-webhook",
				Usage:  "point the bot webhook at WEBHOOK_URL/webhook",
				Action: setWebhook,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("telegram-shop failed")
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.ConfigureLogging(true)
	if cfg.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}

	kv, orderStore, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer orderStore.Close()

	tg := telegram.NewClient(cfg.BotAPIURL, cfg.BotToken, cfg.RequestTimeout)
	if c.Bool("register-webhook") {
		if err := registerWebhook(c.Context, tg, cfg); err != nil {
			return err
		}
	}

	catalog := service.NewCatalog(service.DefaultProducts())
	orders := service.NewOrderService(orderStore, service.NewTimeIDGenerator(), cfg.StrictStatusTransitions)
	notifier := service.NewNotifier(tg, cfg.AdminChatID, cfg.Location(), cfg.Currency)
	router := bot.NewRouter(catalog, orders, bot.Options{
		ShopURL:       cfg.ShopURL(),
		Currency:      cfg.Currency,
		Location:      cfg.Location(),
		OrdersEnabled: cfg.Features.Orders,
	})

	h := handler.NewHandler(handler.Deps{
		Catalog:   catalog,
		Orders:    orders,
		Notifier:  notifier,
		Router:    router,
		Messenger: tg,
		Carts:     kv,
		Config:    cfg,
		Metrics:   metrics.New(prometheus.NewRegistry()),
	})
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(log.Fields{"port": cfg.Port, "storage": cfg.StorageBackend}).Info("server running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStores(cfg *config.Config) (store.KV, store.OrderStore, error) {
	switch cfg.StorageBackend {
	case config.StorageLocal:
		kv, err := store.OpenFileKV(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return kv, store.NewKVOrderStore(kv, cfg.OrdersKey), nil
	case config.StoragePostgres:
		pg, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		// carts stay in process memory; only orders are shared
		return store.NewMemoryKV(), pg, nil
	default:
		return store.NewMemoryKV(), store.NewMemoryOrderStore(), nil
	}
}

func migrateDB(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.ConfigureLogging(false)
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}
	log.Info("database migrations applied")
	return nil
}

func setWebhook(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.ConfigureLogging(false)
	if cfg.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	return registerWebhook(c.Context, telegram.NewClient(cfg.BotAPIURL, cfg.BotToken, cfg.RequestTimeout), cfg)
}

func registerWebhook(ctx context.Context, tg *telegram.Client, cfg *config.Config) error {
	if cfg.WebhookURL == "" {
		return errors.New("WEBHOOK_URL is required")
	}
	if err := tg.SetWebhook(ctx, cfg.WebhookEndpoint()); err != nil {
		return err
	}
	log.WithField("url", cfg.WebhookEndpoint()).Info("webhook set")
	return nil
}
