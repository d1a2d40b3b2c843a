package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stayvibe/internal/app/payment"
	"stayvibe/internal/app/policies"
	"stayvibe/internal/app/poller"
	"stayvibe/internal/app/session"
	"stayvibe/internal/domain/booking"
	"stayvibe/internal/domain/pricing"
	"stayvibe/internal/domain/shared/money"
	"stayvibe/internal/infra/broker/kafka"
	"stayvibe/internal/infra/config"
	mongodb "stayvibe/internal/infra/db/mongo"
	ginserver "stayvibe/internal/infra/http/gin"
	"stayvibe/internal/infra/metrics"
	"stayvibe/internal/infra/obs"
	"stayvibe/internal/infra/rails/chain"
	"stayvibe/internal/infra/rails/mpesa"
	"stayvibe/internal/infra/rails/paystack"
	"stayvibe/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := buildApplication(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.NewHealthHandlers(app.ready), app.metrics, app.handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	metrics  *metrics.Metrics
	producer *kafka.Producer
	mongo    *mongodb.Client
}

func buildApplication(cfg config.Config, logger *slog.Logger) (*application, error) {
	sessions := session.NewManager(nil)

	calc, err := pricing.NewCalculator(
		money.Money{Amount: cfg.NightlyRateCents, Currency: cfg.Currency},
		money.Money{Amount: cfg.FixedDepositCents, Currency: cfg.Currency},
	)
	if err != nil {
		return nil, err
	}

	app := &application{metrics: metrics.New()}

	var bookings policies.BookingService
	var lister policies.BookingLister
	switch cfg.StorageMode {
	case "mongo":
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		idxCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = client.EnsureBookingIndexes(idxCtx)
		cancel()
		if err != nil {
			logger.Warn("booking index creation failed", "error", err)
		}
		store := mongodb.NewBookingStore(client.DB, nil)
		app.mongo = client
		bookings, lister = store, store
	default:
		store := memory.NewBookingStore(nil)
		bookings, lister = store, store
	}

	var publisher policies.Publisher = policies.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, nil)
		if err != nil {
			logger.Warn("kafka unavailable, events disabled", "error", err)
		} else {
			app.producer = producer
			publisher = producer
		}
	}

	pushRail := mpesa.New(mpesa.Config{
		BaseURL:   cfg.PushBaseURL,
		Shortcode: cfg.PushShortcode,
	})
	hostedRail := paystack.New(paystack.Config{
		BaseURL:     cfg.HostedBaseURL,
		SecretKey:   cfg.HostedSecretKey,
		CallbackURL: cfg.HostedCallbackURL,
	})
	chainRail := chain.New(chain.Config{
		RPCURL:        cfg.ChainRPCURL,
		ContractAddr:  cfg.ChainContractAddr,
		Confirmations: cfg.ChainConfirmations,
	})

	orchestrator := payment.NewOrchestrator(
		bookings,
		map[booking.Rail]policies.Rail{
			booking.RailPush:    pushRail,
			booking.RailHosted:  hostedRail,
			booking.RailOnChain: chainRail,
		},
		calc,
		publisher,
		sessions,
		payment.Config{
			Cooldown:        cfg.TransactionCooldown,
			BalanceLegDelay: cfg.BalanceLegDelay,
			Poll:            poller.Options{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts},
		},
		logger,
		nil,
	)

	app.handlers = ginserver.Handlers{
		Calendar: ginserver.CalendarHandler{Bookings: bookings, Sessions: sessions, Calc: calc},
		Booking:  ginserver.BookingHandler{Orchestrator: orchestrator, Lister: lister, Metrics: app.metrics},
		Payment:  ginserver.PaymentHandler{Orchestrator: orchestrator, Push: pushRail},
		Session:  ginserver.SessionHandler{Sessions: sessions},
	}
	return app, nil
}

func (a *application) ready() error {
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return a.mongo.Ping(ctx)
	}
	return nil
}

func (a *application) close(logger *slog.Logger) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Warn("kafka producer close failed", "error", err)
		}
	}
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.mongo.Close(ctx); err != nil {
			logger.Warn("mongo disconnect failed", "error", err)
		}
	}
}
