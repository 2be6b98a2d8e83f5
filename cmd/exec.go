package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"

	"guestpass/config"
	"guestpass/handlers"
	"guestpass/internal/provider"
	"guestpass/internal/store"
	_ "guestpass/migrations"
	"guestpass/services"
	"guestpass/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	go handleShutdown(cancel)

	// Admission broadcaster: in-process by default, PubNub when the keys are
	// configured (multi-instance deployments).
	var broadcaster services.Broadcaster
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		broadcaster = services.NewPubNubBroadcaster(pubnub.NewPubNub(pnConfig))
	} else {
		broadcaster = services.NewMemoryBroadcaster()
	}

	// Initialize services
	st := store.New(app)
	limiter := services.NewRateLimiter(redisClient, cfg.RateLimitMaxRetries)
	ticketService := services.NewTicketService(st, cfg.TicketSecret, cfg.TicketGrace)
	deliverer := services.NewGuardedDeliverer(services.LogDeliverer{}, cfg.DeliveryTimeout)
	paymentService := services.NewPaymentService(st, ticketService, deliverer)
	checkinService := services.NewCheckinService(st, ticketService, broadcaster)

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(paymentService, limiter, cfg.WebhookSecret, cfg.WebhookMaxAttempts, cfg.WebhookWindow)
	checkinHandler := handlers.NewCheckinHandler(checkinService, limiter, cfg.ScanMaxAttempts, cfg.ScanWindow)
	ticketHandler := handlers.NewTicketHandler(ticketService, st, deliverer, limiter, cfg.LinkMaxAttempts, cfg.LinkWindow)
	adminHandler := handlers.NewAdminHandler(paymentService)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Metrics and liveness live on their own port
	if cfg.EnableMetrics {
		startOpsServer(cfg.MetricsPort, redisClient, limiter)
	}

	// Secondary confirmation intake: the provider's PubNub notifications feed
	// the same idempotent confirm path as the webhook.
	if cfg.ProviderPubNubSub != "" {
		listener := provider.NewListener(cfg.ProviderPubNubSub, cfg.ProviderPubNubUUID, cfg.ProviderChannel)
		go listener.Run(ctx)
		go consumeProviderNotifications(ctx, listener, paymentService)
	}

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Payment provider intake
		e.Router.POST("/api/v1/payments/webhook", webhookHandler.Handle)

		// Check-in endpoints
		e.Router.POST("/api/v1/checkin/scan", checkinHandler.Scan)
		e.Router.POST("/api/v1/checkin/submit", checkinHandler.Submit)

		// Ticket endpoints
		e.Router.GET("/api/v1/registrations/{id}/ticket", ticketHandler.GetTicket)
		e.Router.POST("/api/v1/registrations/{id}/ticket-link", ticketHandler.RequestTicketLink)

		// Admin endpoints
		e.Router.POST("/api/v1/admin/payments/approve-manual", adminHandler.ApproveManual)

		log.Println("Server routes registered")

		return e.Next()
	})

	return app.Start()
}

func consumeProviderNotifications(ctx context.Context, listener *provider.Listener, payments *services.PaymentService) {
	for {
		select {
		case n := <-listener.Notifications():
			switch n.Status {
			case "success":
				if _, err := payments.Confirm(ctx, n.SessionRef, n.ChargeRef); err != nil {
					slog.Error("provider notification confirm failed", "session_ref", n.SessionRef, "error", err)
				}
			case "failed", "expired":
				if err := payments.Cancel(ctx, n.SessionRef); err != nil {
					slog.Error("provider notification cancel failed", "session_ref", n.SessionRef, "error", err)
				}
			default:
				slog.Info("ignoring provider notification", "status", n.Status, "session_ref", n.SessionRef)
			}

		case <-ctx.Done():
			return
		}
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
