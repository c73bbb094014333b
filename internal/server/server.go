package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/events"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/money"
	"storefront/internal/payment/paypal"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	db        *sql.DB
	redis     *redis.Client
	publisher events.Publisher
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, rdb *redis.Client) (*Server, error) {
	formatter, err := money.NewFormatter(cfg.Currency.Code, cfg.Currency.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to configure currency: %w", err)
	}

	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			custommiddleware.RespondWithError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Initialize repositories
	categoryRepo := repository.NewCategoryRepository(db)
	productRepo := repository.NewProductRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)

	// Initialize services
	settingsService := service.NewSettingsService(settingsRepo)
	catalogService := service.NewCatalogService(productRepo, categoryRepo, settingsService)
	adminService := service.NewAdminService(categoryRepo, productRepo)
	orderService := service.NewOrderService(orderRepo, productRepo, categoryRepo, publisher, logger)

	var payments checkout.PaymentCapturer
	if cfg.PayPal.Enabled() {
		payments = paypal.NewClient(paypal.Config{
			BaseURL:      cfg.PayPal.BaseURL,
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			Timeout:      cfg.PayPal.Timeout,
		})
	} else {
		logger.Warn("PayPal credentials missing, paypal checkout is disabled")
	}

	orchestrator := checkout.NewOrchestrator(settingsService, productRepo, orderService, payments, formatter, logger)
	carts := cart.NewRedisPersister(rdb, cfg.Session.CartTTL)

	// Initialize handlers
	catalogHandler := transport.NewCatalogHandler(catalogService, settingsService, logger)
	cartHandler := transport.NewCartHandler(carts, catalogService, logger)
	checkoutHandler := transport.NewCheckoutHandler(carts, orchestrator, logger)
	adminHandler := transport.NewAdminHandler(adminService, settingsService, orderService, logger)

	sessions := custommiddleware.NewCookieStore(cfg.Session.Secret, cfg.Session.MaxAge, cfg.Session.Secure)
	rateLimit := custommiddleware.RateLimitMiddleware(rdb, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "rate_limit",
	}, logger)

	// Register routes
	catalogHandler.RegisterRoutes(router)

	router.Group(func(r chi.Router) {
		r.Use(custommiddleware.CartSession(sessions, cfg.Session.CookieName, logger))
		r.Use(rateLimit)

		cartHandler.RegisterRoutes(r)
		checkoutHandler.RegisterRoutes(r)
	})

	adminHandler.RegisterRoutes(router,
		custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger),
		custommiddleware.RequireAdmin(cfg.JWT.AdminRole, logger),
	)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      otelhttp.NewHandler(router, "storefront"),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:    cfg,
		logger:    logger,
		db:        db,
		redis:     rdb,
		publisher: publisher,
	}

	return server, nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if err := s.publisher.Close(); err != nil {
		s.logger.Error("Failed to close event publisher", zap.Error(err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
