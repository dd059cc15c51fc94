package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/apimeter/backend/internal/config"
	"github.com/apimeter/backend/internal/handler"
	appMiddleware "github.com/apimeter/backend/internal/middleware"
	"github.com/apimeter/backend/internal/repository"
	"github.com/apimeter/backend/internal/service"
	"github.com/apimeter/backend/internal/ws"
	"github.com/apimeter/backend/pkg/crypto"
	"github.com/apimeter/backend/pkg/payment"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func main() {
	// Load .env file if present (for local development)
	loadDotEnv()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}

	ctx := context.Background()

	// Initialize database
	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Database error: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := repository.RunMigrations(ctx, db); err != nil {
		log.Fatalf("❌ Migration error: %v", err)
	}
	log.Println("✅ Database connected & migrated")

	// Initialize encryptor (API key secrets at rest)
	enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("❌ Encryption error: %v", err)
	}

	// Repositories
	accountRepo := repository.NewAccountRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	planRepo := repository.NewPlanRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	endpointRepo := repository.NewEndpointRepository(db)
	apiKeyRepo := repository.NewAPIKeyRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Seed the plan catalog on first startup
	if err := planRepo.Seed(ctx); err != nil {
		log.Fatalf("❌ Plan seed error: %v", err)
	}
	log.Println("✅ Plan catalog seeded")

	// Services
	feedHub := ws.NewHub()
	creditSvc := service.NewCreditService(ledgerRepo, accountRepo, cfg.OveragePolicy, feedHub)
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword, accountRepo, planRepo, creditSvc)

	// Seed admin account on first startup
	if err := authSvc.SeedAdmin(ctx); err != nil {
		log.Fatalf("❌ Admin seed error: %v", err)
	}

	usageSvc := service.NewUsageService(ledgerRepo, accountRepo, apiKeyRepo)
	mockPayment := payment.NewMockGateway()
	subSvc := service.NewSubscriptionService(subRepo, planRepo, accountRepo, ledgerRepo, mockPayment)
	endpointSvc := service.NewEndpointService(endpointRepo, accountRepo, creditSvc)
	apiKeySvc := service.NewAPIKeyService(apiKeyRepo, enc)
	systemSvc := service.NewSystemService(settingsRepo)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	apiKeyHandler := handler.NewAPIKeyHandler(apiKeySvc)
	creditsHandler := handler.NewCreditsHandler(creditSvc, usageSvc)
	dashboardHandler := handler.NewDashboardHandler(usageSvc)
	billingHandler := handler.NewBillingHandler(subSvc, mockPayment)
	plansHandler := handler.NewPlansHandler(planRepo)
	endpointsHandler := handler.NewEndpointsHandler(endpointSvc)
	adminHandler := handler.NewAdminHandler(authSvc, subSvc, systemSvc, accountRepo, subRepo, ledgerRepo)
	healthHandler := handler.NewHealthHandler(db, systemSvc)
	feedHandler := ws.NewFeedHandler(feedHub, authSvc)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery)
	r.Use(appMiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(20, 40)
	r.Use(globalRL.Middleware())

	// Health check and public routes (no auth)
	r.Get("/health", healthHandler.Check)
	r.Get("/api/v1/billing/plans", plansHandler.List)
	r.Post("/api/v1/billing/webhook", billingHandler.Webhook) // Signature-verified

	// Auth routes (strict limiter against credential stuffing)
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter())
		r.Post("/api/v1/auth/register", authHandler.Register)
		r.Post("/api/v1/auth/login", authHandler.Login)
	})

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(authSvc))
		r.Use(appMiddleware.Maintenance(systemSvc))

		// Auth
		r.Post("/api/v1/auth/logout", authHandler.Logout)
		r.Get("/api/v1/auth/me", authHandler.Me)

		// API keys
		r.Get("/api/v1/auth/api-keys", apiKeyHandler.List)
		r.Post("/api/v1/auth/api-keys", apiKeyHandler.Create)
		r.Patch("/api/v1/auth/api-keys/{id}", apiKeyHandler.Update)
		r.Delete("/api/v1/auth/api-keys/{id}", apiKeyHandler.Delete)

		// Credits
		r.Get("/api/v1/auth/credits/balance", creditsHandler.Balance)
		r.Get("/api/v1/auth/credits/history", creditsHandler.History)
		r.Get("/api/v1/auth/credits/usage-stats", creditsHandler.UsageStats)

		// Dashboard
		r.Get("/api/v1/dashboard/stats", dashboardHandler.Stats)

		// Billing
		r.Post("/api/v1/billing/checkout", billingHandler.CreateCheckout)
		r.Get("/api/v1/billing/subscription", billingHandler.GetSubscription)
		r.Post("/api/v1/billing/cancel", billingHandler.Cancel)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AdminOnly)

			r.Get("/api/v1/admin/system-stats", adminHandler.GetStats)

			r.Get("/api/v1/admin/users", adminHandler.ListAccounts)
			r.Post("/api/v1/admin/users", adminHandler.CreateAccount)
			r.Get("/api/v1/admin/users/{id}", adminHandler.GetAccount)
			r.Put("/api/v1/admin/users/{id}", adminHandler.UpdateAccount)
			r.Put("/api/v1/admin/users/{id}/plan", adminHandler.ChangePlan)
			r.Delete("/api/v1/admin/users/{id}", adminHandler.DeactivateAccount)

			r.Post("/api/v1/admin/credits/add", creditsHandler.AdminAdd)
			r.Post("/api/v1/admin/credits/remove", creditsHandler.AdminRemove)
			r.Get("/api/v1/admin/credits/{accountId}/history", creditsHandler.AdminHistory)
			r.Get("/api/v1/admin/credits/{accountId}/reconcile", creditsHandler.AdminReconcile)

			r.Get("/api/v1/admin/plans", plansHandler.AdminList)
			r.Post("/api/v1/admin/plans", plansHandler.AdminCreate)
			r.Put("/api/v1/admin/plans/{id}", plansHandler.AdminUpdate)
			r.Delete("/api/v1/admin/plans/{id}", plansHandler.AdminDelete)

			r.Get("/api/v1/admin/endpoints", endpointsHandler.List)
			r.Post("/api/v1/admin/endpoints", endpointsHandler.Create)
			r.Get("/api/v1/admin/endpoints/{id}", endpointsHandler.Get)
			r.Put("/api/v1/admin/endpoints/{id}", endpointsHandler.Update)
			r.Delete("/api/v1/admin/endpoints/{id}", endpointsHandler.Delete)
			r.Post("/api/v1/admin/endpoints/{id}/bill", endpointsHandler.Bill)

			// Super-admin only
			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.SuperAdminOnly)
				r.Get("/api/v1/admin/maintenance-mode", adminHandler.GetMaintenance)
				r.Put("/api/v1/admin/maintenance-mode", adminHandler.SetMaintenance)
			})
		})
	})

	// WebSocket admin feed (auth via query param)
	r.HandleFunc("/ws/admin/feed", feedHandler.Handle)

	// Start server
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout must be 0 for WebSocket connections (they are long-lived)
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("🛑 Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("🚀 APIMeter Backend listening at http://%s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("❌ Server error: %v", err)
	}
}

// loadDotEnv reads a .env file if it exists. Values already set in the
// environment win.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
