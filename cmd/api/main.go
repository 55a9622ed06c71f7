package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clinicdesk/clinic-api/internal/billing"
	"github.com/clinicdesk/clinic-api/internal/config"
	appointmentHandler "github.com/clinicdesk/clinic-api/internal/handler/appointment"
	authHandler "github.com/clinicdesk/clinic-api/internal/handler/auth"
	billingHandler "github.com/clinicdesk/clinic-api/internal/handler/billing"
	doctorHandler "github.com/clinicdesk/clinic-api/internal/handler/doctor"
	healthHandler "github.com/clinicdesk/clinic-api/internal/handler/health"
	patientHandler "github.com/clinicdesk/clinic-api/internal/handler/patient"
	"github.com/clinicdesk/clinic-api/internal/middleware"
	"github.com/clinicdesk/clinic-api/internal/repository/postgres"
	"github.com/clinicdesk/clinic-api/internal/router"
	appointmentService "github.com/clinicdesk/clinic-api/internal/service/appointment"
	authService "github.com/clinicdesk/clinic-api/internal/service/auth"
	doctorService "github.com/clinicdesk/clinic-api/internal/service/doctor"
	patientService "github.com/clinicdesk/clinic-api/internal/service/patient"
	"github.com/clinicdesk/clinic-api/internal/worker"
	"github.com/clinicdesk/clinic-api/pkg/auth"
	"github.com/clinicdesk/clinic-api/pkg/logger"
	"github.com/clinicdesk/clinic-api/pkg/messaging"
	redisbroker "github.com/clinicdesk/clinic-api/pkg/messaging/redis"
	"github.com/clinicdesk/clinic-api/pkg/metrics"
	"github.com/clinicdesk/clinic-api/pkg/security"
	"github.com/clinicdesk/clinic-api/pkg/validator"
	outboxWorker "github.com/clinicdesk/clinic-api/pkg/worker"
)

func main() {
	log := logger.New(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	// Repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	billRepo := postgres.NewBillRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	transactor := postgres.NewTransactor(db)

	// Shared infrastructure
	registry := prometheus.NewRegistry()
	m := metrics.New("clinic")
	m.Register(registry)

	hasher := security.NewBcryptHasher(0)
	tokens := auth.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	v := validator.New()

	// Services
	engine := billing.NewService(appointmentRepo, billRepo, outboxRepo, transactor, m, log)
	sweeper := worker.NewBillSweeper(billRepo, doctorRepo, cfg.Billing.SweepRetention(), log, m)
	appointmentSvc := appointmentService.NewService(appointmentRepo, doctorRepo, patientRepo)
	patientSvc := patientService.NewService(patientRepo, appointmentRepo, hasher)
	doctorSvc := doctorService.NewService(doctorRepo, hasher)
	authSvc := authService.NewService(patientRepo, doctorRepo, hasher, tokens)

	// Middleware and handlers
	actors := middleware.NewActorMiddleware(tokens)

	authH := authHandler.NewHandler(authSvc, v)
	patientH := patientHandler.NewHandler(patientSvc, actors, v)
	doctorH := doctorHandler.NewHandler(doctorSvc, engine, sweeper, actors, v)
	appointmentH := appointmentHandler.NewHandler(appointmentSvc, actors, v)
	billingH := billingHandler.NewHandler(engine, actors, v)
	healthH := healthHandler.NewHandler(db)

	r := router.New(log, actors, registry, router.Config{
		RateLimitRPS:   100,
		RateLimitBurst: 200,
		MetricsPrefix:  "clinic_http",
	})
	r.Setup(
		[]router.Handler{healthH, authH, publicRegistration{patientH}},
		[]router.Handler{patientH, doctorH, appointmentH, billingH},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	// The outbox processor is optional in the API process; without a broker
	// the events stay pending for the dedicated worker.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisbroker.NewBroker(redisbroker.Config{URL: cfg.Redis.URL})
		if err != nil {
			log.Fatal(err, "failed to connect to redis")
		}
		defer broker.Close()

		processor := outboxWorker.NewOutboxProcessor(outboxRepo, broker, outboxWorker.OutboxProcessorConfig{
			BatchSize:          cfg.Outbox.BatchSize,
			PollInterval:       time.Duration(cfg.Outbox.PollIntervalSeconds) * time.Second,
			RetryAttempts:      cfg.Outbox.RetryAttempts,
			RetryDelay:         time.Duration(cfg.Outbox.RetryDelaySeconds) * time.Second,
			ProcessedRetention: time.Duration(cfg.Outbox.RetentionProcessedHr) * time.Hour,
		}, log, m)
		go processor.Start(ctx)
	}

	go func() {
		log.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "forced shutdown")
	}
	log.Info("server stopped")
}

// publicRegistration narrows the patient handler to its unauthenticated
// registration route.
type publicRegistration struct {
	h *patientHandler.Handler
}

func (p publicRegistration) RegisterRoutes(rg *gin.RouterGroup) {
	p.h.RegisterPublicRoutes(rg)
}
