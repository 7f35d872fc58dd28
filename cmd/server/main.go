package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	accounthandler "signup-verify/internal/account/handler"
	accountrepo "signup-verify/internal/account/repository"
	accountservice "signup-verify/internal/account/service"
	"signup-verify/internal/config"
	"signup-verify/internal/db"
	"signup-verify/internal/devcode"
	devcodehandler "signup-verify/internal/devcode/handler"
	healthhandler "signup-verify/internal/health/handler"
	"signup-verify/internal/logging"
	"signup-verify/internal/notify"
	"signup-verify/internal/security"
	"signup-verify/internal/server"
	"signup-verify/internal/session"
	"signup-verify/internal/telemetry"
	telemetryotel "signup-verify/internal/telemetry/otel"
	"signup-verify/internal/telemetry/producer"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatalf("config: DATABASE_URL is required")
	}

	appLog := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx := context.Background()
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	metrics, err := telemetry.NewMetrics(otel.Meter(cfg.ServiceName))
	if err != nil {
		log.Fatalf("telemetry metrics: %v", err)
	}

	emitters := telemetry.Fanout{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	var eventProducer producer.Producer
	if kp := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.TelemetryKafkaTopic); kp != nil {
		eventProducer = kp
		emitters = append(emitters, kp)
		log.Printf("publishing domain events to Kafka topic %s", cfg.TelemetryKafkaTopic)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	var (
		sender      notify.Sender
		devCodeRoot server.RouteRegistrar
	)
	if cfg.DevCodeMode {
		codes := devcode.NewMemoryStore()
		sender = notify.NewDevSender(codes, appLog)
		devCodeRoot = devcodehandler.NewHandler(codes)
		log.Printf("DEV_CODE_MODE enabled: verification codes are served at /dev/verification-code/{id}")
	} else {
		smtpSender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			BaseURL:  cfg.PublicBaseURL,
			Timeout:  cfg.SMTPSendTimeout(),
		})
		if err != nil {
			log.Fatalf("notify: %v", err)
		}
		sender = smtpSender
	}

	store := accountservice.NewAccountStore(
		accountrepo.NewPostgresRepository(database),
		security.NewHasher(cfg.BcryptCost),
		accountservice.NewEmailChecker(cfg.RejectDisposableEmail),
	)
	policy := security.PasswordPolicy{MinEntropy: cfg.PasswordMinEntropy}
	registration := accountservice.NewRegistrationService(store, policy, sender, emitters, metrics, appLog)
	verification := accountservice.NewVerificationService(store, emitters, metrics, appLog)

	sessions := session.NewManager([]byte(cfg.SessionSecret), session.Options{
		MaxAge: cfg.SessionTTL(),
		Secure: cfg.SessionSecureCookie,
	})

	router := server.NewRouter(server.Deps{
		Routes: []server.RouteRegistrar{
			healthhandler.NewHandler(database, appLog),
			accounthandler.NewHandler(registration, verification, sessions, appLog),
			devCodeRoot,
		},
		Sessions:    sessions,
		Log:         appLog,
		CORSOrigins: cfg.CORSOrigins(),
	})
	srv := server.NewHTTPServer(cfg.HTTPAddr, router)

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
	defer drainCancel()
	if err := telemetry.Drain(drainCtx); err != nil {
		log.Printf("telemetry drain: %v", err)
	}
	if eventProducer != nil {
		if err := eventProducer.Close(); err != nil {
			log.Printf("kafka close: %v", err)
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
