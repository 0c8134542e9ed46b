package main

import (
	"context"
	"net/http"
	"time"

	"github.com/vivekvardhan7/homesaloon/libs/config"
	"github.com/vivekvardhan7/homesaloon/libs/db"
	"github.com/vivekvardhan7/homesaloon/libs/httpx"
	"github.com/vivekvardhan7/homesaloon/libs/kafkax"
	otelx "github.com/vivekvardhan7/homesaloon/libs/otel"
	"github.com/vivekvardhan7/homesaloon/libs/runtime"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/handlers"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/outbox"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/payments"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewBookingRepository(pool)
	vendorRepo := storage.NewVendorRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: time.Second,
		BatchSize: 100,
	})
	go outboxPublisher.Run(ctx)

	var processor payments.Processor = payments.MockProcessor{}
	if key := config.String("STRIPE_SECRET_KEY", ""); key != "" {
		processor = payments.NewStripeProcessor(key, config.String("PAYMENT_CURRENCY", "inr"), logger)
		logger.Info("stripe payment processor enabled")
	}

	cutoffHour, err := config.IntInRange("SAME_DAY_CUTOFF_HOUR", "18", 1, 23)
	if err != nil {
		panic(err)
	}

	bookingHandler := handlers.NewBookingHandler(repo, vendorRepo, outboxRepo, processor, logger, cutoffHour)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			bookingHandler.Create(w, r)
		case http.MethodGet:
			bookingHandler.List(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/bookings/get", bookingHandler.Get)
	mux.HandleFunc("/api/v1/bookings/status", bookingHandler.SetStatus)
	mux.HandleFunc("/api/v1/manager/bookings/assign-vendor", bookingHandler.AssignVendor)
	mux.HandleFunc("/api/v1/manager/bookings/assign-beautician", bookingHandler.AssignBeautician)
	mux.HandleFunc("/api/v1/vendor/bookings/approve", bookingHandler.Approve)
	mux.HandleFunc("/api/v1/vendor/bookings/reject", bookingHandler.Reject)
	mux.HandleFunc("/api/v1/vendor/bookings/assign-beautician", bookingHandler.AssignBeautician)
	mux.HandleFunc("/api/v1/public/vendors", bookingHandler.Vendors)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
