package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vivekvardhan7/homesaloon/libs/config"
	"github.com/vivekvardhan7/homesaloon/libs/db"
	"github.com/vivekvardhan7/homesaloon/libs/httpx"
	"github.com/vivekvardhan7/homesaloon/libs/kafkax"
	otelx "github.com/vivekvardhan7/homesaloon/libs/otel"
	"github.com/vivekvardhan7/homesaloon/libs/runtime"
	"github.com/vivekvardhan7/homesaloon/services/notification-service/internal/consumer"
	"github.com/vivekvardhan7/homesaloon/services/notification-service/internal/email"
	"github.com/vivekvardhan7/homesaloon/services/notification-service/internal/inbox"
	"github.com/vivekvardhan7/homesaloon/services/notification-service/internal/sms"
	"github.com/vivekvardhan7/homesaloon/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type bookingEvent struct {
	BookingID  string `json:"booking_id"`
	CustomerID string `json:"customer_id"`
	VendorID   string `json:"vendor_id"`
	Status     string `json:"status"`
	Total      int64  `json:"total"`
	Reason     string `json:"reason"`
	Version    int64  `json:"version"`
}

// messageFor maps a lifecycle topic to customer-facing copy. Internal routing
// events (vendor assigned, vendor rejected) stay quiet; the manager console
// watches those through its list views.
func messageFor(topic string, evt bookingEvent) (subject, body string, notify bool) {
	switch topic {
	case "booking.created.v1":
		return "Booking received",
			fmt.Sprintf("We received your booking %s. We will confirm it shortly.", evt.BookingID),
			true
	case "booking.vendor_accepted.v1":
		return "Booking accepted",
			fmt.Sprintf("Your booking %s was accepted. A beautician will be assigned soon.", evt.BookingID),
			true
	case "booking.beautician_assigned.v1":
		return "Booking confirmed",
			fmt.Sprintf("Your booking %s is confirmed and a beautician has been assigned.", evt.BookingID),
			true
	case "booking.status_changed.v1":
		return "Booking update",
			fmt.Sprintf("Your booking %s is now %s.", evt.BookingID, evt.Status),
			true
	default:
		return "", "", false
	}
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@homesaloon.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)

	var smsSender sms.Sender
	switch strings.ToLower(config.String("SMS_PROVIDER", "noop")) {
	case "webhook":
		smsSender = sms.NewWebhookSender(config.String("SMS_WEBHOOK_URL", ""), config.String("SMS_WEBHOOK_TOKEN", ""))
	default:
		smsSender = sms.NewNoopSender()
	}

	brokers := config.String("KAFKA_BROKERS", "")
	consumerCfg := consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics: []string{
			"booking.created.v1",
			"booking.vendor_assigned.v1",
			"booking.vendor_accepted.v1",
			"booking.vendor_rejected.v1",
			"booking.beautician_assigned.v1",
			"booking.status_changed.v1",
		},
	}
	eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, func(ctx context.Context, msg kafka.Message) error {
		var evt bookingEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid booking event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if evt.BookingID == "" || evt.CustomerID == "" {
			logger.Error("booking event missing required fields", "topic", msg.Topic)
			return nil
		}

		subject, body, notify := messageFor(msg.Topic, evt)
		if !notify {
			return nil
		}

		contact, found, err := notificationsRepo.LookupContact(ctx, evt.CustomerID)
		if err != nil {
			return err
		}
		if !found {
			logger.Warn("customer contact not found", "customer_id", evt.CustomerID, "booking_id", evt.BookingID)
			return nil
		}

		deliver(ctx, logger, notificationsRepo, emailSender, smsSender, msg.Topic, evt, contact, subject, body)
		return nil
	})
	go eventConsumer.Run(ctx)

	inboxRetention := 7 * 24 * time.Hour
	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := inboxRepo.Prune(ctx, inboxRetention)
				if err != nil {
					logger.Error("inbox prune failed", "err", err)
					continue
				}
				if n > 0 {
					logger.Info("inbox pruned", "rows", n)
				}
			}
		}
	}()

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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

func deliver(ctx context.Context, logger *slog.Logger, repo *storage.Repository, emailSender email.Sender, smsSender sms.Sender, topic string, evt bookingEvent, contact storage.Contact, subject, body string) {
	payload := map[string]any{
		"booking_id": evt.BookingID,
		"status":     evt.Status,
		"total":      evt.Total,
	}

	if contact.Email != "" {
		status := "sent"
		if err := emailSender.Send(contact.Email, subject, body); err != nil {
			status = "failed"
			logger.Error("email send failed", "err", err, "booking_id", evt.BookingID)
		}
		if err := repo.Insert(ctx, storage.Notification{
			BookingID: evt.BookingID,
			EventType: topic,
			Channel:   "email",
			Recipient: contact.Email,
			Payload:   payload,
			Status:    status,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
		}
	}

	if contact.Phone != "" {
		status := "sent"
		if err := smsSender.Send(ctx, contact.Phone, body); err != nil {
			status = "failed"
			logger.Error("sms send failed", "err", err, "booking_id", evt.BookingID)
		}
		if err := repo.Insert(ctx, storage.Notification{
			BookingID: evt.BookingID,
			EventType: topic,
			Channel:   "sms",
			Recipient: contact.Phone,
			Payload:   payload,
			Status:    status,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
		}
	}
}
