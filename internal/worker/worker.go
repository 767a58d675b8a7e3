package worker

import (
	"context"

	"pottery-booking-service/internal/broker"
	"pottery-booking-service/internal/models"
	"pottery-booking-service/internal/notifier"
	"pottery-booking-service/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker consumes payment outcome events and dispatches customer
// notifications. Delivery errors are logged and the message is still
// committed; a dead notification channel must not wedge the consumer group
// or roll back any payment state.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	notifier     notifier.Notifier
	logger       *zap.Logger
}

// NewNotificationWorker creates a notification worker
func NewNotificationWorker(consumer *broker.Consumer, n notifier.Notifier) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		notifier: n,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentSuccess(w.handlePaymentSuccess)
	eventHandler.OnPaymentFailed(w.handlePaymentFailed)
	eventHandler.OnPaymentRefunded(w.handlePaymentRefunded)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handlePaymentSuccess(ctx context.Context, event *models.PaymentSuccessEvent) error {
	if err := w.notifier.SendPaymentSuccess(event.CustomerEmail, event.BookingNumber, event.TransactionID, event.Amount); err != nil {
		w.logger.Error("Failed to send payment success notification",
			zap.String("booking_number", event.BookingNumber),
			zap.Error(err))
	}

	if err := w.notifier.SendBookingConfirmation(event.CustomerEmail, event.BookingNumber, event.WorkshopName, event.SlotDateTime, event.Amount); err != nil {
		w.logger.Error("Failed to send booking confirmation",
			zap.String("booking_number", event.BookingNumber),
			zap.Error(err))
	}

	return nil
}

func (w *NotificationWorker) handlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	if err := w.notifier.SendPaymentFailure(event.CustomerEmail, event.BookingNumber, event.Reason); err != nil {
		w.logger.Error("Failed to send payment failure notification",
			zap.String("booking_number", event.BookingNumber),
			zap.Error(err))
	}
	return nil
}

func (w *NotificationWorker) handlePaymentRefunded(ctx context.Context, event *models.PaymentRefundedEvent) error {
	// Refunds reuse the failure channel wording until a dedicated template
	// exists.
	if err := w.notifier.SendPaymentFailure(event.CustomerEmail, event.BookingNumber, "Payment refunded"); err != nil {
		w.logger.Error("Failed to send refund notification",
			zap.String("booking_number", event.BookingNumber),
			zap.Error(err))
	}
	return nil
}
