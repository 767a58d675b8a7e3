package notifier

import (
	"time"

	"pottery-booking-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notifier is the customer notification contract. Delivery is fire and
// forget: implementations report errors for logging, but no caller rolls
// back state over a failed notification.
type Notifier interface {
	SendPaymentSuccess(email, bookingNumber, transactionID string, amount decimal.Decimal) error
	SendPaymentFailure(email, bookingNumber, reason string) error
	SendBookingConfirmation(email, bookingNumber, workshopName string, slotDateTime time.Time, amount decimal.Decimal) error
}

// LogNotifier writes notifications to the service log. Stands in for the
// real email/SMS channel in development.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: util.GetLogger()}
}

func (n *LogNotifier) SendPaymentSuccess(email, bookingNumber, transactionID string, amount decimal.Decimal) error {
	util.NotificationsSentTotal.WithLabelValues("payment_success").Inc()
	n.logger.Info("Notification: payment success",
		zap.String("email", email),
		zap.String("booking_number", bookingNumber),
		zap.String("transaction_id", transactionID),
		zap.String("amount", amount.String()))
	return nil
}

func (n *LogNotifier) SendPaymentFailure(email, bookingNumber, reason string) error {
	util.NotificationsSentTotal.WithLabelValues("payment_failure").Inc()
	n.logger.Info("Notification: payment failure",
		zap.String("email", email),
		zap.String("booking_number", bookingNumber),
		zap.String("reason", reason))
	return nil
}

func (n *LogNotifier) SendBookingConfirmation(email, bookingNumber, workshopName string, slotDateTime time.Time, amount decimal.Decimal) error {
	util.NotificationsSentTotal.WithLabelValues("booking_confirmation").Inc()
	n.logger.Info("Notification: booking confirmation",
		zap.String("email", email),
		zap.String("booking_number", bookingNumber),
		zap.String("workshop", workshopName),
		zap.Time("slot", slotDateTime),
		zap.String("amount", amount.String()))
	return nil
}
