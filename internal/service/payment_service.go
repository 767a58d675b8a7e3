package service

import (
	"context"
	"fmt"
	"time"

	"pottery-booking-service/internal/gateway"
	"pottery-booking-service/internal/models"
	"pottery-booking-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService drives a payment through its gateway and reconciles the
// gateway's answers with internal state. Every Payment status change commits
// in the same transaction as its audit log entry. Capacity release after a
// refund-driven cancellation is NOT done here; the caller invokes
// BookingService.ReleaseForRefund (see that method).
type PaymentService struct {
	store     Store
	gateways  *gateway.Factory
	publisher EventPublisher
	cache     Cache
	logger    *zap.Logger
}

// NewPaymentService creates a new payment orchestrator
func NewPaymentService(store Store, gateways *gateway.Factory, publisher EventPublisher, cache Cache) *PaymentService {
	return &PaymentService{
		store:     store,
		gateways:  gateways,
		publisher: publisher,
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// InitiatePaymentResponse is returned after a payment attempt is opened
type InitiatePaymentResponse struct {
	PaymentID     string `json:"payment_id"`
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url,omitempty"`
}

// InitiatePayment opens a payment attempt with the selected gateway and
// records it as PENDING together with its PaymentInitiated audit entry.
// Gateway failures are surfaced as-is; retries are the caller's concern.
func (ps *PaymentService) InitiatePayment(ctx context.Context, bookingID string, amount decimal.Decimal, gatewayName, customerEmail, customerPhone string) (*InitiatePaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.InitiatePayment")
	defer span.End()

	booking, err := ps.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	gw, err := ps.gateways.Resolve(gatewayName)
	if err != nil {
		return nil, err
	}

	util.PaymentAttemptsTotal.Inc()

	start := time.Now()
	result, err := gw.CreatePayment(ctx, amount, booking.BookingNumber, customerEmail, customerPhone)
	util.GatewayRequestLatency.WithLabelValues(gatewayName, "create").Observe(time.Since(start).Seconds())
	if err != nil {
		ps.logger.Error("Gateway payment creation failed",
			zap.String("booking_id", bookingID),
			zap.String("gateway", gatewayName),
			zap.Error(err))
		return nil, err
	}

	payment := &models.Payment{
		ID:              uuid.New().String(),
		BookingID:       bookingID,
		TransactionID:   result.TransactionID,
		Gateway:         gatewayName,
		Amount:          amount,
		Status:          models.PaymentStatusPending,
		GatewayResponse: result.RawResponse,
	}

	err = ps.store.WithTx(ctx, func(txCtx context.Context) error {
		if err := ps.store.CreatePayment(txCtx, payment); err != nil {
			return err
		}
		if err := ps.appendLog(txCtx, payment.ID, models.LogEventPaymentInitiated, "Payment initiated", result.RawResponse); err != nil {
			return err
		}
		return ps.store.UpdateBookingStatus(txCtx, bookingID, models.BookingStatusPaymentPending)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	ps.logger.Info("Payment initiated",
		zap.String("booking_id", bookingID),
		zap.String("payment_id", payment.ID),
		zap.String("transaction_id", result.TransactionID))

	ps.invalidate(ctx, bookingID)

	event := &models.PaymentInitiatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentInitiated,
			Timestamp: time.Now(),
		},
		PaymentID:     payment.ID,
		BookingID:     bookingID,
		TransactionID: result.TransactionID,
		Gateway:       gatewayName,
		Amount:        amount,
	}
	if err := ps.publisher.PublishPaymentInitiated(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentInitiated event", zap.Error(err))
	}

	return &InitiatePaymentResponse{
		PaymentID:     payment.ID,
		TransactionID: result.TransactionID,
		PaymentURL:    result.PaymentURL,
	}, nil
}

// VerifyPayment reconciles a gateway callback with internal state. Success
// moves the Payment to COMPLETED and the Booking to CONFIRMED; failure moves
// the Payment to FAILED. Either way the audit entry commits atomically with
// the status change, and the customer notification is fired afterwards,
// never rolling anything back.
func (ps *PaymentService) VerifyPayment(ctx context.Context, transactionID, signature, gatewayName string) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.VerifyPayment")
	defer span.End()

	payment, err := ps.store.GetPaymentByTransactionID(ctx, transactionID)
	if err != nil {
		return err
	}

	gw, err := ps.gateways.Resolve(gatewayName)
	if err != nil {
		return err
	}

	start := time.Now()
	result, verifyErr := gw.VerifyPayment(ctx, transactionID, signature)
	util.GatewayRequestLatency.WithLabelValues(gatewayName, "verify").Observe(time.Since(start).Seconds())

	var booking *models.Booking

	err = ps.store.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := ps.store.GetPaymentForUpdate(txCtx, payment.ID)
		if err != nil {
			return err
		}
		if locked.Status != models.PaymentStatusPending {
			return fmt.Errorf("payment %s is %s: %w", locked.ID, locked.Status, models.ErrInvalidStateTransition)
		}

		booking, err = ps.store.GetBookingByID(txCtx, locked.BookingID)
		if err != nil {
			return err
		}

		if verifyErr == nil {
			now := time.Now().UTC()
			if err := ps.store.UpdatePaymentStatus(txCtx, locked.ID, models.PaymentStatusCompleted, &now); err != nil {
				return err
			}
			if err := ps.store.UpdateBookingStatus(txCtx, booking.ID, models.BookingStatusConfirmed); err != nil {
				return err
			}
			return ps.appendLog(txCtx, locked.ID, models.LogEventPaymentVerified, "Payment verified successfully", result.RawResponse)
		}

		if err := ps.store.UpdatePaymentStatus(txCtx, locked.ID, models.PaymentStatusFailed, nil); err != nil {
			return err
		}
		return ps.appendLog(txCtx, locked.ID, models.LogEventPaymentFailed, "Payment verification failed", verifyErr.Error())
	})
	if err != nil {
		return err
	}

	ps.invalidate(ctx, booking.ID)

	if verifyErr == nil {
		util.PaymentSuccessTotal.Inc()
		ps.logger.Info("Payment verified", zap.String("transaction_id", transactionID))
		ps.publishSuccess(ctx, payment, booking)
		return nil
	}

	util.PaymentFailedTotal.Inc()
	ps.logger.Warn("Payment verification failed",
		zap.String("transaction_id", transactionID),
		zap.Error(verifyErr))
	ps.publishFailure(ctx, payment, booking, verifyErr.Error())
	return verifyErr
}

// ProcessRefund refunds a completed payment. A payment in any other status
// is rejected without touching state or the audit trail. On success the
// Payment moves to REFUNDED and the Booking to CANCELLED; the slot's
// capacity stays consumed until the caller runs
// BookingService.ReleaseForRefund.
func (ps *PaymentService) ProcessRefund(ctx context.Context, paymentID string, amount decimal.Decimal) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.ProcessRefund")
	defer span.End()

	payment, err := ps.store.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return err
	}

	gw, err := ps.gateways.Resolve(payment.Gateway)
	if err != nil {
		return err
	}

	var booking *models.Booking

	// The gateway call runs under the payment row lock: racing refunds of
	// the same payment serialize here, so the loser sees REFUNDED and never
	// reaches the gateway.
	err = ps.store.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := ps.store.GetPaymentForUpdate(txCtx, paymentID)
		if err != nil {
			return err
		}
		if locked.Status != models.PaymentStatusCompleted {
			return fmt.Errorf("only completed payments can be refunded, payment %s is %s: %w",
				paymentID, locked.Status, models.ErrInvalidStateTransition)
		}

		booking, err = ps.store.GetBookingByID(txCtx, locked.BookingID)
		if err != nil {
			return err
		}

		start := time.Now()
		result, err := gw.RefundPayment(txCtx, locked.TransactionID, amount)
		util.GatewayRequestLatency.WithLabelValues(locked.Gateway, "refund").Observe(time.Since(start).Seconds())
		if err != nil {
			ps.logger.Error("Gateway refund failed",
				zap.String("payment_id", paymentID),
				zap.Error(err))
			return err
		}

		if err := ps.store.UpdatePaymentStatus(txCtx, paymentID, models.PaymentStatusRefunded, nil); err != nil {
			return err
		}
		if err := ps.store.UpdateBookingStatus(txCtx, booking.ID, models.BookingStatusCancelled); err != nil {
			return err
		}
		msg := fmt.Sprintf("Refund processed for amount %s", amount.String())
		return ps.appendLog(txCtx, paymentID, models.LogEventPaymentRefunded, msg, result.RawResponse)
	})
	if err != nil {
		return err
	}

	util.PaymentRefundsTotal.Inc()
	ps.logger.Info("Refund processed",
		zap.String("payment_id", paymentID),
		zap.String("amount", amount.String()))

	ps.invalidate(ctx, booking.ID)

	event := &models.PaymentRefundedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentRefunded,
			Timestamp: time.Now(),
		},
		PaymentID:     paymentID,
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		CustomerEmail: booking.CustomerEmail,
		Amount:        amount,
	}
	if err := ps.publisher.PublishPaymentRefunded(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentRefunded event", zap.Error(err))
	}

	return nil
}

// GetPayment retrieves a payment with its audit trail
func (ps *PaymentService) GetPayment(ctx context.Context, paymentID string) (*models.Payment, []models.PaymentLog, error) {
	payment, err := ps.store.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	logs, err := ps.store.GetPaymentLogs(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	return payment, logs, nil
}

func (ps *PaymentService) appendLog(ctx context.Context, paymentID, event, message, data string) error {
	return ps.store.CreatePaymentLog(ctx, &models.PaymentLog{
		ID:        uuid.New().String(),
		PaymentID: paymentID,
		Event:     event,
		Message:   message,
		Data:      data,
	})
}

func (ps *PaymentService) publishSuccess(ctx context.Context, payment *models.Payment, booking *models.Booking) {
	workshopName := ""
	slotDateTime := time.Time{}
	if workshop, err := ps.store.GetWorkshop(ctx, booking.WorkshopID); err == nil {
		workshopName = workshop.Name
	}
	if slot, err := ps.store.GetSlot(ctx, booking.SlotID); err == nil {
		slotDateTime = slot.SlotDate
	}

	event := &models.PaymentSuccessEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentSuccess,
			Timestamp: time.Now(),
		},
		PaymentID:     payment.ID,
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		TransactionID: payment.TransactionID,
		CustomerEmail: booking.CustomerEmail,
		WorkshopName:  workshopName,
		SlotDateTime:  slotDateTime,
		Amount:        payment.Amount,
	}
	if err := ps.publisher.PublishPaymentSuccess(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentSuccess event", zap.Error(err))
	}
}

func (ps *PaymentService) publishFailure(ctx context.Context, payment *models.Payment, booking *models.Booking, reason string) {
	event := &models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentFailed,
			Timestamp: time.Now(),
		},
		PaymentID:     payment.ID,
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		CustomerEmail: booking.CustomerEmail,
		Reason:        reason,
	}
	if err := ps.publisher.PublishPaymentFailed(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}
}

func (ps *PaymentService) invalidate(ctx context.Context, bookingID string) {
	if ps.cache == nil {
		return
	}
	if err := ps.cache.InvalidateBooking(ctx, bookingID); err != nil {
		ps.logger.Error("Failed to invalidate booking cache", zap.Error(err))
	}
}
