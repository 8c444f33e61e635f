package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"staylog/src/events"
	"staylog/src/store"
	"staylog/src/types"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrAlreadyProcessed means the conditional payment update matched no
	// row: another delivery already settled this payment.
	ErrAlreadyProcessed = errors.New("payment already processed")
	ErrPersistence      = errors.New("settlement persistence failed")
)

type Request struct {
	PaymentID uint
	BookingID uint
	Amount    decimal.Decimal
	CouponID  *uint
	Refs      store.PaymentRefs
}

type StateMachine struct {
	store store.Settlements
	bus   *events.Bus
	now   func() time.Time
}

func NewStateMachine(s store.Settlements, bus *events.Bus) *StateMachine {
	return &StateMachine{store: s, bus: bus, now: time.Now}
}

// Approve moves the payment to PAID and its booking to CONFIRMED in one
// transaction, then publishes SettlementConfirmed after the commit.
func (m *StateMachine) Approve(ctx context.Context, req Request) (*events.SettlementConfirmed, error) {
	if req.Refs.ApprovedAt.IsZero() {
		req.Refs.ApprovedAt = m.now()
	}
	outbox := &events.Outbox{}
	var confirmed events.SettlementConfirmed

	err := m.store.WithinTx(ctx, func(tx store.SettlementTx) error {
		affected, err := tx.UpdatePaymentApproved(ctx, req.PaymentID, req.Refs)
		if err != nil {
			return fmt.Errorf("%w: payment %d: %w", ErrPersistence, req.PaymentID, err)
		}
		if affected == 0 {
			return ErrAlreadyProcessed
		}
		affected, err = tx.UpdateBookingStatus(ctx, req.BookingID, types.BOOKING_CONFIRMED)
		if err != nil {
			return fmt.Errorf("%w: booking %d: %w", ErrPersistence, req.BookingID, err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: booking %d not updated", ErrPersistence, req.BookingID)
		}
		confirmed = events.SettlementConfirmed{
			PaymentID:   req.PaymentID,
			BookingID:   req.BookingID,
			Amount:      req.Amount,
			CouponID:    req.CouponID,
			ConfirmedAt: req.Refs.ApprovedAt,
		}
		outbox.Add(confirmed)
		return nil
	})
	if err != nil {
		outbox.Discard()
		if errors.Is(err, ErrAlreadyProcessed) {
			log.Printf("[Settlement] payment %d already settled\n", req.PaymentID)
			return nil, err
		}
		if !errors.Is(err, ErrPersistence) {
			err = fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		log.Printf("[Settlement] rolled back payment %d: %s\n", req.PaymentID, err.Error())
		return nil, err
	}

	m.bus.Flush(ctx, outbox)
	log.Printf("[Settlement] payment %d confirmed for booking %d\n", req.PaymentID, req.BookingID)
	return &confirmed, nil
}
