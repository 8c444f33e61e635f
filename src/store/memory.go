package store

import (
	"context"
	"sort"
	"staylog/src/models"
	"staylog/src/types"
	"sync"
	"time"
)

// Memory is a process-local Store used for local runs and tests.
// Transactions are serialized; their writes are staged and applied on commit.
type Memory struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	bookings      map[uint]models.Booking
	payments      map[uint]models.Payment
	coupons       map[uint]models.Coupon
	notifications []models.Notification

	nextCouponID       uint
	nextNotificationID uint
}

func NewMemory() *Memory {
	return &Memory{
		bookings: make(map[uint]models.Booking),
		payments: make(map[uint]models.Payment),
		coupons:  make(map[uint]models.Coupon),
	}
}

func (m *Memory) PutBooking(b models.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.Status == "" {
		b.Status = types.BOOKING_PENDING
	}
	m.bookings[b.ID] = b
}

func (m *Memory) PutPayment(p models.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Status == "" {
		p.Status = types.PAYMENT_PENDING
	}
	m.payments[p.ID] = p
}

func (m *Memory) PutCoupon(c models.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.IsUsed == "" {
		c.IsUsed = types.COUPON_UNUSED
	}
	if c.ID > m.nextCouponID {
		m.nextCouponID = c.ID
	}
	m.coupons[c.ID] = c
}

func (m *Memory) FindBookingByOrderRef(ctx context.Context, orderRef string) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bookings {
		if b.BookingNum == orderRef {
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) FindBookingByID(ctx context.Context, id uint) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *Memory) FindPaymentByBookingID(ctx context.Context, bookingID uint) (*models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

// Payment returns a snapshot of the stored payment.
func (m *Memory) Payment(id uint) (models.Payment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	return p, ok
}

func (m *Memory) Booking(id uint) (models.Booking, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	return b, ok
}

func (m *Memory) Coupon(id uint) (models.Coupon, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.coupons[id]
	return c, ok
}

func (m *Memory) WithinTx(ctx context.Context, fn func(tx SettlementTx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memoryTx{m: m, paid: make(map[uint]bool)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, apply := range tx.staged {
		apply()
	}
	return nil
}

type memoryTx struct {
	m      *Memory
	staged []func()
	paid   map[uint]bool
}

func (t *memoryTx) UpdatePaymentApproved(ctx context.Context, paymentID uint, refs PaymentRefs) (int64, error) {
	t.m.mu.RLock()
	p, ok := t.m.payments[paymentID]
	t.m.mu.RUnlock()
	if !ok || p.IsPaid() || t.paid[paymentID] {
		return 0, nil
	}
	t.paid[paymentID] = true
	t.staged = append(t.staged, func() {
		p := t.m.payments[paymentID]
		approvedAt := refs.ApprovedAt
		p.Status = types.PAYMENT_PAID
		p.ApprovedAt = &approvedAt
		if refs.PaymentKey != nil {
			p.PaymentKey = refs.PaymentKey
		}
		if refs.LastTransactionKey != nil {
			p.LastTransactionKey = refs.LastTransactionKey
		}
		if refs.DepositedAt != nil {
			p.DepositedAt = refs.DepositedAt
		}
		p.UpdatedAt = approvedAt
		t.m.payments[paymentID] = p
	})
	return 1, nil
}

func (t *memoryTx) UpdateBookingStatus(ctx context.Context, bookingID uint, status types.BookingStatus) (int64, error) {
	t.m.mu.RLock()
	current, ok := t.m.bookings[bookingID]
	t.m.mu.RUnlock()
	if !ok || current.Status == types.BOOKING_CANCELLED {
		return 0, nil
	}
	t.staged = append(t.staged, func() {
		b := t.m.bookings[bookingID]
		b.Status = status
		t.m.bookings[bookingID] = b
	})
	return 1, nil
}

func (m *Memory) FindCouponByID(ctx context.Context, id uint) (*models.Coupon, error) {
	c, ok := m.Coupon(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) UseCoupon(ctx context.Context, id uint, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok || c.IsUsed != types.COUPON_UNUSED || c.Expired(now) {
		return 0, nil
	}
	c.IsUsed = types.COUPON_USED
	c.UsedAt = &now
	m.coupons[id] = c
	return 1, nil
}

func (m *Memory) IssueCoupon(ctx context.Context, coupon *models.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCouponID++
	coupon.ID = m.nextCouponID
	if coupon.IsUsed == "" {
		coupon.IsUsed = types.COUPON_UNUSED
	}
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = time.Now()
	}
	m.coupons[coupon.ID] = *coupon
	return nil
}

func (m *Memory) CreateNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextNotificationID++
	n.ID = m.nextNotificationID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *Memory) ListNotifications(ctx context.Context, userID uint, cursor Cursor) ([]models.Notification, error) {
	cursor = cursor.normalized()
	m.mu.RLock()
	matched := make([]models.Notification, 0)
	for _, n := range m.notifications {
		if n.UserID != userID {
			continue
		}
		if cursor.LastCreatedAt != nil {
			last := *cursor.LastCreatedAt
			if n.CreatedAt.After(last) || (n.CreatedAt.Equal(last) && n.ID >= cursor.LastID) {
				continue
			}
		}
		matched = append(matched, n)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > cursor.Limit {
		matched = matched[:cursor.Limit]
	}
	return matched, nil
}
