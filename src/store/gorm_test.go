package store

import (
	"context"
	"errors"
	"log"
	"staylog/src/models"
	"staylog/src/types"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

type GormStoreSuite struct {
	suite.Suite
	Mock  sqlmock.Sqlmock
	Store *Gorm
}

func (s *GormStoreSuite) SetupTest() {
	d, mock := NewMockDB()
	s.Mock = mock
	s.Store = NewGorm(d)
}

func (s *GormStoreSuite) TearDownTest() {
	assert.NoError(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *GormStoreSuite) TestFindBookingByOrderRef() {
	s.Mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE booking_num = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_num", "user_id", "status"}).
			AddRow(10, "BOOK-1001", 3, "PENDING"))

	booking, err := s.Store.FindBookingByOrderRef(context.Background(), "BOOK-1001")
	s.Require().NoError(err)
	s.Equal(uint(10), booking.ID)
	s.Equal(uint(3), booking.UserID)
	s.Equal(types.BOOKING_PENDING, booking.Status)
}

func (s *GormStoreSuite) TestFindBookingByOrderRefMissing() {
	s.Mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE booking_num = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	booking, err := s.Store.FindBookingByOrderRef(context.Background(), "BOOK-404")
	s.Nil(booking)
	s.ErrorIs(err, ErrNotFound)
}

func (s *GormStoreSuite) TestFindPaymentByBookingID() {
	s.Mock.ExpectQuery(`SELECT \* FROM "payments" WHERE booking_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "amount", "coupon_id", "status"}).
			AddRow(55, 10, "12000.00", 9, "PENDING"))

	payment, err := s.Store.FindPaymentByBookingID(context.Background(), 10)
	s.Require().NoError(err)
	s.Equal(uint(55), payment.ID)
	s.Equal("12000", payment.Amount.String())
	s.Require().NotNil(payment.CouponID)
	s.Equal(uint(9), *payment.CouponID)
	s.False(payment.IsPaid())
}

func (s *GormStoreSuite) TestSettlementTransactionCommits() {
	key := "pk_1"
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "payments" SET .*"payment_key"=.*"status"=.* WHERE id = .* AND status <> `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectExec(`UPDATE "bookings" SET "status"=.* WHERE id = .* AND status <> `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	err := s.Store.WithinTx(context.Background(), func(tx SettlementTx) error {
		n, err := tx.UpdatePaymentApproved(context.Background(), 55, PaymentRefs{PaymentKey: &key, ApprovedAt: time.Now()})
		s.Require().NoError(err)
		s.Equal(int64(1), n)
		n, err = tx.UpdateBookingStatus(context.Background(), 10, types.BOOKING_CONFIRMED)
		s.Require().NoError(err)
		s.Equal(int64(1), n)
		return nil
	})
	s.NoError(err)
}

func (s *GormStoreSuite) TestSettlementTransactionRollsBack() {
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "payments" SET .* WHERE id = .* AND status <> `).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.Mock.ExpectRollback()

	stop := errors.New("already paid")
	err := s.Store.WithinTx(context.Background(), func(tx SettlementTx) error {
		n, err := tx.UpdatePaymentApproved(context.Background(), 55, PaymentRefs{ApprovedAt: time.Now()})
		s.Require().NoError(err)
		if n == 0 {
			return stop
		}
		return nil
	})
	s.ErrorIs(err, stop)
}

func (s *GormStoreSuite) TestCancelledBookingIsNotConfirmed() {
	key := "pk_1"
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "payments" SET .* WHERE id = .* AND status <> `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectExec(`UPDATE "bookings" SET "status"=.* WHERE id = .* AND status <> `).
		WithArgs(types.BOOKING_CONFIRMED, sqlmock.AnyArg(), 10, types.BOOKING_CANCELLED).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.Mock.ExpectRollback()

	stop := errors.New("booking not updated")
	err := s.Store.WithinTx(context.Background(), func(tx SettlementTx) error {
		if _, err := tx.UpdatePaymentApproved(context.Background(), 55, PaymentRefs{PaymentKey: &key, ApprovedAt: time.Now()}); err != nil {
			return err
		}
		n, err := tx.UpdateBookingStatus(context.Background(), 10, types.BOOKING_CONFIRMED)
		s.Require().NoError(err)
		if n == 0 {
			return stop
		}
		return nil
	})
	s.ErrorIs(err, stop)
}

func (s *GormStoreSuite) TestUseCouponIsConditional() {
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "coupons" SET .*"is_used"=.* WHERE id = .* AND is_used = .*expired_at IS NULL OR expired_at > `).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.Mock.ExpectCommit()

	n, err := s.Store.UseCoupon(context.Background(), 9, time.Now())
	s.NoError(err)
	s.Equal(int64(0), n)
}

func (s *GormStoreSuite) TestCreateNotification() {
	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`INSERT INTO "notifications"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	s.Mock.ExpectCommit()

	n := models.Notification{
		UserID:   3,
		NotiType: string(types.NOTI_PAYMENT_CONFIRMED),
		TargetID: 10,
		Details:  datatypes.JSON(`{"title":"Payment confirmed"}`),
	}
	s.Require().NoError(s.Store.CreateNotification(context.Background(), &n))
	s.Equal(uint(7), n.ID)
}

func (s *GormStoreSuite) TestListNotificationsWithCursor() {
	last := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Mock.ExpectQuery(`SELECT \* FROM "notifications" WHERE user_id = .* AND .*created_at < .* ORDER BY created_at desc,id desc LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "noti_type", "target_id", "details", "created_at"}).
			AddRow(4, 3, "NOTI_NEW_COMMENT", 8, []byte(`{"title":"kim"}`), last.Add(-time.Minute)))

	list, err := s.Store.ListNotifications(context.Background(), 3, Cursor{LastCreatedAt: &last, LastID: 5, Limit: 10})
	s.Require().NoError(err)
	s.Len(list, 1)
	s.Equal(uint(4), list[0].ID)
}

func TestGormStore(t *testing.T) {
	suite.Run(t, new(GormStoreSuite))
}
