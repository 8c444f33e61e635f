package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"staylog/src/events"
	"staylog/src/models"
	"staylog/src/store"
	"staylog/src/types"
	"time"

	"gorm.io/datatypes"
)

// Sender pushes a payload to whatever live channels a user has open.
type Sender interface {
	SendNotification(ctx context.Context, userID uint, payload any) error
}

type Recipients interface {
	FindBookingByID(ctx context.Context, id uint) (*models.Booking, error)
}

// Pushed is the body delivered over a live channel.
type Pushed struct {
	NotiID    uint                      `json:"notiId"`
	NotiType  types.NotificationType    `json:"notiType"`
	TargetID  uint                      `json:"targetId"`
	Details   types.NotificationDetails `json:"details"`
	CreatedAt time.Time                 `json:"createdAt"`
}

type Dispatcher struct {
	store        store.Notifications
	recipients   Recipients
	sender       Sender
	defaultImage string
	now          func() time.Time
}

func NewDispatcher(s store.Notifications, recipients Recipients, sender Sender, defaultImage string) *Dispatcher {
	return &Dispatcher{
		store:        s,
		recipients:   recipients,
		sender:       sender,
		defaultImage: defaultImage,
		now:          time.Now,
	}
}

func (d *Dispatcher) Register(bus *events.Bus) {
	handler := func(ctx context.Context, e events.Event) error {
		return d.OnDomainEvent(ctx, e)
	}
	bus.Subscribe(events.KindSettlementConfirmed, "notifications.settlement", handler)
	bus.Subscribe(events.KindCouponIssued, "notifications.coupon", handler)
	bus.Subscribe(events.KindCommentCreated, "notifications.comment", handler)
}

type draft struct {
	userID   uint
	notiType types.NotificationType
	targetID uint
	details  types.NotificationDetails
}

// OnDomainEvent persists the notification and only then attempts live
// delivery. A persistence failure is returned; a delivery failure is logged.
func (d *Dispatcher) OnDomainEvent(ctx context.Context, e events.Event) error {
	nd, err := d.draft(ctx, e)
	if err != nil {
		return err
	}
	details, err := json.Marshal(nd.details)
	if err != nil {
		return fmt.Errorf("encode notification details: %w", err)
	}
	record := models.Notification{
		UserID:    nd.userID,
		NotiType:  string(nd.notiType),
		TargetID:  nd.targetID,
		Details:   datatypes.JSON(details),
		CreatedAt: d.now(),
	}
	if err := d.store.CreateNotification(ctx, &record); err != nil {
		log.Printf("[Notifications] ALERT could not persist %s for user %d: %s\n", nd.notiType, nd.userID, err.Error())
		return fmt.Errorf("persist %s notification for user %d: %w", nd.notiType, nd.userID, err)
	}

	if d.sender == nil {
		return nil
	}
	pushed := Pushed{
		NotiID:    record.ID,
		NotiType:  nd.notiType,
		TargetID:  record.TargetID,
		Details:   nd.details,
		CreatedAt: record.CreatedAt,
	}
	if err := d.sender.SendNotification(ctx, nd.userID, pushed); err != nil {
		log.Printf("[Notifications] live delivery of %d to user %d skipped: %s\n", record.ID, nd.userID, err.Error())
	}
	return nil
}

func (d *Dispatcher) draft(ctx context.Context, e events.Event) (*draft, error) {
	date := d.now().Format(time.RFC3339)
	switch ev := e.(type) {
	case events.SettlementConfirmed:
		booking, err := d.recipients.FindBookingByID(ctx, ev.BookingID)
		if err != nil {
			return nil, fmt.Errorf("resolve recipient for booking %d: %w", ev.BookingID, err)
		}
		return &draft{
			userID:   booking.UserID,
			notiType: types.NOTI_PAYMENT_CONFIRMED,
			targetID: booking.ID,
			details: types.NotificationDetails{
				Title:    "Payment confirmed",
				Message:  fmt.Sprintf("Your reservation %s is confirmed. Amount paid: %s", booking.BookingNum, ev.Amount.StringFixed(0)),
				ImageURL: d.defaultImage,
				Date:     date,
				TypeName: "Reservation",
			},
		}, nil
	case events.CouponIssued:
		return &draft{
			userID:   ev.UserID,
			notiType: types.NOTI_COUPON_ISSUED,
			targetID: ev.CouponID,
			details: types.NotificationDetails{
				Title:    ev.Name,
				Message:  fmt.Sprintf("A %d%% discount coupon has been issued.", ev.Discount),
				ImageURL: d.defaultImage,
				Date:     date,
				TypeName: "Coupon",
			},
		}, nil
	case events.CommentCreated:
		image := ev.WriterImageURL
		if image == "" {
			image = d.defaultImage
		}
		return &draft{
			userID:   ev.RecipientID,
			notiType: types.NOTI_NEW_COMMENT,
			targetID: ev.BoardID,
			details: types.NotificationDetails{
				Title:    ev.WriterNickname,
				Message:  ev.Content,
				ImageURL: image,
				Date:     date,
				TypeName: "Comment",
			},
		}, nil
	default:
		return nil, fmt.Errorf("no notification for event %s", e.Kind())
	}
}

// List returns a page of the user's history, newest first.
func (d *Dispatcher) List(ctx context.Context, userID uint, q types.NotificationListQuery) ([]types.APIResponseNotification, error) {
	rows, err := d.store.ListNotifications(ctx, userID, store.Cursor{
		LastCreatedAt: q.LastCreatedAt,
		LastID:        q.LastNotiID,
		Limit:         q.Limit,
	})
	if err != nil {
		return nil, err
	}
	result := make([]types.APIResponseNotification, 0, len(rows))
	for _, row := range rows {
		var details types.NotificationDetails
		if len(row.Details) > 0 {
			if err := json.Unmarshal(row.Details, &details); err != nil {
				log.Printf("[Notifications] unreadable details on %d: %s\n", row.ID, err.Error())
			}
		}
		result = append(result, types.APIResponseNotification{
			ID:        row.ID,
			UserID:    row.UserID,
			NotiType:  row.NotiType,
			TargetID:  row.TargetID,
			Details:   details,
			CreatedAt: row.CreatedAt,
		})
	}
	return result, nil
}

// FanOut delivers to every sender in order and joins their errors.
type FanOut []Sender

func (f FanOut) SendNotification(ctx context.Context, userID uint, payload any) error {
	var errs []error
	for _, s := range f {
		if err := s.SendNotification(ctx, userID, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
