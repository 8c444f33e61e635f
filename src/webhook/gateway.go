package webhook

import (
	"context"
	"errors"
	"log"
	"net/http"
	"runtime/debug"
	"staylog/src/events"
	"staylog/src/models"
	"staylog/src/settlement"
	"staylog/src/store"
	"time"
)

const (
	bodyOK               = "OK"
	bodyAlreadyProcessed = "Already processed"
	bodyInvalidSignature = "Invalid signature"
	bodyBookingNotFound  = "Booking not found"
	bodyPaymentNotFound  = "Payment not found"
	bodyInternalError    = "Internal server error"
)

type Result struct {
	StatusCode int
	Body       string
}

type Lookup interface {
	FindBookingByOrderRef(ctx context.Context, orderRef string) (*models.Booking, error)
	FindPaymentByBookingID(ctx context.Context, bookingID uint) (*models.Payment, error)
}

type Approver interface {
	Approve(ctx context.Context, req settlement.Request) (*events.SettlementConfirmed, error)
}

type Gateway struct {
	verifier *SignatureVerifier
	lookup   Lookup
	approver Approver
	now      func() time.Time
}

func NewGateway(verifier *SignatureVerifier, lookup Lookup, approver Approver) *Gateway {
	return &Gateway{
		verifier: verifier,
		lookup:   lookup,
		approver: approver,
		now:      time.Now,
	}
}

func ok(body string) Result {
	return Result{StatusCode: http.StatusOK, Body: body}
}

func internalError() Result {
	return Result{StatusCode: http.StatusInternalServerError, Body: bodyInternalError}
}

// Handle authenticates, decodes and settles one webhook delivery. An empty
// signature means the header was absent.
func (g *Gateway) Handle(ctx context.Context, payload []byte, signature string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Webhook] panic: %v payload=%s signature=%s\n%s", r, payload, signature, debug.Stack())
			res = internalError()
		}
	}()

	if err := g.verifier.Verify(payload, signature); err != nil {
		log.Printf("[Webhook] rejected delivery: %s\n", err.Error())
		return Result{StatusCode: http.StatusUnauthorized, Body: bodyInvalidSignature}
	}

	notice, err := ParseNotice(payload)
	if err != nil {
		log.Printf("[Webhook] decode failure: %s payload=%s signature=%s\n", err.Error(), payload, signature)
		return internalError()
	}
	if notice.Route == RouteIgnored {
		log.Printf("[Webhook] ignoring event type %q\n", notice.EventType)
		return ok(bodyOK)
	}
	if !notice.Done() {
		log.Printf("[Webhook] %s for %s has status %s, nothing to settle\n", notice.Route, notice.OrderID, notice.Status)
		return ok(bodyOK)
	}

	booking, err := g.lookup.FindBookingByOrderRef(ctx, notice.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[Webhook] ALERT booking not found for order %s\n", notice.OrderID)
		return Result{StatusCode: http.StatusNotFound, Body: bodyBookingNotFound}
	}
	if err != nil {
		log.Printf("[Webhook] booking lookup failed for %s: %s payload=%s\n", notice.OrderID, err.Error(), payload)
		return internalError()
	}

	payment, err := g.lookup.FindPaymentByBookingID(ctx, booking.ID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[Webhook] ALERT payment not found for booking %d (%s)\n", booking.ID, notice.OrderID)
		return Result{StatusCode: http.StatusNotFound, Body: bodyPaymentNotFound}
	}
	if err != nil {
		log.Printf("[Webhook] payment lookup failed for booking %d: %s payload=%s\n", booking.ID, err.Error(), payload)
		return internalError()
	}
	if payment.IsPaid() {
		return ok(bodyAlreadyProcessed)
	}

	req := settlement.Request{
		PaymentID: payment.ID,
		BookingID: booking.ID,
		Amount:    payment.Amount,
		CouponID:  payment.CouponID,
		Refs: store.PaymentRefs{
			ApprovedAt: g.now(),
		},
	}
	switch notice.Route {
	case RouteDirectPayment:
		req.Refs.PaymentKey = notice.PaymentKey
		req.Refs.LastTransactionKey = notice.LastTransactionKey
	case RouteVirtualAccount:
		depositedAt := req.Refs.ApprovedAt
		req.Refs.DepositedAt = &depositedAt
	}

	// the transition must finish even if the provider hangs up
	if _, err := g.approver.Approve(context.WithoutCancel(ctx), req); err != nil {
		if errors.Is(err, settlement.ErrAlreadyProcessed) {
			return ok(bodyAlreadyProcessed)
		}
		log.Printf("[Webhook] settlement failed for payment %d: %s payload=%s signature=%s\n", payment.ID, err.Error(), payload, signature)
		return internalError()
	}
	return ok(bodyOK)
}
