package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrMalformedPayload = errors.New("malformed webhook payload")

const (
	EventPaymentStatusChanged  = "PAYMENT_STATUS_CHANGED"
	EventVirtualAccountDeposit = "VirtualAccount.Deposit"
	EventDepositCallback       = "DEPOSIT_CALLBACK"

	StatusDone = "DONE"
)

type Route int

const (
	RouteIgnored Route = iota
	RouteDirectPayment
	RouteVirtualAccount
)

func (r Route) String() string {
	switch r {
	case RouteDirectPayment:
		return "direct-payment"
	case RouteVirtualAccount:
		return "virtual-account"
	default:
		return "ignored"
	}
}

type PaymentStatusChanged struct {
	EventType string `json:"eventType"`
	CreatedAt string `json:"createdAt"`
	Data      struct {
		OrderID            string `json:"orderId"`
		Status             string `json:"status"`
		PaymentKey         string `json:"paymentKey"`
		LastTransactionKey string `json:"lastTransactionKey"`
		Method             string `json:"method"`
	} `json:"data"`
}

type VirtualAccountDeposit struct {
	EventType string `json:"eventType"`
	CreatedAt string `json:"createdAt"`
	Data      struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
	} `json:"data"`
}

// Notice is the variant-independent view of a decoded webhook.
type Notice struct {
	Route              Route
	EventType          string
	OrderID            string
	Status             string
	PaymentKey         *string
	LastTransactionKey *string
}

func (n *Notice) Done() bool {
	return n.Status == StatusDone
}

func routeFor(eventType string) Route {
	switch {
	case strings.EqualFold(eventType, EventVirtualAccountDeposit), strings.EqualFold(eventType, EventDepositCallback):
		return RouteVirtualAccount
	case eventType == EventPaymentStatusChanged:
		return RouteDirectPayment
	default:
		return RouteIgnored
	}
}

// ParseNotice reads only eventType first, then decodes the body with the
// matching variant. Fields neither variant knows about are ignored.
func ParseNotice(payload []byte) (*Notice, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrMalformedPayload
	}
	probe := gjson.ParseBytes(payload)
	if !probe.IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedPayload)
	}
	eventType := probe.Get("eventType").String()
	notice := Notice{Route: routeFor(eventType), EventType: eventType}

	switch notice.Route {
	case RouteVirtualAccount:
		var body VirtualAccountDeposit
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		notice.OrderID = body.Data.OrderID
		notice.Status = body.Data.Status
	case RouteDirectPayment:
		var body PaymentStatusChanged
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		notice.OrderID = body.Data.OrderID
		notice.Status = body.Data.Status
		notice.PaymentKey = optional(body.Data.PaymentKey)
		notice.LastTransactionKey = optional(body.Data.LastTransactionKey)
	}
	return &notice, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
