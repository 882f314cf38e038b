package commerce

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/comigor/campbot/internal/logger"
)

const bookingSource = "hope-basketball-agent"

var statusLabels = map[string]string{
	"pending":    "En attente de paiement",
	"processing": "Paiement reçu, inscription confirmée",
	"completed":  "Inscription complétée",
	"cancelled":  "Annulée",
	"refunded":   "Remboursée",
	"failed":     "Paiement échoué",
	"on-hold":    "En attente de vérification",
}

type wooBilling struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type wooLineItem struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Name      string `json:"name,omitempty"`
}

type wooOrder struct {
	ID          int64         `json:"id"`
	Number      string        `json:"number"`
	Status      string        `json:"status"`
	Total       string        `json:"total"`
	Currency    string        `json:"currency"`
	PaymentURL  string        `json:"payment_url"`
	DateCreated string        `json:"date_created"`
	Billing     wooBilling    `json:"billing"`
	LineItems   []wooLineItem `json:"line_items"`
}

type orderCreate struct {
	Status    string        `json:"status"`
	Billing   wooBilling    `json:"billing"`
	LineItems []wooLineItem `json:"line_items"`
	MetaData  []metaEntry   `json:"meta_data"`
}

type orderUpdate struct {
	Status   string      `json:"status"`
	MetaData []metaEntry `json:"meta_data,omitempty"`
}

// BookingRequest registers one or more children of a family to a camp.
type BookingRequest struct {
	ProductID int64
	Quantity  int
	FirstName string
	LastName  string
	Email     string
	Phone     string
	ChildName string
	ChildAge  int
}

// Booking is a freshly created pending order.
type Booking struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Total       string `json:"total"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	PaymentURL  string `json:"payment_url,omitempty"`
	CampName    string `json:"camp_name"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// CreateBooking checks live capacity, then creates a pending order. No order
// is created when the camp is sold out or short of seats.
func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (*Booking, error) {
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}

	avail, err := c.CheckAvailability(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if avail.SpotsRemaining <= 0 {
		return nil, &CapacityError{Kind: ErrSoldOut, Remaining: 0, Requested: qty}
	}
	if avail.SpotsRemaining < qty {
		return nil, &CapacityError{Kind: ErrInsufficientCapacity, Remaining: avail.SpotsRemaining, Requested: qty}
	}

	childAge := ""
	if req.ChildAge > 0 {
		childAge = strconv.Itoa(req.ChildAge)
	}
	body := orderCreate{
		Status: "pending",
		Billing: wooBilling{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
		},
		LineItems: []wooLineItem{{ProductID: req.ProductID, Quantity: qty}},
		MetaData: []metaEntry{
			{Key: "child_name", Value: req.ChildName},
			{Key: "child_age", Value: childAge},
			{Key: "booking_source", Value: bookingSource},
		},
	}

	var order wooOrder
	if err := c.do(ctx, "POST", "orders", nil, body, &order); err != nil {
		return nil, err
	}
	logger.L.Info("booking created", "order_id", order.ID, "product_id", req.ProductID, "quantity", qty)

	return &Booking{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Total:       order.Total,
		Currency:    order.Currency,
		Status:      order.Status,
		PaymentURL:  order.PaymentURL,
		CampName:    avail.Name,
		StartDate:   avail.StartDate,
		EndDate:     avail.EndDate,
	}, nil
}

// OrderStatus is the parent-facing view of an order.
type OrderStatus struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
	Total       string `json:"total"`
	DateCreated string `json:"date_created"`
	BillingName string `json:"billing_name"`
	Email       string `json:"email"`
}

// GetOrder fetches the current state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID int64) (*OrderStatus, error) {
	o, err := c.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	label, ok := statusLabels[o.Status]
	if !ok {
		label = o.Status
	}
	return &OrderStatus{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Status:      o.Status,
		StatusLabel: label,
		Total:       o.Total,
		DateCreated: o.DateCreated,
		BillingName: strings.TrimSpace(o.Billing.FirstName + " " + o.Billing.LastName),
		Email:       o.Billing.Email,
	}, nil
}

func (c *Client) getOrder(ctx context.Context, orderID int64) (*wooOrder, error) {
	var o wooOrder
	if err := c.do(ctx, "GET", fmt.Sprintf("orders/%d", orderID), nil, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// OrderSummary is one line of an order search.
type OrderSummary struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	Total       string `json:"total"`
	Date        string `json:"date"`
	Items       string `json:"items"`
}

// FindOrdersByEmail returns the ten most recent orders matching email.
func (c *Client) FindOrdersByEmail(ctx context.Context, email string) ([]OrderSummary, error) {
	q := url.Values{}
	q.Set("search", email)
	q.Set("per_page", "10")
	q.Set("orderby", "date")
	q.Set("order", "desc")

	var orders []wooOrder
	if err := c.do(ctx, "GET", "orders", q, nil, &orders); err != nil {
		return nil, err
	}

	out := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		names := make([]string, 0, len(o.LineItems))
		for _, li := range o.LineItems {
			names = append(names, li.Name)
		}
		out = append(out, OrderSummary{
			OrderID:     o.ID,
			OrderNumber: o.Number,
			Status:      o.Status,
			Total:       o.Total,
			Date:        o.DateCreated,
			Items:       strings.Join(names, ", "),
		})
	}
	return out, nil
}

// PaymentRef records which payment settled an order.
type PaymentRef struct {
	SessionID     string
	PaymentIntent string
}

func isPaid(status string) bool {
	return status == "processing" || status == "completed"
}

// MarkOrderPaid moves the order to processing. It reports false without
// writing anything when the order is already paid.
func (c *Client) MarkOrderPaid(ctx context.Context, orderID int64, ref PaymentRef) (bool, error) {
	o, err := c.getOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if isPaid(o.Status) {
		return false, nil
	}
	update := orderUpdate{
		Status: "processing",
		MetaData: []metaEntry{
			{Key: "stripe_session_id", Value: ref.SessionID},
			{Key: "stripe_payment_intent", Value: ref.PaymentIntent},
		},
	}
	if err := c.do(ctx, "PUT", fmt.Sprintf("orders/%d", orderID), nil, update, nil); err != nil {
		return false, err
	}
	return true, nil
}

// MarkOrderFailed moves the order to failed unless it is already paid or failed.
func (c *Client) MarkOrderFailed(ctx context.Context, orderID int64) (bool, error) {
	o, err := c.getOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if isPaid(o.Status) || o.Status == "failed" {
		return false, nil
	}
	if err := c.do(ctx, "PUT", fmt.Sprintf("orders/%d", orderID), nil, orderUpdate{Status: "failed"}, nil); err != nil {
		return false, err
	}
	return true, nil
}
