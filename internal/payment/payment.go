// Package payment creates Stripe payment links for pending bookings and turns
// verified Stripe webhook events into order updates.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentlink"
	"github.com/stripe/stripe-go/v81/price"
	"github.com/stripe/stripe-go/v81/product"

	"github.com/comigor/campbot/internal/config"
	"github.com/comigor/campbot/internal/logger"
)

const linkSource = "hope-basketball-agent"

var (
	ErrInvalidInput     = errors.New("invalid payment input")
	ErrSignatureInvalid = errors.New("invalid webhook signature")
	ErrUpstream         = errors.New("payment api error")
	ErrUpstreamTimeout  = errors.New("payment api timeout")
)

// API is the part of Stripe used to build a payment link.
type API interface {
	NewProduct(params *stripe.ProductParams) (*stripe.Product, error)
	NewPrice(params *stripe.PriceParams) (*stripe.Price, error)
	NewPaymentLink(params *stripe.PaymentLinkParams) (*stripe.PaymentLink, error)
}

type stripeAPI struct {
	products product.Client
	prices   price.Client
	links    paymentlink.Client
}

// NewStripeAPI returns an API backed by the live Stripe endpoints.
func NewStripeAPI(cfg config.PaymentConfig) API {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: timeout},
	})
	return &stripeAPI{
		products: product.Client{B: backend, Key: cfg.SecretKey},
		prices:   price.Client{B: backend, Key: cfg.SecretKey},
		links:    paymentlink.Client{B: backend, Key: cfg.SecretKey},
	}
}

func (a *stripeAPI) NewProduct(params *stripe.ProductParams) (*stripe.Product, error) {
	return a.products.New(params)
}

func (a *stripeAPI) NewPrice(params *stripe.PriceParams) (*stripe.Price, error) {
	return a.prices.New(params)
}

func (a *stripeAPI) NewPaymentLink(params *stripe.PaymentLinkParams) (*stripe.PaymentLink, error) {
	return a.links.New(params)
}

// Gateway is the payment side of the booking flow.
type Gateway struct {
	api           API
	orders        OrderUpdater
	webhookSecret string
	currency      string
	storefrontURL string
}

// NewGateway wires a Gateway. storefrontURL is where parents land after paying.
func NewGateway(api API, orders OrderUpdater, cfg config.PaymentConfig, storefrontURL string) *Gateway {
	currency := strings.ToLower(cfg.Currency)
	if currency == "" {
		currency = string(stripe.CurrencyCAD)
	}
	return &Gateway{
		api:           api,
		orders:        orders,
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
		storefrontURL: strings.TrimRight(storefrontURL, "/"),
	}
}

// LinkRequest describes what the parent is paying for.
type LinkRequest struct {
	OrderID       int64
	CampName      string
	Price         string
	CustomerEmail string
	ChildName     string
}

// Link is a hosted Stripe payment page.
type Link struct {
	URL     string `json:"payment_url"`
	ID      string `json:"link_id"`
	OrderID int64  `json:"order_id"`
}

// ToCents converts a decimal price such as "250", "249.99" or "249,99 $" to
// the smallest currency unit.
func ToCents(p string) (int64, error) {
	s := strings.TrimSpace(p)
	s = strings.Trim(s, "$ ")
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: price %q", ErrInvalidInput, p)
	}
	cents := int64(math.Round(f * 100))
	if cents <= 0 {
		return 0, fmt.Errorf("%w: price %q must be positive", ErrInvalidInput, p)
	}
	return cents, nil
}

// CreatePaymentLink creates a one-off product, price and payment link for an
// order. The link redirects to the storefront confirmation page.
func (g *Gateway) CreatePaymentLink(ctx context.Context, req LinkRequest) (*Link, error) {
	if req.OrderID <= 0 {
		return nil, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.CampName) == "" {
		return nil, fmt.Errorf("%w: camp name is required", ErrInvalidInput)
	}
	cents, err := ToCents(req.Price)
	if err != nil {
		return nil, err
	}
	orderID := strconv.FormatInt(req.OrderID, 10)

	desc := "Inscription, " + req.CampName
	if req.ChildName != "" {
		desc = fmt.Sprintf("Inscription de %s, %s", req.ChildName, req.CampName)
	}
	pp := &stripe.ProductParams{
		Name:        stripe.String(req.CampName),
		Description: stripe.String(desc),
	}
	pp.Context = ctx
	pp.AddMetadata("order_id", orderID)
	pp.AddMetadata("source", linkSource)
	prod, err := g.api.NewProduct(pp)
	if err != nil {
		return nil, upstream("create product", err)
	}

	pr, err := g.api.NewPrice(&stripe.PriceParams{
		Params:     stripe.Params{Context: ctx},
		Product:    stripe.String(prod.ID),
		UnitAmount: stripe.Int64(cents),
		Currency:   stripe.String(g.currency),
	})
	if err != nil {
		return nil, upstream("create price", err)
	}

	lp := &stripe.PaymentLinkParams{
		LineItems: []*stripe.PaymentLinkLineItemParams{
			{Price: stripe.String(pr.ID), Quantity: stripe.Int64(1)},
		},
		AfterCompletion: &stripe.PaymentLinkAfterCompletionParams{
			Type: stripe.String(string(stripe.PaymentLinkAfterCompletionTypeRedirect)),
			Redirect: &stripe.PaymentLinkAfterCompletionRedirectParams{
				URL: stripe.String(fmt.Sprintf("%s/inscription-confirmee/?order_id=%s", g.storefrontURL, orderID)),
			},
		},
		PaymentIntentData: &stripe.PaymentLinkPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": orderID},
		},
	}
	lp.Context = ctx
	lp.AddMetadata("order_id", orderID)
	lp.AddMetadata("child_name", req.ChildName)
	link, err := g.api.NewPaymentLink(lp)
	if err != nil {
		return nil, upstream("create payment link", err)
	}

	logger.L.Info("payment link created", "order_id", req.OrderID, "link_id", link.ID, "amount", cents)
	return &Link{URL: link.URL, ID: link.ID, OrderID: req.OrderID}, nil
}

func upstream(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrUpstreamTimeout, op)
	}
	var t interface{ Timeout() bool }
	if errors.As(err, &t) && t.Timeout() {
		return fmt.Errorf("%w: %s", ErrUpstreamTimeout, op)
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}
