package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/campbot/internal/chat"
	"github.com/comigor/campbot/internal/commerce"
	"github.com/comigor/campbot/internal/payment"
)

type fakeCatalog struct {
	filters  []commerce.OfferingFilter
	bookings []commerce.BookingRequest
	err      error
	block    bool
}

func (f *fakeCatalog) wait(ctx context.Context) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func (f *fakeCatalog) ListOfferings(ctx context.Context, filter commerce.OfferingFilter) ([]commerce.Offering, error) {
	f.filters = append(f.filters, filter)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return []commerce.Offering{{ID: 11, Name: "Camp Semaine 2", Price: "350", SpotsRemaining: 12}}, nil
}

func (f *fakeCatalog) CheckAvailability(ctx context.Context, id int64) (*commerce.Availability, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return &commerce.Availability{ProductID: id, SpotsRemaining: 3, IsAvailable: true}, nil
}

func (f *fakeCatalog) CreateBooking(ctx context.Context, req commerce.BookingRequest) (*commerce.Booking, error) {
	f.bookings = append(f.bookings, req)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return &commerce.Booking{OrderID: 1234, Total: "350.00", Status: "pending"}, nil
}

func (f *fakeCatalog) GetOrder(ctx context.Context, id int64) (*commerce.OrderStatus, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return &commerce.OrderStatus{OrderID: id, Status: "pending"}, nil
}

func (f *fakeCatalog) FindOrdersByEmail(ctx context.Context, email string) ([]commerce.OrderSummary, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return []commerce.OrderSummary{{OrderID: 1}, {OrderID: 2}}, nil
}

func (f *fakeCatalog) ListMerchandise(ctx context.Context) ([]commerce.Product, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return []commerce.Product{{ID: 3, Name: "T-shirt"}}, nil
}

type fakePayments struct {
	reqs  []payment.LinkRequest
	err   error
	block bool
}

func (f *fakePayments) CreatePaymentLink(ctx context.Context, req payment.LinkRequest) (*payment.Link, error) {
	f.reqs = append(f.reqs, req)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &payment.Link{URL: "https://buy.stripe.com/x", ID: "plink_1", OrderID: req.OrderID}, nil
}

func newTestRegistry(c *fakeCatalog, p *fakePayments) *Registry {
	return NewRegistry(time.Second, All(c, p)...)
}

func call(name, input string) chat.ToolCall {
	return chat.ToolCall{ID: "call_" + name, Name: name, Input: json.RawMessage(input)}
}

func payloadOf(t *testing.T, res chat.ToolResult) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(res.Payload, &m))
	return m
}

func requireError(t *testing.T, res chat.ToolResult, code string) map[string]any {
	t.Helper()
	require.True(t, res.IsError)
	m := payloadOf(t, res)
	require.Equal(t, false, m["success"])
	require.Equal(t, code, m["error"])
	require.NotEmpty(t, m["message"])
	return m
}

func TestRegistry_Definitions(t *testing.T) {
	r := newTestRegistry(&fakeCatalog{}, &fakePayments{})
	defs := r.Definitions()

	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
		require.NotEmpty(t, d.Description)
		require.True(t, json.Valid(d.Schema), d.Name)
	}
	require.Equal(t, []string{
		"get_camps", "check_availability", "create_booking", "create_payment_link",
		"get_order_status", "get_merch", "get_faq",
	}, names)

	var booking struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	require.NoError(t, json.Unmarshal(defs[2].Schema, &booking))
	require.Equal(t, "object", booking.Type)
	require.ElementsMatch(t, []string{
		"product_id", "customer_first_name", "customer_last_name", "customer_email", "child_name", "child_age",
	}, booking.Required)
	require.Contains(t, booking.Properties, "customer_phone")

	require.JSONEq(t, `{"type":"object","properties":{}}`, string(defs[5].Schema))

	_, err := r.Get("get_faq")
	require.NoError(t, err)
	_, err = r.Get("nope")
	require.Error(t, err)
}

func TestRegistry_UnknownTool(t *testing.T) {
	r := newTestRegistry(&fakeCatalog{}, &fakePayments{})
	res := r.Execute(context.Background(), call("launch_rocket", `{}`))
	require.Equal(t, "call_launch_rocket", res.CallID)
	requireError(t, res, CodeUnknownTool)
}

func TestRegistry_ContractViolations(t *testing.T) {
	c := &fakeCatalog{}
	r := newTestRegistry(c, &fakePayments{})

	for name, input := range map[string]string{
		"missing required":   `{"product_id":7,"customer_first_name":"Marie"}`,
		"wrong type":         `{"product_id":"sept","customer_first_name":"Marie","customer_last_name":"T","customer_email":"m@x.ca","child_name":"Léo","child_age":10}`,
		"null required":      `{"product_id":null,"customer_first_name":"Marie","customer_last_name":"T","customer_email":"m@x.ca","child_name":"Léo","child_age":10}`,
		"quantity below one": `{"product_id":7,"quantity":0,"customer_first_name":"Marie","customer_last_name":"T","customer_email":"m@x.ca","child_name":"Léo","child_age":10}`,
		"bad email":          `{"product_id":7,"customer_first_name":"Marie","customer_last_name":"T","customer_email":"nope","child_name":"Léo","child_age":10}`,
		"not an object":      `[1,2]`,
	} {
		res := r.Execute(context.Background(), call("create_booking", input))
		requireError(t, res, CodeInvalidInput)
		require.Empty(t, c.bookings, name)
	}

	res := r.Execute(context.Background(), call("get_faq", `{"topic":"météo"}`))
	requireError(t, res, CodeInvalidInput)

	res = r.Execute(context.Background(), call("get_order_status", `{}`))
	requireError(t, res, CodeInvalidInput)
}

func TestRegistry_Success(t *testing.T) {
	c := &fakeCatalog{}
	p := &fakePayments{}
	r := newTestRegistry(c, p)

	res := r.Execute(context.Background(), call("get_camps", `{"age":10,"month":7}`))
	require.False(t, res.IsError)
	m := payloadOf(t, res)
	require.Equal(t, true, m["success"])
	require.Equal(t, float64(1), m["total"])
	require.Equal(t, []commerce.OfferingFilter{{Age: 10, Month: 7}}, c.filters)

	res = r.Execute(context.Background(), call("create_booking",
		`{"product_id":7,"quantity":2,"customer_first_name":"Marie","customer_last_name":"Tremblay","customer_email":"marie@example.com","child_name":"Léo","child_age":10}`))
	require.False(t, res.IsError, string(res.Payload))
	m = payloadOf(t, res)
	require.Equal(t, float64(1234), m["order_id"])
	require.Equal(t, 2, c.bookings[0].Quantity)
	require.Equal(t, "Léo", c.bookings[0].ChildName)

	res = r.Execute(context.Background(), call("create_payment_link", `{"order_id":1234,"camp_name":"Camp Semaine 2","price":"350.00"}`))
	require.False(t, res.IsError)
	require.Equal(t, "https://buy.stripe.com/x", payloadOf(t, res)["payment_url"])
	require.Equal(t, int64(1234), p.reqs[0].OrderID)

	res = r.Execute(context.Background(), call("get_order_status", `{"email":"marie@example.com"}`))
	require.False(t, res.IsError)
	require.Equal(t, float64(2), payloadOf(t, res)["total"])

	res = r.Execute(context.Background(), call("get_merch", ``))
	require.False(t, res.IsError)

	res = r.Execute(context.Background(), call("get_faq", `{"topic":"paiement"}`))
	m = payloadOf(t, res)
	require.Equal(t, "paiement", m["topic"])
	require.Len(t, m["faqs"], 2)

	res = r.Execute(context.Background(), call("get_faq", `{}`))
	m = payloadOf(t, res)
	require.Equal(t, "all", m["topic"])
	require.Len(t, m["faqs"], 10)
}

func TestRegistry_GatewayFailures(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{&commerce.CapacityError{Kind: commerce.ErrSoldOut, Requested: 1}, CodeSoldOut},
		{&commerce.CapacityError{Kind: commerce.ErrInsufficientCapacity, Remaining: 1, Requested: 2}, CodeInsufficientCapacity},
		{commerce.ErrNotFound, CodeNotFound},
		{commerce.ErrUpstreamTimeout, CodeUpstreamTimeout},
		{errors.New("connection refused"), CodeUpstreamError},
	}
	for _, tc := range cases {
		r := newTestRegistry(&fakeCatalog{err: tc.err}, &fakePayments{})
		res := r.Execute(context.Background(), call("check_availability", `{"product_id":7}`))
		requireError(t, res, tc.code)
	}

	r := newTestRegistry(&fakeCatalog{err: &commerce.CapacityError{Kind: commerce.ErrInsufficientCapacity, Remaining: 1, Requested: 2}}, &fakePayments{})
	res := r.Execute(context.Background(), call("check_availability", `{"product_id":7}`))
	m := requireError(t, res, CodeInsufficientCapacity)
	require.Equal(t, float64(1), m["spots_remaining"])
	require.Contains(t, m["message"], "1 place(s)")

	r = newTestRegistry(&fakeCatalog{}, &fakePayments{err: payment.ErrInvalidInput})
	res = r.Execute(context.Background(), call("create_payment_link", `{"order_id":1,"camp_name":"Camp","price":"gratuit"}`))
	requireError(t, res, CodeInvalidInput)
}

func TestRegistry_TimeoutBoundsEachCall(t *testing.T) {
	r := NewRegistry(20*time.Millisecond, All(&fakeCatalog{block: true}, &fakePayments{})...)
	start := time.Now()
	res := r.Execute(context.Background(), call("get_merch", `{}`))
	requireError(t, res, CodeUpstreamTimeout)
	require.Less(t, time.Since(start), time.Second)
}

func TestRegistry_PerToolTimeout(t *testing.T) {
	r := NewRegistry(10*time.Second, All(&fakeCatalog{}, &fakePayments{block: true})...)
	r.SetTimeout(PaymentLinkToolName, 20*time.Millisecond)

	start := time.Now()
	res := r.Execute(context.Background(), call(PaymentLinkToolName, `{"order_id":1,"camp_name":"Camp","price":"10"}`))
	requireError(t, res, CodeUpstreamTimeout)
	require.Less(t, time.Since(start), time.Second)

	res = r.Execute(context.Background(), call("get_merch", `{}`))
	require.False(t, res.IsError, "other tools keep the registry default")
}
