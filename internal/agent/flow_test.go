package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"

	"github.com/comigor/campbot/internal/commerce"
	"github.com/comigor/campbot/internal/config"
	"github.com/comigor/campbot/internal/llm"
	"github.com/comigor/campbot/internal/payment"
	"github.com/comigor/campbot/internal/session"
	"github.com/comigor/campbot/pkg/tools"
)

type mockLLM struct {
	calls    []openai.ChatCompletionResponse
	requests []openai.ChatCompletionRequest
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, r)
	if len(m.calls) == 0 {
		panic("mockLLM: no more responses configured")
	}
	resp := m.calls[0]
	m.calls = m.calls[1:]
	return resp, nil
}

func toolCallResponse(id, name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       id,
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: name, Arguments: args},
		}},
	}}}}
}

func contentResponse(s string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: s,
	}}}}
}

type stubStripe struct{}

func (stubStripe) NewProduct(*stripe.ProductParams) (*stripe.Product, error) {
	return &stripe.Product{ID: "prod_1"}, nil
}

func (stubStripe) NewPrice(*stripe.PriceParams) (*stripe.Price, error) {
	return &stripe.Price{ID: "price_1"}, nil
}

func (stubStripe) NewPaymentLink(*stripe.PaymentLinkParams) (*stripe.PaymentLink, error) {
	return &stripe.PaymentLink{ID: "plink_1", URL: "https://buy.stripe.com/test_1"}, nil
}

// storefront fakes the WooCommerce endpoints used by the booking flow.
func storefront(t *testing.T, stock int) (*commerce.Client, func() int) {
	t.Helper()
	var (
		mu     sync.Mutex
		orders int
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wp-json/wc/v3/products", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"id":11,"name":"Camp Semaine 2","price":"350","stock_quantity":12,
			"meta_data":[{"key":"camp_start_date","value":"2026-07-06"},{"key":"camp_end_date","value":"2026-07-10"}]},
		{"id":12,"name":"Camp Élite","price":"400","stock_quantity":8,
			"meta_data":[{"key":"camp_start_date","value":"2026-08-03"},{"key":"camp_end_date","value":"2026-08-07"},
				{"key":"age_min","value":"13"},{"key":"age_max","value":"17"}]}]`)
	})
	mux.HandleFunc("GET /wp-json/wc/v3/products/11", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 11, "name": "Camp Semaine 2", "price": "350", "stock_quantity": stock})
	})
	mux.HandleFunc("POST /wp-json/wc/v3/orders", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		orders++
		mu.Unlock()
		_, _ = io.WriteString(w, `{"id":1234,"number":"1234","status":"pending","total":"350.00","currency":"CAD"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := commerce.NewClient(config.CommerceConfig{BaseURL: srv.URL, ConsumerKey: "ck", ConsumerSecret: "cs", Timeout: time.Second})
	return c, func() int {
		mu.Lock()
		defer mu.Unlock()
		return orders
	}
}

func newFlow(t *testing.T, client *mockLLM, shop *commerce.Client) (*Orchestrator, *session.MemoryStore) {
	t.Helper()
	gateway := payment.NewGateway(stubStripe{}, shop, config.PaymentConfig{WebhookSecret: "whsec"}, shop.StorefrontURL())
	registry := tools.NewRegistry(time.Second, tools.All(shop, gateway)...)
	store := session.NewMemoryStore()
	return New(llm.NewOpenAIModel(client, "gpt-test", 1024), registry, store, testConfig()), store
}

func TestFlow_BookingAndPaymentLink(t *testing.T) {
	shop, orders := storefront(t, 12)
	client := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCallResponse("call_1", "get_camps", `{"month":7}`),
		toolCallResponse("call_2", "create_booking", `{"product_id":11,"customer_first_name":"Marie","customer_last_name":"Tremblay",
			"customer_email":"marie@example.com","child_name":"Léo","child_age":10}`),
		toolCallResponse("call_3", "create_payment_link", `{"order_id":1234,"camp_name":"Camp Semaine 2","price":"350.00"}`),
		contentResponse("Voici votre lien de paiement : https://buy.stripe.com/test_1"),
	}}
	o, store := newFlow(t, client, shop)

	r, err := o.Handle(context.Background(), "Je veux inscrire Léo à la semaine 2", "")
	require.NoError(t, err)
	require.Contains(t, r.Text, "https://buy.stripe.com/test_1")
	require.Equal(t, 1, orders())
	require.Len(t, client.requests, 4)

	last := client.requests[3].Messages
	tool := last[len(last)-1]
	require.Equal(t, openai.ChatMessageRoleTool, tool.Role)
	require.Equal(t, "call_3", tool.ToolCallID)
	require.Contains(t, tool.Content, `"payment_url":"https://buy.stripe.com/test_1"`)

	s, err := store.Get(context.Background(), r.SessionID)
	require.NoError(t, err)
	require.Len(t, s.Turns, 1+3*2+1)
}

func TestFlow_SoldOutIsRelayedToTheModel(t *testing.T) {
	shop, orders := storefront(t, 0)
	client := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCallResponse("call_1", "create_booking", `{"product_id":11,"customer_first_name":"Marie","customer_last_name":"Tremblay",
			"customer_email":"marie@example.com","child_name":"Léo","child_age":10}`),
		contentResponse("Désolé, ce camp est complet. Voulez-vous une autre semaine?"),
	}}
	o, _ := newFlow(t, client, shop)

	r, err := o.Handle(context.Background(), "Inscris Léo", "")
	require.NoError(t, err)
	require.Contains(t, r.Text, "complet")
	require.Zero(t, orders(), "no order is created for a sold-out camp")

	msgs := client.requests[1].Messages
	result := msgs[len(msgs)-1]
	require.Equal(t, "call_1", result.ToolCallID)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content), &payload))
	require.Equal(t, false, payload["success"])
	require.Equal(t, "sold_out", payload["error"])
}

func TestFlow_TwoMessagesShareTheSession(t *testing.T) {
	shop, orders := storefront(t, 12)
	client := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCallResponse("call_1", "get_camps", `{"age":10}`),
		contentResponse("Le Camp Semaine 2 accueille les 10 ans. Quelles sont vos coordonnées et le nom de l'enfant?"),
		toolCallResponse("call_2", "create_booking", `{"product_id":11,"customer_first_name":"Marie","customer_last_name":"Tremblay",
			"customer_email":"marie@example.com","child_name":"Léo","child_age":10}`),
		toolCallResponse("call_3", "create_payment_link", `{"order_id":1234,"camp_name":"Camp Semaine 2","price":"350.00","child_name":"Léo"}`),
		contentResponse("Voici votre lien de paiement : https://buy.stripe.com/test_1"),
	}}
	o, store := newFlow(t, client, shop)

	first, err := o.Handle(context.Background(), "Quels camps pour mon fils de 10 ans?", "")
	require.NoError(t, err)
	require.Contains(t, first.Text, "Camp Semaine 2")

	msgs := client.requests[1].Messages
	camps := msgs[len(msgs)-1]
	require.Equal(t, "call_1", camps.ToolCallID)
	var listed struct {
		Camps []struct {
			ID int64 `json:"id"`
		} `json:"camps"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(camps.Content), &listed))
	require.Equal(t, 1, listed.Total, "only camps open to a 10 year old are offered")
	require.Equal(t, int64(11), listed.Camps[0].ID)

	second, err := o.Handle(context.Background(), "Marie Tremblay, marie@example.com, Léo", first.SessionID)
	require.NoError(t, err)
	require.Equal(t, first.SessionID, second.SessionID)
	require.Contains(t, second.Text, "https://buy.stripe.com/test_1")
	require.Equal(t, 1, orders())

	history := client.requests[2].Messages
	require.Equal(t, openai.ChatMessageRoleSystem, history[0].Role)
	require.Equal(t, "Quels camps pour mon fils de 10 ans?", history[1].Content, "the first exchange is replayed")
	require.Equal(t, "Marie Tremblay, marie@example.com, Léo", history[len(history)-1].Content)

	s, err := store.Get(context.Background(), first.SessionID)
	require.NoError(t, err)
	require.Len(t, s.Turns, 4+6)
}
