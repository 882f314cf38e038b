// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stripe/stripe-go/v81"

	"github.com/comigor/campbot/internal/agent"
	"github.com/comigor/campbot/internal/commerce"
	"github.com/comigor/campbot/internal/logger"
	"github.com/comigor/campbot/internal/payment"
)

const (
	serviceName     = "hope-basketball-agent"
	maxWebhookBytes = 65536
)

// Chatter answers chat messages.
type Chatter interface {
	Handle(ctx context.Context, message, sessionID string) (agent.Reply, error)
	Apology() string
}

// Webhooks verifies and applies payment provider events.
type Webhooks interface {
	VerifyWebhook(payload []byte, signature string) (*stripe.Event, error)
	HandleEvent(ctx context.Context, ev *stripe.Event) (payment.Outcome, error)
}

// Catalog lists the camps offered on the storefront.
type Catalog interface {
	ListOfferings(ctx context.Context, f commerce.OfferingFilter) ([]commerce.Offering, error)
}

// Options wires the server to the rest of the application.
type Options struct {
	Agent         Chatter
	Webhooks      Webhooks
	Catalog       Catalog
	MCP           http.Handler // nil disables /mcp
	MCPToken      string       // bearer token required on /mcp when set
	AllowedOrigin string
	Version       string
	Clock         func() time.Time
}

// Server is the public HTTP server.
type Server struct {
	echo *echo.Echo
	opts Options
}

// New creates the server and registers its routes.
func New(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins(opts.AllowedOrigin),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	s := &Server{echo: e, opts: opts}

	for _, path := range []string{"/chat", "/api/chat"} {
		e.POST(path, s.handleChat)
	}
	for _, path := range []string{"/webhook/payment", "/webhook/stripe"} {
		e.POST(path, s.handleWebhook)
	}
	for _, path := range []string{"/health", "/api/health"} {
		e.GET(path, s.handleHealth)
	}
	for _, path := range []string{"/offerings", "/api/camps"} {
		e.GET(path, s.handleOfferings)
	}
	e.GET("/widget/chat-widget.js", s.handleWidget)

	if opts.MCP != nil {
		var guards []echo.MiddlewareFunc
		if opts.MCPToken != "" {
			guards = append(guards, bearerAuth(opts.MCPToken))
		}
		e.Any("/mcp", echo.WrapHandler(opts.MCP), guards...)
	}

	return s
}

func allowedOrigins(origin string) []string {
	if origin == "" {
		return []string{"*"}
	}
	return []string{origin}
}

func bearerAuth(token string) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
		},
	})
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				logger.L.Error("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.L.Info("request", attrs...)
			return nil
		},
	})
}

// ServeHTTP lets the server be driven without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// ChatResponse is the answer to POST /chat.
type ChatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

type errorResponse struct {
	Error     string `json:"error"`
	SessionID string `json:"sessionId,omitempty"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Requête invalide"})
	}

	reply, err := s.opts.Agent.Handle(c.Request().Context(), req.Message, req.SessionID)
	switch {
	case err == nil, errors.Is(err, agent.ErrToolLoopExceeded):
		return c.JSON(http.StatusOK, ChatResponse{Reply: reply.Text, SessionID: reply.SessionID})
	case errors.Is(err, agent.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Message requis"})
	default:
		logger.L.Error("chat failed", "session_id", reply.SessionID, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: s.opts.Agent.Apology(), SessionID: reply.SessionID})
	}
}

func (s *Server) handleWebhook(c echo.Context) error {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.L.Warn("webhook payload too large", "limit", tooLarge.Limit)
			return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "payload too large"})
		}
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "unreadable body"})
	}

	ev, err := s.opts.Webhooks.VerifyWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		logger.L.Warn("webhook rejected", "error", err)
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Webhook Error: invalid signature"})
	}

	outcome, err := s.opts.Webhooks.HandleEvent(c.Request().Context(), ev)
	if err != nil {
		logger.L.Error("webhook handling failed", "event_id", ev.ID, "type", ev.Type, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "webhook handling failed"})
	}
	logger.L.Info("webhook handled", "event_id", ev.ID, "type", ev.Type, "action", outcome.Action, "order_id", outcome.OrderID)
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   serviceName,
		"version":   s.opts.Version,
		"timestamp": s.opts.Clock().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleOfferings(c echo.Context) error {
	var f commerce.OfferingFilter
	for name, dst := range map[string]*int{"age": &f.Age, "month": &f.Month} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid " + name})
		}
		*dst = n
	}

	offerings, err := s.opts.Catalog.ListOfferings(c.Request().Context(), f)
	if err != nil {
		logger.L.Error("list offerings failed", "error", err)
		return c.JSON(http.StatusBadGateway, map[string]any{"success": false, "error": "Impossible de récupérer les camps"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"camps":   offerings,
		"total":   len(offerings),
	})
}
