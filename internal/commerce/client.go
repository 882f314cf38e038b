// Package commerce talks to the WooCommerce REST API (wc/v3) of the
// storefront: camps, merchandise and orders.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/comigor/campbot/internal/config"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrUpstream             = errors.New("commerce api error")
	ErrUpstreamTimeout      = errors.New("commerce api timeout")
	ErrSoldOut              = errors.New("sold out")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
)

// CapacityError is returned by CreateBooking when the camp cannot take the
// requested number of children. Its message is meant to be shown to parents.
type CapacityError struct {
	Kind      error
	Remaining int
	Requested int
}

func (e *CapacityError) Error() string {
	if errors.Is(e.Kind, ErrSoldOut) {
		return "Désolé, ce camp est complet. Il n'y a plus de places disponibles."
	}
	return fmt.Sprintf("Il ne reste que %d place(s) pour ce camp.", e.Remaining)
}

func (e *CapacityError) Unwrap() error { return e.Kind }

// Client is a client for the WooCommerce REST API
type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	client         *http.Client
}

// NewClient creates a new Client
func NewClient(cfg config.CommerceConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		client:         &http.Client{Timeout: timeout},
	}
}

// StorefrontURL is the public site root, used for payment redirects.
func (c *Client) StorefrontURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := fmt.Sprintf("%s/wp-json/wc/v3/%s", c.baseURL, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return fmt.Errorf("%w: %s %s", ErrUpstreamTimeout, method, path)
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: unexpected status code %d: %s", ErrUpstream, method, path, resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
