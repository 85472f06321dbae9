// Package rest is the pull side of the engine: snapshot fetches and the
// mutation calls that back optimistic board actions. All network errors
// are wrapped here so callers only ever see the engine's error taxonomy.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boardsync/internal/auth"
	"boardsync/internal/model"
	"boardsync/internal/util"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every snapshot and mutation call. The backend has
// no explicit deadline of its own, so a hung call must fail here rather
// than block the board indefinitely.
const DefaultTimeout = 12 * time.Second

// Scope narrows a snapshot by restaurant and optional status filter.
type Scope struct {
	Statuses []model.OrderStatus
	// ExcludeCancelled drops cancelled orders server-side. Cancellation
	// is not a kanban-visible state, so every board sets this.
	ExcludeCancelled bool
}

// APIError carries the HTTP status and any server-provided message from a
// rejected call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: unexpected status %d", e.StatusCode)
}

// Client talks to the restaurant backend's REST API.
type Client struct {
	baseURL      string
	restaurantID string
	tokens       auth.TokenProvider
	http         *http.Client
	logger       *zap.Logger
}

// NewClient creates a REST client. timeout <= 0 falls back to
// DefaultTimeout.
func NewClient(baseURL, restaurantID string, tokens auth.TokenProvider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		restaurantID: restaurantID,
		tokens:       tokens,
		http:         &http.Client{Timeout: timeout},
		logger:       util.GetLogger(),
	}
}

// KitchenOrders fetches the order snapshot for the client's restaurant.
func (c *Client) KitchenOrders(ctx context.Context, scope Scope) ([]model.Order, error) {
	q := url.Values{}
	q.Set("restaurantId", c.restaurantID)
	if len(scope.Statuses) > 0 {
		names := make([]string, len(scope.Statuses))
		for i, s := range scope.Statuses {
			names[i] = string(s)
		}
		q.Set("status", strings.Join(names, ","))
	}
	if scope.ExcludeCancelled {
		q.Set("excludeCancelled", "true")
	}

	var orders []model.Order
	if err := c.get(ctx, "/kitchen-orders?"+q.Encode(), &orders); err != nil {
		return nil, fmt.Errorf("fetch kitchen orders: %w", err)
	}
	return orders, nil
}

// Tables fetches the table snapshot for the client's restaurant.
func (c *Client) Tables(ctx context.Context) ([]model.Table, error) {
	q := url.Values{}
	q.Set("restaurantId", c.restaurantID)

	var tables []model.Table
	if err := c.get(ctx, "/tables?"+q.Encode(), &tables); err != nil {
		return nil, fmt.Errorf("fetch tables: %w", err)
	}
	return tables, nil
}

// DashboardSummary fetches the authoritative KPI block for the current
// business day.
func (c *Client) DashboardSummary(ctx context.Context) (model.Summary, error) {
	q := url.Values{}
	q.Set("restaurantId", c.restaurantID)

	var summary model.Summary
	if err := c.get(ctx, "/dashboard/summary?"+q.Encode(), &summary); err != nil {
		return model.Summary{}, fmt.Errorf("fetch dashboard summary: %w", err)
	}
	return summary, nil
}

// StartOrder confirms that the kitchen began preparing an order.
func (c *Client) StartOrder(ctx context.Context, orderID string) error {
	return c.put(ctx, fmt.Sprintf("/orders/%s/start", orderID), nil)
}

// MarkOrderReady confirms that an order is ready to deliver.
func (c *Client) MarkOrderReady(ctx context.Context, orderID string) error {
	return c.put(ctx, fmt.Sprintf("/orders/%s/ready", orderID), nil)
}

// ApproveOrder confirms payment for an awaiting order, releasing it to the
// kitchen.
func (c *Client) ApproveOrder(ctx context.Context, orderID string) error {
	return c.put(ctx, fmt.Sprintf("/orders/%s/approve", orderID), nil)
}

// RejectOrder cancels an awaiting or pending order.
func (c *Client) RejectOrder(ctx context.Context, orderID string) error {
	return c.put(ctx, fmt.Sprintf("/orders/%s/reject", orderID), nil)
}

// DeliverOrder confirms that an order reached its table.
func (c *Client) DeliverOrder(ctx context.Context, orderID string) error {
	return c.put(ctx, fmt.Sprintf("/orders/%s/deliver", orderID), nil)
}

// UpdateTable sets a table's occupancy state.
func (c *Client) UpdateTable(ctx context.Context, tableID string, status model.TableStatus) error {
	body := map[string]string{"status": string(status)}
	return c.put(ctx, fmt.Sprintf("/tables/%s", tableID), body)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) put(ctx context.Context, path string, body interface{}) error {
	return c.do(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, span := util.StartSpan(ctx, "rest."+method+" "+path)
	defer span.End()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: serverMessage(resp.Body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// serverMessage extracts the human-readable message the backend attaches
// to failures, when there is one.
func serverMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return payload.Message
}
