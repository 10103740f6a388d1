// Package gateway talks to the unlock supplier's Dhru Fusion API. The
// protocol is XML posted as a form field, answered with a JSON envelope.
package gateway

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tlux-store/tlux-api/internal/models"
)

// Order statuses reported by the supplier.
const (
	OrderStatusSuccess    = "success"
	OrderStatusPending    = "pending"
	OrderStatusRejected   = "rejected"
	OrderStatusProcessing = "processing"
)

// OrderResult is the outcome of a submitted unlock order.
type OrderResult struct {
	ReferenceID string
	Status      string
	Message     string
}

// Client is the Dhru Fusion API client. All calls apply the configured
// timeout; a slow supplier must never pin a request worker.
type Client struct {
	url      string
	username string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

func NewClient(apiURL, username, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url:      apiURL,
		username: username,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// request is the XML body every Dhru action expects.
type request struct {
	XMLName  xml.Name `xml:"request"`
	Action   string   `xml:"action"`
	Username string   `xml:"username"`
	APIKey   string   `xml:"api_key"`
	IMEI     string   `xml:"imei,omitempty"`
	Service  string   `xml:"serviceid,omitempty"`
	OrderID  string   `xml:"orderid,omitempty"`
}

// envelope is the JSON reply: exactly one of SUCCESS or ERROR is populated.
type envelope struct {
	Success []entry `json:"SUCCESS"`
	Error   []entry `json:"ERROR"`
}

type entry struct {
	Message     string `json:"MESSAGE"`
	ReferenceID string `json:"REFERENCEID"`
	Status      string `json:"STATUS"`
}

func (c *Client) call(ctx context.Context, req request) (*entry, error) {
	req.Username = c.username
	req.APIKey = c.apiKey

	body, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gateway request: %w", err)
	}

	form := url.Values{}
	form.Set("xml", xml.Header+string(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Error("gateway request failed",
			slog.String("action", req.Action),
			slog.Any("error", err))
		return nil, models.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, models.ErrGatewayUnavailable
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("gateway returned non-200",
			slog.String("action", req.Action),
			slog.Int("status", resp.StatusCode))
		return nil, models.ErrGatewayUnavailable
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Error("gateway returned unparseable body",
			slog.String("action", req.Action))
		return nil, models.ErrGatewayUnavailable
	}

	if len(env.Error) > 0 {
		c.logger.Warn("gateway rejected request",
			slog.String("action", req.Action),
			slog.String("message", env.Error[0].Message))
		return nil, models.ErrGatewayUnavailable
	}
	if len(env.Success) == 0 {
		return nil, models.ErrGatewayUnavailable
	}

	return &env.Success[0], nil
}

// SubmitOrder places an IMEI unlock order for the given supplier service.
func (c *Client) SubmitOrder(ctx context.Context, serviceID int, imei string) (*OrderResult, error) {
	result, err := c.call(ctx, request{
		Action:  "placeimeiorder",
		Service: fmt.Sprintf("%d", serviceID),
		IMEI:    imei,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("unlock order submitted",
		slog.Int("service_id", serviceID),
		slog.String("order_ref", result.ReferenceID))

	return &OrderResult{
		ReferenceID: result.ReferenceID,
		Status:      OrderStatusSuccess,
		Message:     result.Message,
	}, nil
}

// QueryOrder fetches the current status of a previously submitted order.
func (c *Client) QueryOrder(ctx context.Context, orderRef string) (*OrderResult, error) {
	result, err := c.call(ctx, request{
		Action:  "getimeiorder",
		OrderID: orderRef,
	})
	if err != nil {
		return nil, err
	}

	status := strings.ToLower(result.Status)
	if status == "" {
		status = OrderStatusProcessing
	}

	return &OrderResult{
		ReferenceID: orderRef,
		Status:      status,
		Message:     result.Message,
	}, nil
}

// AccountInfo verifies credentials and connectivity against the supplier.
func (c *Client) AccountInfo(ctx context.Context) (string, error) {
	result, err := c.call(ctx, request{Action: "accountinfo"})
	if err != nil {
		return "", err
	}
	return result.Message, nil
}
