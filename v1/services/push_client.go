package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/parpass/parpass-backend/shared/monitoring"
)

// PushChunkSize is the maximum number of messages the push gateway accepts
// per call
const PushChunkSize = 100

// PushMessage is one push notification addressed to a device token
type PushMessage struct {
	To    string                 `json:"to"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Sound string                 `json:"sound,omitempty"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// PushTicket is the gateway's per-message receipt. Status "ok" means the
// message was accepted for delivery; anything else carries an error message.
type PushTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// PushChannel sends a batch of push messages and returns one ticket per
// message, in order. A non-nil error means the whole call failed and no
// tickets are available.
type PushChannel interface {
	Send(ctx context.Context, messages []PushMessage) ([]PushTicket, error)
}

// ExpoPushClient talks to the Expo push HTTP API
type ExpoPushClient struct {
	// baseURL is the Expo push endpoint
	baseURL string
	// HTTPClient is used to make requests to the gateway
	HTTPClient *http.Client
}

// NewExpoPushClient creates a new Expo push client
func NewExpoPushClient(baseURL string) *ExpoPushClient {
	return &ExpoPushClient{
		baseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// IsValidPushToken reports whether token matches the Expo token format
func IsValidPushToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") && strings.HasSuffix(token, "]")
}

// expoSendResponse is the envelope the gateway wraps tickets in
type expoSendResponse struct {
	Data []PushTicket `json:"data"`
}

// Send posts one batch of messages to the gateway and returns its tickets
func (c *ExpoPushClient) Send(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	start := time.Now()
	tickets, err := c.send(ctx, messages)
	monitoring.RecordExternalCall("expo", "send_push", time.Since(start), err)
	return tickets, err
}

func (c *ExpoPushClient) send(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	// Marshal request to JSON
	reqBody, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push messages: %w", err)
	}

	// Create HTTP request
	url := fmt.Sprintf("%s/--/api/v2/push/send", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	// Send request to the push gateway
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to push gateway: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			slog.Error("failed to close response body", "error", err)
		}
	}(resp.Body)

	// Read response body
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Check status code
	if resp.StatusCode != http.StatusOK {
		slog.Error("Push gateway returned error", "status", resp.StatusCode, "body", string(respBody))
		return nil, fmt.Errorf("push gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	// Parse response
	var response expoSendResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse push gateway response: %w", err)
	}

	if len(response.Data) != len(messages) {
		return nil, fmt.Errorf("push gateway returned %d tickets for %d messages", len(response.Data), len(messages))
	}
	return response.Data, nil
}
