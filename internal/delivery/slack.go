package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zozs/a-wild-button-appears/internal/model"
)

// SlackClient implements Delivery against the Slack web API.
type SlackClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewSlackClient creates a new Slack delivery client
func NewSlackClient(baseURL string, timeout time.Duration, logger *zap.Logger) *SlackClient {
	return &SlackClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger,
	}
}

type apiResponse struct {
	OK                 bool   `json:"ok"`
	Error              string `json:"error"`
	ScheduledMessageID string `json:"scheduled_message_id"`
}

// ScheduleMessage schedules msg in the tenant's channel via
// chat.scheduleMessage. If the bot is not yet in the channel it joins and
// retries once.
func (c *SlackClient) ScheduleMessage(ctx context.Context, tenant *model.Tenant, at time.Time, msg Message) (string, error) {
	request := struct {
		Channel string  `json:"channel"`
		PostAt  int64   `json:"post_at"`
		Text    string  `json:"text,omitempty"`
		Blocks  []Block `json:"blocks,omitempty"`
	}{
		Channel: tenant.Channel,
		PostAt:  at.Unix(),
		Text:    msg.Text,
		Blocks:  msg.Blocks,
	}

	resp, err := c.call(ctx, tenant.AccessToken, "chat.scheduleMessage", request)
	if err != nil {
		return "", err
	}

	if !resp.OK && resp.Error == "not_in_channel" {
		join := struct {
			Channel string `json:"channel"`
		}{Channel: tenant.Channel}

		if _, err := c.call(ctx, tenant.AccessToken, "conversations.join", join); err != nil {
			return "", err
		}

		resp, err = c.call(ctx, tenant.AccessToken, "chat.scheduleMessage", request)
		if err != nil {
			return "", err
		}
	}

	if !resp.OK {
		return "", fmt.Errorf("chat.scheduleMessage failed: %s", resp.Error)
	}

	return resp.ScheduledMessageID, nil
}

// CancelScheduled cancels a scheduled message via chat.deleteScheduledMessage.
// A message the remote side no longer knows maps to
// ErrScheduledMessageNotFound.
func (c *SlackClient) CancelScheduled(ctx context.Context, tenant *model.Tenant, messageID string) error {
	request := struct {
		Channel            string `json:"channel"`
		ScheduledMessageID string `json:"scheduled_message_id"`
	}{
		Channel:            tenant.Channel,
		ScheduledMessageID: messageID,
	}

	resp, err := c.call(ctx, tenant.AccessToken, "chat.deleteScheduledMessage", request)
	if err != nil {
		return err
	}

	if !resp.OK {
		if resp.Error == "invalid_scheduled_message_id" {
			return ErrScheduledMessageNotFound
		}
		return fmt.Errorf("chat.deleteScheduledMessage failed: %s", resp.Error)
	}

	return nil
}

// PushReplacement replaces an interactive response through its response URL.
func (c *SlackClient) PushReplacement(ctx context.Context, responseURL string, msg Message) error {
	msg.ReplaceOriginal = true

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to push replacement: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("response url returned status %d", resp.StatusCode)
	}

	return nil
}

func (c *SlackClient) call(ctx context.Context, token, method string, request interface{}) (*apiResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if !parsed.OK {
		c.logger.Debug("Slack API call returned error",
			zap.String("method", method),
			zap.String("error", parsed.Error))
	}

	return &parsed, nil
}
