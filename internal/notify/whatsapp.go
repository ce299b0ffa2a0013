// Package notify sends WhatsApp messages to customers through a WAHA-style
// gateway.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"order-agent/config"
	"order-agent/internal/util"

	"go.uber.org/zap"
)

// WhatsAppClient talks to the WAHA HTTP API.
type WhatsAppClient struct {
	cfg        config.WahaConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewWhatsAppClient(cfg config.WahaConfig, logger *zap.Logger) *WhatsAppClient {
	return &WhatsAppClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// ChatID formats a Brazilian phone number as a WhatsApp chat id: digits only,
// country code 55 prepended when missing, "@c.us" suffix.
func ChatID(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()
	if !strings.HasPrefix(number, "55") {
		number = "55" + number
	}
	return number + "@c.us"
}

// SendText sends a text message to the phone's chat.
func (c *WhatsAppClient) SendText(ctx context.Context, phone, text string) error {
	err := c.post(ctx, "/api/sendText", map[string]string{
		"chatId":  ChatID(phone),
		"text":    text,
		"session": c.cfg.Session,
	})
	if err != nil {
		util.NotificationsSentTotal.WithLabelValues("error").Inc()
		return err
	}
	util.NotificationsSentTotal.WithLabelValues("sent").Inc()
	return nil
}

// SendTextTyping shows the typing indicator for a moment before delivering
// the message, so the update reads like a human reply. Indicator failures are
// logged and the text is sent anyway.
func (c *WhatsAppClient) SendTextTyping(ctx context.Context, phone, text string) error {
	if err := c.StartTyping(ctx, phone); err != nil {
		c.logger.Debug("Failed to start typing indicator", zap.String("phone", phone), zap.Error(err))
	} else {
		select {
		case <-time.After(typingDelay(text)):
		case <-ctx.Done():
		}
		if err := c.StopTyping(ctx, phone); err != nil {
			c.logger.Debug("Failed to stop typing indicator", zap.String("phone", phone), zap.Error(err))
		}
	}
	return c.SendText(ctx, phone, text)
}

// typingDelay scales with message length, capped at 1.5s.
func typingDelay(text string) time.Duration {
	d := time.Duration(len([]rune(text))) * 10 * time.Millisecond
	if d > 1500*time.Millisecond {
		d = 1500 * time.Millisecond
	}
	return d
}

// StartTyping shows the typing indicator in the customer's chat.
func (c *WhatsAppClient) StartTyping(ctx context.Context, phone string) error {
	return c.post(ctx, "/api/startTyping", map[string]string{
		"chatId":  ChatID(phone),
		"session": c.cfg.Session,
	})
}

// StopTyping hides the typing indicator.
func (c *WhatsAppClient) StopTyping(ctx context.Context, phone string) error {
	return c.post(ctx, "/api/stopTyping", map[string]string{
		"chatId":  ChatID(phone),
		"session": c.cfg.Session,
	})
}

// CheckExists reports whether the phone number is registered on WhatsApp.
func (c *WhatsAppClient) CheckExists(ctx context.Context, phone string) (bool, error) {
	endpoint := fmt.Sprintf("%s/api/contacts/check-exists?phone=%s&session=%s",
		c.cfg.BaseURL, url.QueryEscape(phone), url.QueryEscape(c.cfg.Session))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("check-exists request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("check-exists failed: status %d", resp.StatusCode)
	}

	var result struct {
		NumberExists bool `json:"numberExists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode check-exists response: %w", err)
	}
	return result.NumberExists, nil
}

func (c *WhatsAppClient) post(ctx context.Context, path string, payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("waha request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("waha request %s failed: status %d", path, resp.StatusCode)
	}
	return nil
}
