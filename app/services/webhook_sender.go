// Package services provides external service integrations and technical concerns like message delivery and AI variation
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/velozap/disparador/config"
	"github.com/velozap/disparador/utils"
)

// MessageSender delivers one WhatsApp message to one recipient. The actual
// WhatsApp session lives in an external automation platform; this service only
// relays the payload to its inbound webhook.
type MessageSender interface {
	Send(ctx context.Context, msg *OutboundMessage) error
}

// OutboundMessage is the payload relayed to the automation webhook
type OutboundMessage struct {
	PhoneNumber string  `json:"phone"`
	Name        string  `json:"name,omitempty"`
	Message     string  `json:"message"`
	MediaURL    *string `json:"mediaUrl,omitempty"`
	MediaType   *string `json:"mediaType,omitempty"`
	CampaignID  string  `json:"campaignId"`
	TrackingID  string  `json:"trackingId"`
}

// WebhookSender implements MessageSender against an HTTP webhook
type WebhookSender struct {
	config *config.WebhookConfig
	client *http.Client
}

// NewWebhookSender creates a new webhook sender instance
func NewWebhookSender(cfg *config.WebhookConfig) MessageSender {
	return &WebhookSender{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Send relays the message to the automation platform. A non-2xx response is a
// send failure for the recipient, not a fatal campaign error.
func (s *WebhookSender) Send(ctx context.Context, msg *OutboundMessage) error {
	requestBody, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook request: %w", err)
	}

	var lastErr error
	attempts := s.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "POST", s.config.URL, bytes.NewBuffer(requestBody))
		if err != nil {
			return fmt.Errorf("failed to create HTTP request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if s.config.Secret != "" {
			req.Header.Set("X-Webhook-Secret", s.config.Secret)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to deliver webhook request: %w", err)
			continue
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook delivery failed for %s: HTTP %d: %s", msg.PhoneNumber, resp.StatusCode, string(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client errors will not heal on retry
			break
		}
	}
	return lastErr
}

// MockMessageSender implements MessageSender for testing. It is safe for
// concurrent use so tests can inspect it while a send loop is running.
type MockMessageSender struct {
	mu           sync.Mutex
	SentMessages []MockSentMessage

	// FailFor makes Send return an error for the listed phone numbers
	FailFor map[string]error
}

// MockSentMessage represents a mock delivered message
type MockSentMessage struct {
	PhoneNumber string
	Message     string
	CampaignID  string
	TrackingID  string
	SentAt      time.Time
}

// NewMockMessageSender creates a new mock message sender
func NewMockMessageSender() *MockMessageSender {
	return &MockMessageSender{
		SentMessages: make([]MockSentMessage, 0),
		FailFor:      make(map[string]error),
	}
}

// Send records the message instead of delivering it
func (m *MockMessageSender) Send(ctx context.Context, msg *OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailFor[msg.PhoneNumber]; ok {
		return err
	}
	m.SentMessages = append(m.SentMessages, MockSentMessage{
		PhoneNumber: msg.PhoneNumber,
		Message:     msg.Message,
		CampaignID:  msg.CampaignID,
		TrackingID:  msg.TrackingID,
		SentAt:      utils.UTCNow(),
	})
	return nil
}

// Sent returns a copy of the recorded messages
func (m *MockMessageSender) Sent() []MockSentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSentMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}

// SentCount returns how many messages were recorded
func (m *MockMessageSender) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SentMessages)
}

// ClearSentMessages clears the sent messages list
func (m *MockMessageSender) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = make([]MockSentMessage, 0)
}
