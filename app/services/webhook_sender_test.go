package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velozap/disparador/config"
)

func webhookConfig(url string) *config.WebhookConfig {
	return &config.WebhookConfig{
		URL:           url,
		Secret:        "test-secret",
		Timeout:       2 * time.Second,
		RetryAttempts: 3,
	}
}

func testMessage() *OutboundMessage {
	return &OutboundMessage{
		PhoneNumber: "+5511999000111",
		Name:        "Maria",
		Message:     "Olá Maria",
		CampaignID:  "0b9cfc41-8a6c-4a24-a2e8-0ff0ee4d5a3a",
		TrackingID:  "7c9e6679-7425-40de-944b-e07fc1f90ae7",
	}
}

func TestWebhookSenderDeliversPayload(t *testing.T) {
	var received OutboundMessage
	var secret string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get("X-Webhook-Secret")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewWebhookSender(webhookConfig(server.URL))
	require.NoError(t, sender.Send(context.Background(), testMessage()))

	assert.Equal(t, "test-secret", secret)
	assert.Equal(t, "+5511999000111", received.PhoneNumber)
	assert.Equal(t, "Olá Maria", received.Message)
	assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7", received.TrackingID)
}

func TestWebhookSenderRetriesServerErrors(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewWebhookSender(webhookConfig(server.URL))
	require.NoError(t, sender.Send(context.Background(), testMessage()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWebhookSenderDoesNotRetryClientErrors(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unknown recipient", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	sender := NewWebhookSender(webhookConfig(server.URL))
	err := sender.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 422")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWebhookSenderExhaustsRetries(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := NewWebhookSender(webhookConfig(server.URL))
	err := sender.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestMockMessageSender(t *testing.T) {
	mock := NewMockMessageSender()
	mock.FailFor["+5511000000000"] = errors.New("number blocked")

	require.NoError(t, mock.Send(context.Background(), testMessage()))
	assert.Equal(t, 1, mock.SentCount())

	failing := testMessage()
	failing.PhoneNumber = "+5511000000000"
	err := mock.Send(context.Background(), failing)
	require.Error(t, err)
	assert.Equal(t, 1, mock.SentCount())

	mock.ClearSentMessages()
	assert.Zero(t, mock.SentCount())
}
