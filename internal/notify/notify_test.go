package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"order-agent/config"
	"order-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChatID(t *testing.T) {
	assert.Equal(t, "5516999990000@c.us", ChatID("5516999990000"))
	assert.Equal(t, "5516999990000@c.us", ChatID("16999990000"))
	assert.Equal(t, "5516999990000@c.us", ChatID("+55 (16) 99999-0000"))
}

func TestStatusMessagePerAudience(t *testing.T) {
	ready := StatusMessage(models.StatusReady, models.DeliveryTypePickup)
	assert.Contains(t, ready, "retirada")

	ready = StatusMessage(models.StatusReady, models.DeliveryTypeDelivery)
	assert.Contains(t, ready, "entrega")

	assert.Empty(t, StatusMessage(models.StatusAwaitingDeliveryType, models.DeliveryTypeUnset))
	assert.NotEmpty(t, StatusMessage(models.StatusOutForDelivery, models.DeliveryTypeDelivery))
}

func TestSendText(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sendText", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := NewWhatsAppClient(config.WahaConfig{BaseURL: server.URL, Session: "restaurante"}, zap.NewNop())
	err := client.SendText(context.Background(), "16999990000", "Olá!")
	require.NoError(t, err)
	assert.Equal(t, "5516999990000@c.us", got["chatId"])
	assert.Equal(t, "Olá!", got["text"])
	assert.Equal(t, "restaurante", got["session"])
}

func TestCheckExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/contacts/check-exists", r.URL.Path)
		fmt.Fprint(w, `{"numberExists": true}`)
	}))
	defer server.Close()

	client := NewWhatsAppClient(config.WahaConfig{BaseURL: server.URL, Session: "restaurante"}, zap.NewNop())
	exists, err := client.CheckExists(context.Background(), "5516999990000")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSendTextTypingSequence(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := NewWhatsAppClient(config.WahaConfig{BaseURL: server.URL, Session: "restaurante"}, zap.NewNop())
	require.NoError(t, client.SendTextTyping(context.Background(), "16999990000", "Olá!"))
	assert.Equal(t, []string{"/api/startTyping", "/api/stopTyping", "/api/sendText"}, paths)
}

func TestSendTextTypingSurvivesIndicatorFailure(t *testing.T) {
	var sent bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/sendText" {
			sent = true
			fmt.Fprint(w, `{}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewWhatsAppClient(config.WahaConfig{BaseURL: server.URL, Session: "restaurante"}, zap.NewNop())
	require.NoError(t, client.SendTextTyping(context.Background(), "16999990000", "Olá!"))
	assert.True(t, sent)
}

func TestSendTextGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewWhatsAppClient(config.WahaConfig{BaseURL: server.URL, Session: "restaurante"}, zap.NewNop())
	err := client.SendText(context.Background(), "16999990000", "Olá!")
	assert.Error(t, err)
}
