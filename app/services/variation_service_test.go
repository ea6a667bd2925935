package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velozap/disparador/config"
)

func TestPersonalizeMessage(t *testing.T) {
	tests := []struct {
		name        string
		message     string
		displayName string
		expected    string
	}{
		{
			name:        "placeholder replaced with name",
			message:     "Olá {nome}, tudo bem?",
			displayName: "Maria",
			expected:    "Olá Maria, tudo bem?",
		},
		{
			name:        "multiple placeholders",
			message:     "{nome}, sua encomenda chegou. Obrigado, {nome}!",
			displayName: "João",
			expected:    "João, sua encomenda chegou. Obrigado, João!",
		},
		{
			name:        "empty name strips placeholder and trailing space",
			message:     "Olá {nome} seja bem-vindo",
			displayName: "",
			expected:    "Olá seja bem-vindo",
		},
		{
			name:        "empty name strips bare placeholder",
			message:     "Oferta para {nome}",
			displayName: "",
			expected:    "Oferta para ",
		},
		{
			name:        "no placeholder leaves message untouched",
			message:     "Promoção válida até sexta",
			displayName: "Maria",
			expected:    "Promoção válida até sexta",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PersonalizeMessage(tt.message, tt.displayName))
		})
	}
}

func TestLocalVariationChangesBytes(t *testing.T) {
	svc := NewLocalVariationServiceWithSeed(1)
	original := "Olá Maria, temos uma oferta especial para você hoje"

	changed := 0
	for i := 0; i < 50; i++ {
		varied, err := svc.Vary(context.Background(), original)
		require.NoError(t, err)
		if varied != original {
			changed++
		}
		// The visible words must survive the perturbation
		assert.Equal(t,
			strings.Fields(strings.TrimSuffix(strings.ReplaceAll(original, zeroWidthSpace, ""), ".")),
			strings.Fields(strings.TrimSuffix(strings.ReplaceAll(varied, zeroWidthSpace, ""), ".")),
		)
	}
	// A multi-word message always gains a zero width space
	assert.Equal(t, 50, changed)
}

func TestLocalVariationPreservesEmptyMessage(t *testing.T) {
	svc := NewLocalVariationServiceWithSeed(1)

	varied, err := svc.Vary(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, "   ", varied)
}

func TestLocalVariationSingleWord(t *testing.T) {
	svc := NewLocalVariationServiceWithSeed(3)

	// A single word only ever varies at the terminal punctuation
	for i := 0; i < 20; i++ {
		varied, err := svc.Vary(context.Background(), "Promoção")
		require.NoError(t, err)
		assert.Contains(t, []string{"Promoção", "Promoção."}, varied)
	}
}

func TestLocalVariationTerminalPunctuation(t *testing.T) {
	svc := NewLocalVariationServiceWithSeed(7)

	for i := 0; i < 20; i++ {
		varied, err := svc.Vary(context.Background(), "Aproveite a oferta!")
		require.NoError(t, err)
		stripped := strings.ReplaceAll(varied, zeroWidthSpace, "")
		assert.Contains(t, []string{"Aproveite a oferta!", "Aproveite a oferta!!"}, stripped)
	}
}

func TestAIVariationUsesEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req variationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)

		_ = json.NewEncoder(w).Encode(variationResponse{Variation: "Oi! " + req.Message})
	}))
	defer server.Close()

	svc := NewAIVariationService(&config.VariationConfig{
		Enabled: true,
		URL:     server.URL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		Timeout: 2 * time.Second,
	})

	varied, err := svc.Vary(context.Background(), "Bom dia")
	require.NoError(t, err)
	assert.Equal(t, "Oi! Bom dia", varied)
}

func TestAIVariationReportsEndpointFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := NewAIVariationService(&config.VariationConfig{
		Enabled: true,
		URL:     server.URL,
		APIKey:  "test-key",
		Timeout: time.Second,
	})

	// An unavailable endpoint is an error; the send loop decides whether to
	// degrade to local variation or send unmodified
	_, err := svc.Vary(context.Background(), "Bom dia, sua entrega saiu para rota")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestAIVariationDisabledReportsError(t *testing.T) {
	svc := NewAIVariationService(&config.VariationConfig{Enabled: false, Timeout: time.Second})

	_, err := svc.Vary(context.Background(), "Bom dia, tudo certo com seu pedido")
	require.Error(t, err)
}

func TestLocalVariationDeterministicWithSeed(t *testing.T) {
	a := NewLocalVariationServiceWithSeed(42)
	b := NewLocalVariationServiceWithSeed(42)

	msg := "Olá, sua reserva foi confirmada para amanhã."
	for i := 0; i < 10; i++ {
		va, err := a.Vary(context.Background(), msg)
		require.NoError(t, err)
		vb, err := b.Vary(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, va, vb)
	}
}
