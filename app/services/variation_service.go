package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"

	"github.com/velozap/disparador/config"
)

// MessageVariationService produces small per-recipient variations of a
// campaign message so consecutive sends are not byte-identical. Variations
// must preserve meaning; they only perturb the text's surface form.
type MessageVariationService interface {
	Vary(ctx context.Context, message string) (string, error)
}

// PersonalizeMessage substitutes the {nome} placeholder with the recipient's
// display name. A recipient without a name gets the placeholder stripped along
// with any immediately following space.
func PersonalizeMessage(message, displayName string) string {
	if displayName == "" {
		message = strings.ReplaceAll(message, "{nome} ", "")
		return strings.ReplaceAll(message, "{nome}", "")
	}
	return strings.ReplaceAll(message, "{nome}", displayName)
}

// AIVariationService rewrites messages through an external LLM endpoint.
// A disabled or unreachable endpoint is reported as an error; the caller
// decides whether to degrade to local variation or send unmodified, so a
// provider outage never stalls a campaign.
type AIVariationService struct {
	config *config.VariationConfig
	client *http.Client
}

// NewAIVariationService creates a new AI variation service instance
func NewAIVariationService(cfg *config.VariationConfig) MessageVariationService {
	return &AIVariationService{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type variationRequest struct {
	Model   string `json:"model"`
	Message string `json:"message"`
}

type variationResponse struct {
	Variation string `json:"variation"`
}

// Vary requests a rewrite from the configured endpoint
func (s *AIVariationService) Vary(ctx context.Context, message string) (string, error) {
	if !s.config.Enabled || s.config.URL == "" {
		return "", fmt.Errorf("variation endpoint is not configured")
	}

	varied, err := s.requestVariation(ctx, message)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(varied) == "" {
		return "", fmt.Errorf("variation endpoint returned an empty rewrite")
	}
	return varied, nil
}

func (s *AIVariationService) requestVariation(ctx context.Context, message string) (string, error) {
	requestBody, err := json.Marshal(variationRequest{
		Model:   s.config.Model,
		Message: message,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal variation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.URL, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call variation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("variation service returned HTTP %d", resp.StatusCode)
	}

	var result variationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode variation response: %w", err)
	}
	return result.Variation, nil
}

// LocalVariationService perturbs messages without any external dependency.
// It inserts zero width spaces at word boundaries and swaps terminal
// punctuation, which changes the byte sequence without changing what the
// recipient reads.
type LocalVariationService struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewLocalVariationService creates a new local variation service
func NewLocalVariationService() *LocalVariationService {
	return &LocalVariationService{
		rnd: rand.New(rand.NewSource(rand.Int63())),
	}
}

// NewLocalVariationServiceWithSeed creates a local variation service with a
// fixed seed, for deterministic tests.
func NewLocalVariationServiceWithSeed(seed int64) *LocalVariationService {
	return &LocalVariationService{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

const zeroWidthSpace = "​"

// Vary returns a perturbed copy of the message
func (s *LocalVariationService) Vary(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return message, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	words := strings.Fields(message)
	if len(words) > 1 {
		// Insert a zero width space after one randomly chosen word
		idx := s.rnd.Intn(len(words) - 1)
		words[idx] += zeroWidthSpace
		message = strings.Join(words, " ")
	}

	message = s.varyTerminalPunctuation(message)
	return message, nil
}

func (s *LocalVariationService) varyTerminalPunctuation(message string) string {
	trimmed := strings.TrimRight(message, " ")
	switch {
	case strings.HasSuffix(trimmed, "!"):
		if s.rnd.Intn(2) == 0 {
			return strings.TrimSuffix(trimmed, "!") + "!!"
		}
	case strings.HasSuffix(trimmed, "."):
		if s.rnd.Intn(2) == 0 {
			return strings.TrimSuffix(trimmed, ".")
		}
	default:
		if s.rnd.Intn(2) == 0 {
			return trimmed + "."
		}
	}
	return message
}
