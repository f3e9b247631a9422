// Package translate is a narrow client for the product-name translation
// service. Failures here are never fatal to a refresh: callers keep the
// original Japanese title when a call fails.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zenwatch/zenwatch/internal/models"
	"github.com/zenwatch/zenwatch/pkg/logger"
)

type translateRequest struct {
	Query  string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

type Translator struct {
	logger *logger.Logger
	client *http.Client
	apiURL string
	apiKey string
}

// NewTranslator creates a translator against the given endpoint.
func NewTranslator(apiURL, apiKey string, timeout time.Duration, logger *logger.Logger) models.TranslationService {
	return &Translator{
		logger: logger,
		client: &http.Client{Timeout: timeout},
		apiURL: apiURL,
		apiKey: apiKey,
	}
}

// Translate converts text from sourceLang to targetLang. When the two
// languages match the text is returned as-is without a network call.
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if targetLang == sourceLang || targetLang == "" {
		return text, nil
	}

	payload, err := json.Marshal(translateRequest{
		Query:  text,
		Source: sourceLang,
		Target: targetLang,
		Format: "text",
		APIKey: t.apiKey,
	})
	if err != nil {
		return "", &models.TranslationError{Target: targetLang, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", &models.TranslationError{Target: targetLang, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &models.TranslationError{Target: targetLang, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &models.TranslationError{Target: targetLang,
			Err: fmt.Errorf("translation service returned status %d", resp.StatusCode)}
	}

	var parsed translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &models.TranslationError{Target: targetLang, Err: err}
	}
	if parsed.TranslatedText == "" {
		return "", &models.TranslationError{Target: targetLang,
			Err: fmt.Errorf("translation service returned empty text")}
	}

	return parsed.TranslatedText, nil
}
