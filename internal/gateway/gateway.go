package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tsubakiyo/warikan/internal/split"
)

// Attempt outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeParseFail = "parse_fail"
	OutcomeHTTPError = "http_error"
	OutcomeException = "exception"
)

// Provenance of a ParseResult.
const (
	SourceProvider = "provider"
	SourceMock     = "mock"
)

const providerAPIVersion = "v1"

const extractionInstruction = `You are a receipt parser. Extract every line item from the receipt image and respond with a single JSON object, nothing else. Shape:
{"items":[{"id":"1","name":"...","unitPrice":0.00,"quantity":1,"totalPrice":0.00,"kind":"item|fee|tip|discount|other"}],"summary":{"grandTotal":0.00,"currency":"..."}}
Use numbers for prices and quantities. Include fees, tips and discounts as their own items. currency is the symbol or code printed on the receipt.`

// Summary accompanies the extracted items. GrandTotal is always recomputed
// from the normalized item totals.
type Summary struct {
	GrandTotal float64 `json:"grand_total"`
	Currency   string  `json:"currency"`
}

// Attempt is the diagnostic record of one model candidate call.
type Attempt struct {
	Model      string        `json:"model"`
	APIVersion string        `json:"api_version"`
	Outcome    string        `json:"outcome"`
	HTTPStatus int           `json:"http_status,omitempty"`
	Duration   time.Duration `json:"duration"`
	OutputLen  int           `json:"output_len"`
	Err        string        `json:"error,omitempty"`
}

// DebugInfo carries verbose diagnostics, attached only when the gateway was
// built with debug enabled.
type DebugInfo struct {
	RawText  string    `json:"raw_text,omitempty"`
	Attempts []Attempt `json:"attempts"`
}

type ParseResult struct {
	Items   []split.LineItem `json:"items"`
	Summary Summary          `json:"summary"`
	Source  string           `json:"source"`
	Debug   *DebugInfo       `json:"debug,omitempty"`
}

// Gateway sends receipt images to an external multimodal model, trying an
// ordered candidate list until one returns parseable structured data.
// Provider failure is absorbed: ParseReceipt always returns a usable result,
// degrading to a fixed mock when no provider is configured or every
// candidate fails.
type Gateway struct {
	client     *openai.Client
	candidates []string
	cache      *ModelCache
	debug      bool
}

func New(apiKey, baseURL string, candidates []string, cache *ModelCache, debug bool) *Gateway {
	if cache == nil {
		cache = NewModelCache()
	}
	g := &Gateway{
		candidates: candidates,
		cache:      cache,
		debug:      debug,
	}
	if apiKey != "" {
		cfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		g.client = openai.NewClientWithConfig(cfg)
	}
	return g
}

// ParseReceipt runs the candidate chain over the image and returns the first
// parseable result, normalized. languageHint steers the extraction, and
// contextLabel tags the request for the provider (e.g. a session id).
func (g *Gateway) ParseReceipt(ctx context.Context, image []byte, mimeType, languageHint, contextLabel string) ParseResult {
	if g.client == nil || len(image) == 0 {
		return g.mockResult(nil, "")
	}

	var attempts []Attempt
	var lastRaw string
	for _, model := range g.orderedCandidates() {
		raw, attempt := g.tryCandidate(ctx, model, image, mimeType, languageHint, contextLabel)
		attempts = append(attempts, attempt)
		if raw != "" {
			lastRaw = raw
		}
		if attempt.Outcome != OutcomeOK {
			log.Printf("receipt parse: model %s failed (%s): %s", model, attempt.Outcome, attempt.Err)
			continue
		}

		payload, err := decodeModelOutput(raw)
		if err != nil {
			attempts[len(attempts)-1].Outcome = OutcomeParseFail
			attempts[len(attempts)-1].Err = err.Error()
			log.Printf("receipt parse: model %s returned unparseable output: %v", model, err)
			continue
		}

		g.cache.Set(model)
		items, summary := normalizePayload(payload)
		result := ParseResult{
			Items:   items,
			Summary: summary,
			Source:  SourceProvider,
		}
		if g.debug {
			result.Debug = &DebugInfo{RawText: raw, Attempts: attempts}
		}
		return result
	}

	log.Printf("receipt parse: all %d model candidates failed, using mock result", len(attempts))
	return g.mockResult(attempts, lastRaw)
}

// orderedCandidates puts the last successful model first when it is still in
// the configured list. The hint is best effort only.
func (g *Gateway) orderedCandidates() []string {
	hint := g.cache.Get()
	if hint == "" {
		return g.candidates
	}
	found := false
	for _, m := range g.candidates {
		if m == hint {
			found = true
			break
		}
	}
	if !found {
		return g.candidates
	}
	out := make([]string, 0, len(g.candidates))
	out = append(out, hint)
	for _, m := range g.candidates {
		if m != hint {
			out = append(out, m)
		}
	}
	return out
}

// tryCandidate issues exactly one request for the model. No retry, no
// backoff; failure moves the chain to the next candidate.
func (g *Gateway) tryCandidate(ctx context.Context, model string, image []byte, mimeType, languageHint, contextLabel string) (string, Attempt) {
	attempt := Attempt{Model: model, APIVersion: providerAPIVersion}
	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		User:     contextLabel,
		Messages: buildMessages(image, mimeType, languageHint),
	})
	attempt.Duration = time.Since(start)

	if err != nil {
		attempt.Outcome, attempt.HTTPStatus = classifyError(err)
		attempt.Err = err.Error()
		return "", attempt
	}
	if len(resp.Choices) == 0 {
		attempt.Outcome = OutcomeParseFail
		attempt.Err = "no choices in response"
		return "", attempt
	}

	raw := resp.Choices[0].Message.Content
	attempt.Outcome = OutcomeOK
	attempt.OutputLen = len(raw)
	return raw, attempt
}

func buildMessages(image []byte, mimeType, languageHint string) []openai.ChatCompletionMessage {
	instruction := extractionInstruction
	if strings.TrimSpace(languageHint) != "" {
		instruction += "\nThe receipt is in " + strings.TrimSpace(languageHint) + "."
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	return []openai.ChatCompletionMessage{
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: instruction},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURI,
						Detail: openai.ImageURLDetailAuto,
					},
				},
			},
		},
	}
}

func classifyError(err error) (outcome string, status int) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return OutcomeHTTPError, apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return OutcomeHTTPError, reqErr.HTTPStatusCode
	}
	return OutcomeException, 0
}
