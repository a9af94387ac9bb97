package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tsubakiyo/warikan/internal/currency"
	"github.com/tsubakiyo/warikan/internal/money"
	"github.com/tsubakiyo/warikan/internal/split"
)

var errUnparseable = errors.New("model output is not a receipt payload")

// flexFloat decodes a JSON number or a numeric string. Model output mixes
// both freely.
type flexFloat struct {
	val float64
	set bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(strings.ReplaceAll(str, ",", "."))
		if str == "" {
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			// Tolerate junk like "n/a"; the field just stays unset.
			return nil
		}
		f.val = v
		f.set = true
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.val = v
	f.set = true
	return nil
}

type rawItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	UnitPrice  flexFloat `json:"unitPrice"`
	Price      flexFloat `json:"price"` // legacy field name
	Quantity   flexFloat `json:"quantity"`
	TotalPrice flexFloat `json:"totalPrice"`
	Kind       string    `json:"kind"`
	Currency   string    `json:"currency"`
}

type rawSummary struct {
	GrandTotal   flexFloat `json:"grandTotal"`
	Total        flexFloat `json:"total"`
	Currency     string    `json:"currency"`
	CurrencyCode string    `json:"currencyCode"`
}

type rawPayload struct {
	Items   *[]rawItem  `json:"items"`
	Summary *rawSummary `json:"summary"`
}

// decodeModelOutput strips markdown fencing, takes the outermost {...} span
// and decodes it. A missing items array or summary object counts as a parse
// failure, never as an empty receipt.
func decodeModelOutput(raw string) (*rawPayload, error) {
	jsonText, ok := extractJSONObject(stripFences(raw))
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found", errUnparseable)
	}

	var payload rawPayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnparseable, err)
	}
	if payload.Items == nil {
		return nil, fmt.Errorf("%w: missing items array", errUnparseable)
	}
	if payload.Summary == nil {
		return nil, fmt.Errorf("%w: missing summary object", errUnparseable)
	}
	return &payload, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag like "json" on the fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "" || !strings.ContainsAny(first, "{}") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// normalizePayload turns a decoded payload into clean line items plus a
// summary with a recomputed grand total. The model's own total is not
// trusted.
func normalizePayload(payload *rawPayload) ([]split.LineItem, Summary) {
	items := make([]split.LineItem, 0, len(*payload.Items))
	grandTotal := 0.0
	itemCurrency := ""
	for i, raw := range *payload.Items {
		item := normalizeItem(raw, i)
		items = append(items, item)
		grandTotal = money.Round2(grandTotal + item.TotalPrice)
		if itemCurrency == "" && strings.TrimSpace(raw.Currency) != "" {
			itemCurrency = raw.Currency
		}
	}

	return items, Summary{
		GrandTotal: grandTotal,
		Currency:   normalizeCurrency(payload.Summary, itemCurrency),
	}
}

// normalizeItem applies the coercion rules: quantity defaults to 1,
// unitPrice falls back to the legacy price field, totalPrice is computed
// when absent, all money rounded to 2 decimals.
func normalizeItem(raw rawItem, index int) split.LineItem {
	quantity := 1.0
	if raw.Quantity.set && raw.Quantity.val > 0 {
		quantity = raw.Quantity.val
	}

	unitPrice := 0.0
	switch {
	case raw.UnitPrice.set:
		unitPrice = raw.UnitPrice.val
	case raw.Price.set:
		unitPrice = raw.Price.val
	}

	totalPrice := raw.TotalPrice.val
	if !raw.TotalPrice.set {
		totalPrice = unitPrice * quantity
	}
	if !raw.UnitPrice.set && !raw.Price.set && raw.TotalPrice.set && quantity > 0 {
		unitPrice = totalPrice / quantity
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = fmt.Sprintf("item-%d", index+1)
	}

	return split.LineItem{
		ID:         id,
		Name:       strings.TrimSpace(raw.Name),
		UnitPrice:  money.Round2(unitPrice),
		Quantity:   quantity,
		TotalPrice: money.Round2(totalPrice),
		Kind:       split.NormalizeKind(strings.ToLower(strings.TrimSpace(raw.Kind))),
	}
}

// normalizeCurrency tries the summary fields first, then any item-level
// value that was seen.
func normalizeCurrency(summary *rawSummary, itemCurrency string) string {
	for _, raw := range []string{summary.Currency, summary.CurrencyCode, itemCurrency} {
		if code := currency.Normalize(raw); code != currency.Unknown {
			return code
		}
	}
	return currency.Unknown
}
