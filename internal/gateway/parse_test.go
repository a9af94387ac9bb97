package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeModelOutput(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "plain object",
			raw:  `{"items":[],"summary":{"grandTotal":0}}`,
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"items\":[],\"summary\":{}}\n```",
		},
		{
			name: "bare fence",
			raw:  "```\n{\"items\":[],\"summary\":{}}\n```",
		},
		{
			name: "prose around the object",
			raw:  "Here is the extracted receipt:\n{\"items\":[],\"summary\":{}}\nLet me know if you need anything else.",
		},
		{
			name:    "missing items",
			raw:     `{"summary":{"grandTotal":10}}`,
			wantErr: true,
		},
		{
			name:    "missing summary",
			raw:     `{"items":[]}`,
			wantErr: true,
		},
		{
			name:    "no object at all",
			raw:     "I could not read the receipt, sorry.",
			wantErr: true,
		},
		{
			name:    "broken json",
			raw:     `{"items":[{"name":"x"},"summary":{}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := decodeModelOutput(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, payload.Items)
			require.NotNil(t, payload.Summary)
		})
	}
}

func TestNormalizePayloadDefaults(t *testing.T) {
	payload, err := decodeModelOutput(`{
		"items": [
			{"name": "Latte", "unitPrice": 4.5, "quantity": 2},
			{"name": "Bagel", "price": "3.20"},
			{"name": "Box of six", "totalPrice": 12.00, "quantity": 6},
			{"name": "Tip", "unitPrice": 2.0, "kind": "tip"},
			{"name": "Mystery", "unitPrice": 1.0, "quantity": "not a number"}
		],
		"summary": {"grandTotal": 999.99, "currency": "€"}
	}`)
	require.NoError(t, err)

	items, summary := normalizePayload(payload)
	require.Len(t, items, 5)

	latte := items[0]
	assert.Equal(t, "item-1", latte.ID)
	assert.Equal(t, 4.50, latte.UnitPrice)
	assert.Equal(t, 2.0, latte.Quantity)
	assert.Equal(t, 9.00, latte.TotalPrice)

	bagel := items[1]
	assert.Equal(t, 3.20, bagel.UnitPrice, "legacy price field feeds unitPrice")
	assert.Equal(t, 1.0, bagel.Quantity, "quantity defaults to 1")
	assert.Equal(t, 3.20, bagel.TotalPrice)

	box := items[2]
	assert.Equal(t, 2.00, box.UnitPrice, "unit price derived from total and quantity")
	assert.Equal(t, 12.00, box.TotalPrice)

	tip := items[3]
	assert.Equal(t, "tip", tip.Kind)

	mystery := items[4]
	assert.Equal(t, 1.0, mystery.Quantity, "unparseable quantity defaults to 1")

	// Grand total is recomputed from items; the model's 999.99 is ignored.
	assert.Equal(t, 9.00+3.20+12.00+2.00+1.00, summary.GrandTotal)
	assert.Equal(t, "EUR", summary.Currency)
}

func TestNormalizePayloadCurrencyFallbacks(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "summary currencyCode",
			raw:  `{"items":[],"summary":{"currencyCode":"jpy"}}`,
			want: "JPY",
		},
		{
			name: "item-level currency",
			raw:  `{"items":[{"name":"x","unitPrice":1,"currency":"руб"}],"summary":{}}`,
			want: "RUB",
		},
		{
			name: "nothing recognizable",
			raw:  `{"items":[],"summary":{"currency":"shells"}}`,
			want: "UNKNOWN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := decodeModelOutput(tt.raw)
			require.NoError(t, err)
			_, summary := normalizePayload(payload)
			assert.Equal(t, tt.want, summary.Currency)
		})
	}
}
