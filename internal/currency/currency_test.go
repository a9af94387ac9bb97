package currency

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "euro symbol", raw: "€", want: "EUR"},
		{name: "dollar symbol", raw: "$", want: "USD"},
		{name: "lowercase code", raw: "rub", want: "RUB"},
		{name: "cyrillic name", raw: "руб", want: "RUB"},
		{name: "cyrillic name with dot", raw: "руб.", want: "RUB"},
		{name: "uppercase code passes through", raw: "EUR", want: "EUR"},
		{name: "mixed case code", raw: "UsD", want: "USD"},
		{name: "textual name", raw: "euros", want: "EUR"},
		{name: "textual name beats code casing", raw: "Yen", want: "JPY"},
		{name: "surrounding whitespace", raw: "  gbp ", want: "GBP"},
		{name: "unrecognized token", raw: "doubloons", want: Unknown},
		{name: "bogus three-letter token", raw: "foo", want: Unknown},
		{name: "bogus three-letter token uppercase", raw: "XYZ", want: Unknown},
		{name: "empty", raw: "", want: Unknown},
		{name: "numeric junk", raw: "123", want: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
