package gateway

import (
	"github.com/tsubakiyo/warikan/internal/money"
	"github.com/tsubakiyo/warikan/internal/split"
)

// mockItems is the fixed fallback receipt. The pipeline keeps working
// without the external provider; the summary total is always the sum of
// these items.
var mockItems = []split.LineItem{
	{ID: "mock-1", Name: "Coffee", UnitPrice: 3.50, Quantity: 2, TotalPrice: 7.00, Kind: split.KindItem},
	{ID: "mock-2", Name: "Club sandwich", UnitPrice: 8.25, Quantity: 1, TotalPrice: 8.25, Kind: split.KindItem},
	{ID: "mock-3", Name: "Sparkling water", UnitPrice: 2.00, Quantity: 1, TotalPrice: 2.00, Kind: split.KindItem},
	{ID: "mock-4", Name: "Service charge", UnitPrice: 1.75, Quantity: 1, TotalPrice: 1.75, Kind: split.KindFee},
}

func (g *Gateway) mockResult(attempts []Attempt, rawText string) ParseResult {
	items := make([]split.LineItem, len(mockItems))
	copy(items, mockItems)

	total := 0.0
	for _, item := range items {
		total = money.Round2(total + item.TotalPrice)
	}

	result := ParseResult{
		Items:   items,
		Summary: Summary{GrandTotal: total, Currency: "USD"},
		Source:  SourceMock,
	}
	if g.debug {
		result.Debug = &DebugInfo{RawText: rawText, Attempts: attempts}
	}
	return result
}
