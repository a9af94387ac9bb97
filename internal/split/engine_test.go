package split

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsubakiyo/warikan/internal/money"
)

func roster(ids ...string) []ParticipantInfo {
	out := make([]ParticipantInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, ParticipantInfo{UniqueID: id, Username: "user-" + id})
	}
	return out
}

func owedBy(t *testing.T, res *SettlementResult, id string) float64 {
	t.Helper()
	for _, pt := range res.Totals.ByParticipant {
		if pt.ParticipantID == id {
			return pt.AmountOwed
		}
	}
	t.Fatalf("participant %q missing from byParticipant", id)
	return 0
}

func TestFinalizeEvenSplit(t *testing.T) {
	res, err := Finalize(roster("a", "b", "c"), []LineItem{
		{ID: "i1", Name: "pizza", UnitPrice: 2.00, Quantity: 3, Split: SplitEqual, AssignedTo: []string{"a", "b", "c"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2.00, owedBy(t, res, "a"))
	assert.Equal(t, 2.00, owedBy(t, res, "b"))
	assert.Equal(t, 2.00, owedBy(t, res, "c"))
	assert.Equal(t, 6.00, res.Totals.GrandTotal)
}

func TestFinalizeRemainderSplit(t *testing.T) {
	res, err := Finalize(roster("a", "b"), []LineItem{
		{ID: "i1", Name: "beer", UnitPrice: 1.00, Quantity: 3, Split: SplitEqual, AssignedTo: []string{"a", "b"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.50, owedBy(t, res, "a"))
	assert.Equal(t, 1.50, owedBy(t, res, "b"))
	assert.Equal(t, 3.00, res.Totals.GrandTotal)
}

func TestFinalizeCountSplit(t *testing.T) {
	res, err := Finalize(roster("a", "b"), []LineItem{
		{ID: "i1", Name: "gyoza", UnitPrice: 1.00, Quantity: 3, Split: SplitCount, Units: map[string]int{"a": 2, "b": 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2.00, owedBy(t, res, "a"))
	assert.Equal(t, 1.00, owedBy(t, res, "b"))

	require.Len(t, res.Allocations, 2)
	for _, a := range res.Allocations {
		require.NotNil(t, a.ShareUnits)
		assert.Nil(t, a.ShareRatio)
	}
}

func TestFinalizeRemainderGoesToLastSortedAssignee(t *testing.T) {
	// 1.00 over three people: 0.33 + 0.33 + 0.34. The caller's ordering must
	// not change who absorbs the extra cent.
	for _, order := range [][]string{{"a", "b", "c"}, {"c", "a", "b"}, {"b", "c", "a"}} {
		res, err := Finalize(roster("a", "b", "c"), []LineItem{
			{ID: "i1", UnitPrice: 1.00, Quantity: 1, Split: SplitEqual, AssignedTo: order},
		})
		require.NoError(t, err)

		assert.Equal(t, 0.33, owedBy(t, res, "a"), "order %v", order)
		assert.Equal(t, 0.33, owedBy(t, res, "b"), "order %v", order)
		assert.Equal(t, 0.34, owedBy(t, res, "c"), "order %v", order)
	}
}

func TestFinalizeEqualSumsExactlyForAwkwardPrices(t *testing.T) {
	tests := []struct {
		unitPrice float64
		quantity  float64
		assignees int
	}{
		{0.10, 3, 7},
		{1.99, 1, 3},
		{33.33, 3, 6},
		{0.01, 1, 5},
		{19.95, 2, 9},
	}

	for _, tt := range tests {
		ids := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9"}[:tt.assignees]
		res, err := Finalize(roster(ids...), []LineItem{
			{ID: "i1", UnitPrice: tt.unitPrice, Quantity: tt.quantity, Split: SplitEqual, AssignedTo: ids},
		})
		require.NoError(t, err)

		itemTotal := money.Round2(tt.unitPrice * tt.quantity)
		sum := 0.0
		for _, a := range res.Allocations {
			sum = money.Round2(sum + a.ShareAmount)
		}
		assert.Equal(t, itemTotal, sum, "unit %v qty %v across %d", tt.unitPrice, tt.quantity, tt.assignees)
		assert.Equal(t, itemTotal, res.Totals.GrandTotal)
	}
}

func TestFinalizeTotalsInvariant(t *testing.T) {
	res, err := Finalize(roster("a", "b", "c", "d"), []LineItem{
		{ID: "i1", Name: "ramen", UnitPrice: 9.80, Quantity: 2, Split: SplitEqual, AssignedTo: []string{"a", "b", "c"}},
		{ID: "i2", Name: "drinks", UnitPrice: 3.33, Quantity: 3, Split: SplitCount, Units: map[string]int{"a": 1, "d": 2}},
		{ID: "i3", Name: "service", UnitPrice: 1.25, Quantity: 1, Kind: KindFee},
	})
	require.NoError(t, err)

	byItemSum := 0.0
	for _, it := range res.Totals.ByItem {
		byItemSum = money.Round2(byItemSum + it.Total)
	}
	byParticipantSum := 0.0
	for _, pt := range res.Totals.ByParticipant {
		byParticipantSum = money.Round2(byParticipantSum + pt.AmountOwed)
	}

	assert.Equal(t, res.Totals.GrandTotal, byItemSum)
	assert.Equal(t, res.Totals.GrandTotal, byParticipantSum)
}

func TestFinalizePolicyInference(t *testing.T) {
	// Units map present infers count; nothing at all infers equal over the
	// full roster.
	res, err := Finalize(roster("a", "b"), []LineItem{
		{ID: "counted", UnitPrice: 2.00, Quantity: 2, Units: map[string]int{"a": 2}},
		{ID: "shared", UnitPrice: 5.00, Quantity: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, money.Round2(4.00+2.50), owedBy(t, res, "a"))
	assert.Equal(t, 2.50, owedBy(t, res, "b"))
}

func TestFinalizeRosterZeroes(t *testing.T) {
	res, err := Finalize(roster("a", "b", "idle"), []LineItem{
		{ID: "i1", UnitPrice: 4.00, Quantity: 1, Split: SplitEqual, AssignedTo: []string{"a", "b"}},
	})
	require.NoError(t, err)

	require.Len(t, res.Totals.ByParticipant, 3)
	assert.Equal(t, 0.0, owedBy(t, res, "idle"))
}

func TestFinalizeDerivesUnitPriceFromTotal(t *testing.T) {
	res, err := Finalize(roster("a", "b"), []LineItem{
		{ID: "i1", TotalPrice: 9.00, Quantity: 3, Split: SplitCount, Units: map[string]int{"a": 1, "b": 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, 3.00, owedBy(t, res, "a"))
	assert.Equal(t, 6.00, owedBy(t, res, "b"))
}

func TestFinalizeValidation(t *testing.T) {
	people := roster("a", "b")

	tests := []struct {
		name         string
		participants []ParticipantInfo
		items        []LineItem
	}{
		{
			name:         "empty participants",
			participants: nil,
			items:        []LineItem{{ID: "i1", UnitPrice: 1, Quantity: 1}},
		},
		{
			name:         "empty items",
			participants: people,
			items:        nil,
		},
		{
			name:         "duplicate participant",
			participants: roster("a", "a"),
			items:        []LineItem{{ID: "i1", UnitPrice: 1, Quantity: 1}},
		},
		{
			name:         "no resolvable price",
			participants: people,
			items:        []LineItem{{ID: "i1", Quantity: 2}},
		},
		{
			name:         "non-positive quantity",
			participants: people,
			items:        []LineItem{{ID: "i1", UnitPrice: 1, Quantity: 0}},
		},
		{
			name:         "unknown split policy",
			participants: people,
			items:        []LineItem{{ID: "i1", UnitPrice: 1, Quantity: 1, Split: "weighted"}},
		},
		{
			name:         "equal split with unknown assignee",
			participants: people,
			items:        []LineItem{{ID: "i1", UnitPrice: 1, Quantity: 1, Split: SplitEqual, AssignedTo: []string{"a", "ghost"}}},
		},
		{
			name:         "explicit equal split with no assignees",
			participants: people,
			items:        []LineItem{{ID: "i1", UnitPrice: 1, Quantity: 1, Split: SplitEqual}},
		},
		{
			name:         "count units under quantity",
			participants: people,
			items:        []LineItem{{ID: "i1", UnitPrice: 1, Quantity: 3, Split: SplitCount, Units: map[string]int{"a": 1, "b": 1}}},
		},
		{
			name:         "count units over quantity",
			participants: people,
			items:        []LineItem{{ID: "i1", UnitPrice: 1, Quantity: 3, Split: SplitCount, Units: map[string]int{"a": 2, "b": 2}}},
		},
		{
			name:         "count with negative units",
			participants: people,
			items:        []LineItem{{ID: "i1", UnitPrice: 1, Quantity: 1, Split: SplitCount, Units: map[string]int{"a": 2, "b": -1}}},
		},
		{
			name:         "count with unknown participant",
			participants: people,
			items:        []LineItem{{ID: "i1", UnitPrice: 1, Quantity: 1, Split: SplitCount, Units: map[string]int{"ghost": 1}}},
		},
		{
			name:         "duplicate item id",
			participants: people,
			items: []LineItem{
				{ID: "i1", UnitPrice: 1, Quantity: 1},
				{ID: "i1", UnitPrice: 1, Quantity: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Finalize(tt.participants, tt.items)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation), "expected ErrValidation, got %v", err)
			assert.Nil(t, res, "no partial result on validation failure")
		})
	}
}
