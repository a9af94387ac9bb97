package split

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tsubakiyo/warikan/internal/money"
)

// ErrValidation marks malformed finalize input. Validation is all-or-nothing:
// no partial allocation is ever returned.
var ErrValidation = errors.New("invalid allocation input")

// Finalize computes a cent-exact allocation of every item's cost across the
// roster and aggregates totals from the allocations themselves.
func Finalize(participants []ParticipantInfo, items []LineItem) (*SettlementResult, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: participants must not be empty", ErrValidation)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items must not be empty", ErrValidation)
	}

	roster := make(map[string]bool, len(participants))
	for _, p := range participants {
		if p.UniqueID == "" {
			return nil, fmt.Errorf("%w: participant with empty unique id", ErrValidation)
		}
		if roster[p.UniqueID] {
			return nil, fmt.Errorf("%w: duplicate participant %q", ErrValidation, p.UniqueID)
		}
		roster[p.UniqueID] = true
	}

	var allocations []Allocation
	seenItems := make(map[string]bool, len(items))
	for i, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("%w: item %d has no id", ErrValidation, i)
		}
		if seenItems[item.ID] {
			return nil, fmt.Errorf("%w: duplicate item %q", ErrValidation, item.ID)
		}
		seenItems[item.ID] = true

		unitPrice, quantity, err := resolvePricing(item)
		if err != nil {
			return nil, err
		}

		policy, err := resolvePolicy(item)
		if err != nil {
			return nil, err
		}

		var allocs []Allocation
		switch policy {
		case SplitEqual:
			allocs, err = allocateEqual(item, unitPrice, quantity, participants, roster)
		case SplitCount:
			allocs, err = allocateCount(item, unitPrice, quantity, roster)
		}
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, allocs...)
	}

	return &SettlementResult{
		Totals:      aggregate(participants, items, allocations),
		Allocations: allocations,
	}, nil
}

// resolvePricing returns a positive unit price (explicit, or derived from
// totalPrice/quantity) and a positive quantity, or a validation error.
func resolvePricing(item LineItem) (unitPrice, quantity float64, err error) {
	quantity = item.Quantity
	if quantity <= 0 {
		return 0, 0, fmt.Errorf("%w: item %q has non-positive quantity", ErrValidation, item.ID)
	}
	unitPrice = item.UnitPrice
	if unitPrice <= 0 && item.TotalPrice > 0 {
		unitPrice = item.TotalPrice / quantity
	}
	if unitPrice <= 0 {
		return 0, 0, fmt.Errorf("%w: item %q has no resolvable price", ErrValidation, item.ID)
	}
	return unitPrice, quantity, nil
}

func resolvePolicy(item LineItem) (string, error) {
	switch item.Split {
	case SplitEqual, SplitCount:
		return item.Split, nil
	case "":
		if len(item.Units) > 0 {
			return SplitCount, nil
		}
		return SplitEqual, nil
	}
	return "", fmt.Errorf("%w: item %q has unknown split policy %q", ErrValidation, item.ID, item.Split)
}

// allocateEqual splits the item total evenly across its assignees. Assignees
// are sorted by unique id before the last one absorbs the rounding
// remainder, so identical requests always place the drift on the same
// participant.
func allocateEqual(item LineItem, unitPrice, quantity float64, participants []ParticipantInfo, roster map[string]bool) ([]Allocation, error) {
	assignees := item.AssignedTo
	if len(assignees) == 0 {
		if item.Split == SplitEqual {
			return nil, fmt.Errorf("%w: item %q has equal split with no assignees", ErrValidation, item.ID)
		}
		// Policy was inferred: nobody named means everybody pays.
		assignees = make([]string, 0, len(participants))
		for _, p := range participants {
			assignees = append(assignees, p.UniqueID)
		}
	}

	seen := make(map[string]bool, len(assignees))
	var ids []string
	for _, id := range assignees {
		if !roster[id] {
			return nil, fmt.Errorf("%w: item %q assigned to unknown participant %q", ErrValidation, item.ID, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)

	itemTotal := money.Round2(unitPrice * quantity)
	ratio := 1.0 / float64(len(ids))

	allocs := make([]Allocation, 0, len(ids))
	allocated := 0.0
	for i, id := range ids {
		share := money.Round2(itemTotal * ratio)
		if i == len(ids)-1 {
			share = money.Round2(itemTotal - allocated)
		}
		allocated = money.Round2(allocated + share)
		r := ratio
		allocs = append(allocs, Allocation{
			ItemID:        item.ID,
			ParticipantID: id,
			ShareRatio:    &r,
			ShareAmount:   share,
		})
	}
	return allocs, nil
}

// allocateCount splits by per-participant unit counts; the counts must sum
// to the item quantity exactly.
func allocateCount(item LineItem, unitPrice, quantity float64, roster map[string]bool) ([]Allocation, error) {
	if len(item.Units) == 0 {
		return nil, fmt.Errorf("%w: item %q has count split with no units", ErrValidation, item.ID)
	}

	ids := make([]string, 0, len(item.Units))
	sum := 0
	for id, units := range item.Units {
		if !roster[id] {
			return nil, fmt.Errorf("%w: item %q counts unknown participant %q", ErrValidation, item.ID, id)
		}
		if units < 0 {
			return nil, fmt.Errorf("%w: item %q has negative units for %q", ErrValidation, item.ID, id)
		}
		sum += units
		ids = append(ids, id)
	}
	if float64(sum) != quantity {
		return nil, fmt.Errorf("%w: item %q units sum %d does not match quantity %v", ErrValidation, item.ID, sum, quantity)
	}
	sort.Strings(ids)

	var allocs []Allocation
	for _, id := range ids {
		units := item.Units[id]
		if units == 0 {
			continue
		}
		u := units
		allocs = append(allocs, Allocation{
			ItemID:        item.ID,
			ParticipantID: id,
			ShareUnits:    &u,
			ShareAmount:   money.Round2(float64(units) * unitPrice),
		})
	}
	return allocs, nil
}

// aggregate derives totals from the allocation list only, rounding at every
// accumulation step. byItem follows item order, byParticipant follows roster
// order and covers the whole roster.
func aggregate(participants []ParticipantInfo, items []LineItem, allocations []Allocation) Totals {
	itemSums := make(map[string]float64, len(items))
	participantSums := make(map[string]float64, len(participants))
	for _, a := range allocations {
		itemSums[a.ItemID] = money.Round2(itemSums[a.ItemID] + a.ShareAmount)
		participantSums[a.ParticipantID] = money.Round2(participantSums[a.ParticipantID] + a.ShareAmount)
	}

	totals := Totals{
		ByItem:        make([]ItemTotal, 0, len(items)),
		ByParticipant: make([]ParticipantTotal, 0, len(participants)),
	}
	for _, item := range items {
		totals.ByItem = append(totals.ByItem, ItemTotal{
			ItemID: item.ID,
			Name:   item.Name,
			Kind:   NormalizeKind(item.Kind),
			Total:  itemSums[item.ID],
		})
		totals.GrandTotal = money.Round2(totals.GrandTotal + itemSums[item.ID])
	}
	for _, p := range participants {
		totals.ByParticipant = append(totals.ByParticipant, ParticipantTotal{
			ParticipantID: p.UniqueID,
			Username:      p.Username,
			AvatarURL:     p.AvatarURL,
			AmountOwed:    participantSums[p.UniqueID],
		})
	}
	return totals
}
