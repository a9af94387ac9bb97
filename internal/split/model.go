package split

import "time"

// Split policies for a line item.
const (
	SplitEqual = "equal"
	SplitCount = "count"
)

// Recognized line item kinds. Anything else is dropped to "".
const (
	KindItem     = "item"
	KindFee      = "fee"
	KindTip      = "tip"
	KindDiscount = "discount"
	KindOther    = "other"
)

// LineItem is one row extracted from a receipt, possibly edited by the
// caller before finalize. ID is caller-scoped, not a database key.
type LineItem struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   float64 `json:"quantity"`
	TotalPrice float64 `json:"total_price"`
	Kind       string  `json:"kind,omitempty"`

	// Split instructions. Split is one of SplitEqual/SplitCount; when empty
	// the policy is inferred (units map present means count, else equal).
	Split      string         `json:"split,omitempty"`
	AssignedTo []string       `json:"assigned_to,omitempty"`
	Units      map[string]int `json:"units,omitempty"`
}

// ParticipantInfo is the external-directory identity echoed through
// allocations and snapshots.
type ParticipantInfo struct {
	UniqueID  string `json:"unique_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Allocation assigns one item's cost share to one participant. Exactly one
// of ShareUnits (count policy) or ShareRatio (equal policy) is set.
type Allocation struct {
	ItemID        string   `json:"item_id"`
	ParticipantID string   `json:"participant_id"`
	ShareUnits    *int     `json:"share_units,omitempty"`
	ShareRatio    *float64 `json:"share_ratio,omitempty"`
	ShareAmount   float64  `json:"share_amount"`
}

type ItemTotal struct {
	ItemID string  `json:"item_id"`
	Name   string  `json:"name"`
	Kind   string  `json:"kind,omitempty"`
	Total  float64 `json:"total"`
}

type ParticipantTotal struct {
	ParticipantID string  `json:"participant_id"`
	Username      string  `json:"username"`
	AvatarURL     string  `json:"avatar_url,omitempty"`
	AmountOwed    float64 `json:"amount_owed"`
}

// Totals is aggregated from the allocation list only, never from
// caller-supplied summaries.
type Totals struct {
	GrandTotal    float64            `json:"grand_total"`
	ByItem        []ItemTotal        `json:"by_item"`
	ByParticipant []ParticipantTotal `json:"by_participant"`
}

type SettlementResult struct {
	Totals      Totals       `json:"totals"`
	Allocations []Allocation `json:"allocations"`
}

// Snapshot is the per-session settlement record persisted by finalize.
type Snapshot struct {
	SessionID    string            `json:"session_id"`
	Participants []ParticipantInfo `json:"participants"`
	Allocations  []Allocation      `json:"allocations"`
	Totals       Totals            `json:"totals"`
	FinalizedAt  time.Time         `json:"finalized_at"`
}

// NormalizeKind returns the kind tag if recognized, "" otherwise.
func NormalizeKind(kind string) string {
	switch kind {
	case KindItem, KindFee, KindTip, KindDiscount, KindOther:
		return kind
	}
	return ""
}
