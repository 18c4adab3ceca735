package models

import "time"

// MatchPairStatus is the single-letter review status stored with each pair
type MatchPairStatus string

const (
	MatchPairStatusNew      MatchPairStatus = "N" // produced by a scan, awaiting review
	MatchPairStatusExcluded MatchPairStatus = "E" // a reviewer ruled the pair out
	MatchPairStatusConflict MatchPairStatus = "C" // records share a unique identifier and must be resolved
)

// MatchPair is one candidate duplicate pair. Pairs are stored canonically
// with LowID < HighID, so (a, b) and (b, a) name the same row.
type MatchPair struct {
	LowID         string          `json:"low_id" db:"low_id"`
	HighID        string          `json:"high_id" db:"high_id"`
	Status        MatchPairStatus `json:"status" db:"status"`
	Confidence    *float64        `json:"confidence,omitempty" db:"confidence"`
	ExcludeReason *string         `json:"exclude_reason,omitempty" db:"exclude_reason"`
	TimeChecked   time.Time       `json:"timechecked" db:"timechecked"`
}

// CanonicalIDs orders two person ids so the smaller one comes first.
func CanonicalIDs(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// NewMatchPair builds a NEW pair from two person ids in either order.
func NewMatchPair(a, b string, confidence float64) MatchPair {
	low, high := CanonicalIDs(a, b)
	return MatchPair{
		LowID:       low,
		HighID:      high,
		Status:      MatchPairStatusNew,
		Confidence:  &confidence,
		TimeChecked: time.Now().UTC(),
	}
}

// Key returns the canonical identity of the pair, used for map lookups.
func (p *MatchPair) Key() string {
	return p.LowID + "\x00" + p.HighID
}

// ConfidenceValue returns the stored confidence, or 0 when none was recorded.
func (p *MatchPair) ConfidenceValue() float64 {
	if p.Confidence == nil {
		return 0
	}
	return *p.Confidence
}

// MarkExcluded flags the pair as reviewed and ruled out. Excluded pairs are
// never evicted and never re-created by later scans.
func (p *MatchPair) MarkExcluded(reason string) {
	p.Status = MatchPairStatusExcluded
	p.ExcludeReason = &reason
	p.TimeChecked = time.Now().UTC()
}

// MarkConflict flags the pair as a hard identifier conflict. Conflicts are
// always reported with full confidence regardless of field similarity.
func (p *MatchPair) MarkConflict() {
	confidence := 1.0
	p.Status = MatchPairStatusConflict
	p.Confidence = &confidence
	p.TimeChecked = time.Now().UTC()
}

// ExcludeMatchPairRequest marks a pair excluded with the reviewer's reason
type ExcludeMatchPairRequest struct {
	LowID  string `json:"low_id" validate:"required"`
	HighID string `json:"high_id" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// ConflictMatchPairRequest marks a pair as an identifier conflict
type ConflictMatchPairRequest struct {
	LowID  string `json:"low_id" validate:"required"`
	HighID string `json:"high_id" validate:"required"`
}

// StartScanRequest starts a detached duplicate scan
type StartScanRequest struct {
	Mode     string `json:"mode" validate:"omitempty,oneof=full incremental"`
	AllPairs bool   `json:"all_pairs"` // diagnostic: compare every pair, skip the blocking index
}
