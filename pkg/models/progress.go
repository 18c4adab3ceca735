package models

import (
	"fmt"
	"time"
)

// ProgressPhase names the stage of a scan a progress event describes
type ProgressPhase string

const (
	ProgressPhaseLoad  ProgressPhase = "load"  // loading people and stored pairs
	ProgressPhaseIndex ProgressPhase = "index" // prescan: building the n-gram index
	ProgressPhaseScan  ProgressPhase = "scan"  // cross-comparing candidate pairs
)

// ProgressEvent is one point-in-time report from a running scan. Events are
// published on the in-process bus and mirrored to the dupescan Kafka topic.
type ProgressEvent struct {
	RunID      string        `json:"run_id"`
	Phase      ProgressPhase `json:"phase"`
	Percent    int           `json:"percent"`
	ETASeconds int           `json:"eta_seconds"`
	At         time.Time     `json:"at"`
}

// Message renders the event for humans, used in the lock-busy response so a
// caller that lost the lock race can see how far along the running scan is.
func (e *ProgressEvent) Message() string {
	if e.ETASeconds > 0 {
		return fmt.Sprintf("duplicate scan in progress: %s %d%% complete, about %ds remaining", e.Phase, e.Percent, e.ETASeconds)
	}
	return fmt.Sprintf("duplicate scan in progress: %s %d%% complete", e.Phase, e.Percent)
}
