package kafka

import (
	"encoding/json"
	"fmt"
	"time"
)

// Decision event types accepted on the decision topic.
const (
	DecisionPairExcluded = "pair.excluded" // review UI ruled the pair out
	DecisionPairConflict = "pair.conflict" // import pipeline found an identifier conflict
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	Decision *DecisionMessage
}

// DecisionMessage is an external verdict on a match pair, produced by the
// review UI or the import pipeline.
type DecisionMessage struct {
	Type      string    `json:"type"`
	LowID     string    `json:"low_id"`
	HighID    string    `json:"high_id"`
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseDecision parses the message value as a pair decision. The two ids may
// arrive in either order; the repository canonicalizes them.
func (m *IncomingMessage) ParseDecision() error {
	var decision DecisionMessage
	if err := json.Unmarshal(m.Value, &decision); err != nil {
		return err
	}
	if decision.Type != DecisionPairExcluded && decision.Type != DecisionPairConflict {
		return fmt.Errorf("unknown decision type %q", decision.Type)
	}
	if decision.LowID == "" || decision.HighID == "" {
		return fmt.Errorf("decision %q is missing a person id", decision.Type)
	}
	m.Decision = &decision
	return nil
}
