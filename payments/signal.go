// Package payments turns external payment provider signals into ledger
// operations. Signals arrive over kafka or the HTTP webhook and may be
// delivered any number of times.
package payments

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFailed    Outcome = "failed"
)

// Signal is one payment provider callback.
type Signal struct {
	PaymentReference string             `json:"payment_reference"`
	EventID          primitive.ObjectID `json:"event_id,omitempty"`
	// Amount is the final settled amount in minor units; zero means the
	// pledged amount.
	Amount          int64   `json:"amount,omitempty"`
	Outcome         Outcome `json:"outcome"`
	Reason          string  `json:"reason,omitempty"`
	ContributorName string  `json:"contributor_name,omitempty"`
	Method          string  `json:"method,omitempty"`
}

func (s Signal) normalized() Signal {
	s.PaymentReference = strings.TrimSpace(s.PaymentReference)
	s.Outcome = Outcome(strings.ToLower(strings.TrimSpace(string(s.Outcome))))
	return s
}

func (s Signal) dedupeKey() string {
	return "payment:" + s.PaymentReference + ":" + string(s.Outcome)
}
