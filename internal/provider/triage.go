package provider

import (
	"strings"
)

// Class is the webhook's three-way response decision for a processing error.
type Class int

const (
	// ClassAck: expected/idempotent condition, acknowledge so the provider
	// stops redelivering.
	ClassAck Class = iota
	// ClassRetry: transient condition, answer with a retry-me status.
	ClassRetry
	// ClassInvestigate: unknown condition, acknowledge to avoid an unbounded
	// retry storm but flag for manual follow-up.
	ClassInvestigate
)

// TriageRule matches a known error identifier substring to a response class.
// The table is data, not control flow: extend it without touching the handler.
type TriageRule struct {
	Match string
	Class Class
}

// DefaultTriage covers the error identifiers this core produces plus the
// storage failure shapes seen in production. First match wins.
var DefaultTriage = []TriageRule{
	// Idempotent / expected: the work is already done.
	{Match: "already paid", Class: ClassAck},
	{Match: "payment not found", Class: ClassAck},
	{Match: "ticket already", Class: ClassAck},

	// Transient: possibly a race with data not yet committed, or storage
	// connectivity. The provider should redeliver.
	{Match: "registration not found", Class: ClassRetry},
	{Match: "database is locked", Class: ClassRetry},
	{Match: "context deadline exceeded", Class: ClassRetry},
	{Match: "connection refused", Class: ClassRetry},
	{Match: "i/o timeout", Class: ClassRetry},
}

// Classify buckets err into exactly one class using the triage table. A nil
// error is an ack.
func Classify(err error, table []TriageRule) Class {
	if err == nil {
		return ClassAck
	}
	msg := err.Error()
	for _, rule := range table {
		if strings.Contains(msg, rule.Match) {
			return rule.Class
		}
	}
	return ClassInvestigate
}
