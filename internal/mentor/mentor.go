// Package mentor implements the mentor-code invitation workflow.
//
//   - registry.go  Registry: issue, list and watch invitation codes
//   - ledger.go    Ledger: list and watch redemption requests
//   - workflow.go  Workflow: RedeemCode and DecideRequest, the only cross-document writes
//   - watch.go     snapshot subscriptions over store change feeds, with read fallbacks
//
// Every mutation goes through a store transaction; code and request documents are never
// updated field by field outside of one.
package mentor

import (
	"log/slog"
	"time"

	"mentorgate/internal/store"
	"mentorgate/lib/clock"
)

const (
	DefaultCodeLimit     = 25
	DefaultRequestLimit  = 50
	DefaultWatchFallback = 3 * time.Second
	DefaultIssueAttempts = 5
)

type Options struct {
	CodeLimit     int
	RequestLimit  int
	WatchFallback time.Duration
	IssueAttempts int
	// Now is the time source; values are truncated to milliseconds.
	Now func() time.Time

	defaulted bool
}

// withDefaults fills unset options. Applying it again returns the options unchanged.
func (o Options) withDefaults() Options {
	if o.defaulted {
		return o
	}
	if o.CodeLimit <= 0 {
		o.CodeLimit = DefaultCodeLimit
	}
	if o.RequestLimit <= 0 {
		o.RequestLimit = DefaultRequestLimit
	}
	if o.WatchFallback <= 0 {
		o.WatchFallback = DefaultWatchFallback
	}
	if o.IssueAttempts <= 0 {
		o.IssueAttempts = DefaultIssueAttempts
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	now := o.Now
	o.Now = func() time.Time { return clock.Truncate(now()) }
	o.defaulted = true
	return o
}

// Snapshot is one delivery of a watch. OrderingDegraded is set when the newest-first
// query failed and Items come from an unordered read.
type Snapshot[T any] struct {
	Items            []T
	OrderingDegraded bool
}

// Service bundles the three components over one store.
type Service struct {
	Codes    *Registry
	Requests *Ledger
	Workflow *Workflow
}

func New(st store.Store, log *slog.Logger, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		Codes:    NewRegistry(st, log, opts),
		Requests: NewLedger(st, log, opts),
		Workflow: NewWorkflow(st, log, opts),
	}
}
