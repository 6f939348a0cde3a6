package service

import (
	"time"

	"fincoach/internal/module/connection/domain"
)

// debitLookback softens clock skew between provider and server when picking
// up new spending after a sync.
const debitLookback = 5 * time.Minute

// debitColdStart bounds how far back spending notifications reach on the very
// first sync of a connection.
const debitColdStart = 7 * 24 * time.Hour

// NewIncome selects the credits of a merged payload that have never been
// allocated and postdate both the connection's creation and the previous
// sync. Future-dated credits count as new; nothing at or before created_at
// ever qualifies, which is what keeps historical backfill out of the
// allocator.
func NewIncome(p *domain.Payload, createdAt time.Time, prevLastSync *time.Time, now time.Time) []domain.SourceTransaction {
	if p == nil {
		return nil
	}
	cutoff := createdAt
	if prevLastSync != nil && prevLastSync.After(cutoff) {
		cutoff = *prevLastSync
	}

	allocated := p.AllocatedTransactionIDs
	var out []domain.SourceTransaction
	for _, t := range p.LiftedTransactions() {
		if !t.IsCredit() || !t.Amount.IsPositive() {
			continue
		}
		if allocated.Contains(t.ID) {
			continue
		}
		ts := t.Timestamp.Time
		if !ts.After(createdAt) {
			continue
		}
		if ts.After(cutoff) || ts.After(now) {
			out = append(out, t)
		}
	}
	return out
}

// NewExpenses selects the debits worth notifying about: anything since the
// previous sync (minus a small skew allowance), or the last seven days on a
// first sync.
func NewExpenses(p *domain.Payload, prevLastSync *time.Time, now time.Time) []domain.SourceTransaction {
	if p == nil {
		return nil
	}
	var cutoff time.Time
	if prevLastSync != nil {
		cutoff = prevLastSync.Add(-debitLookback)
	} else {
		cutoff = now.Add(-debitColdStart)
	}

	var out []domain.SourceTransaction
	for _, t := range p.LiftedTransactions() {
		if !t.IsDebit() || !t.Amount.IsPositive() {
			continue
		}
		if t.Timestamp.Time.Before(cutoff) {
			continue
		}
		out = append(out, t)
	}
	return out
}
