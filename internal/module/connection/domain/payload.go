package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fincoach/internal/shared"
)

const (
	TxnTypeCredit = "credit"
	TxnTypeDebit  = "debit"
)

// StringSet is a JSON-array-backed set. The allocation ledger
// (allocated_transaction_ids) uses it so membership checks are O(1) while the
// stored form stays a plain array.
type StringSet map[string]struct{}

func NewStringSet(ids ...string) StringSet {
	s := make(StringSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s StringSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

func (s StringSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s StringSet) Values() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewStringSet(ids...)
	return nil
}

// FlexTime parses the timestamp shapes that occur in provider snapshots:
// RFC3339, zone-less ISO (read as IST) and bare dates. A missing or
// unparseable value decodes to the zero time; the snapshot loader then dates
// it at the file's modification time.
type FlexTime struct {
	time.Time
}

var flexLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range flexLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			if parsed.Location() == time.UTC && !strings.ContainsAny(raw, "Zz+") {
				// zone-less source timestamps are IST by convention
				parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(),
					parsed.Hour(), parsed.Minute(), parsed.Second(), parsed.Nanosecond(), shared.IST)
			}
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// SourceTransaction is one provider-side ledger row.
type SourceTransaction struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Timestamp   FlexTime        `json:"timestamp"`
	Status      string          `json:"status,omitempty"`
}

func (t SourceTransaction) IsCredit() bool { return t.Type == TxnTypeCredit }
func (t SourceTransaction) IsDebit() bool  { return t.Type == TxnTypeDebit }

// SourceEntry is a day-level statement line some providers ship instead of
// (or alongside) full transactions.
type SourceEntry struct {
	ID          string          `json:"id,omitempty"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
}

// MonthTotals aggregates a single "YYYY-MM" bucket of the provider summary.
type MonthTotals struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Savings  decimal.Decimal `json:"savings"`
}

// Payload is the typed provider snapshot persisted on a connection. It is
// stored as a single JSON column and only ever rewritten wholesale through
// Merge, which is what keeps the allocation ledger loss-proof.
type Payload struct {
	AccountID               string                 `json:"account_id,omitempty"`
	Status                  string                 `json:"status,omitempty"`
	Balance                 *decimal.Decimal       `json:"balance,omitempty"`
	Transactions            []SourceTransaction    `json:"transactions"`
	Entries                 []SourceEntry          `json:"entries,omitempty"`
	MonthlySummary          map[string]MonthTotals `json:"monthly_summary,omitempty"`
	AllocatedTransactionIDs StringSet              `json:"allocated_transaction_ids"`
}

// Merge folds a fresh snapshot into the persisted payload.
//
// Transactions, entries and the monthly summary always come from the fresh
// snapshot. Account identity fields are only adopted when the persisted
// payload lacks them. The allocated-transaction ledger survives unconditionally:
// it is the only state the provider can never give back.
func Merge(persisted, fresh *Payload) *Payload {
	if fresh == nil {
		return persisted
	}
	if persisted == nil {
		out := *fresh
		if out.AllocatedTransactionIDs == nil {
			out.AllocatedTransactionIDs = NewStringSet()
		}
		return &out
	}

	merged := &Payload{
		AccountID:      persisted.AccountID,
		Status:         persisted.Status,
		Balance:        persisted.Balance,
		Transactions:   fresh.Transactions,
		Entries:        fresh.Entries,
		MonthlySummary: fresh.MonthlySummary,
	}
	if merged.AccountID == "" {
		merged.AccountID = fresh.AccountID
	}
	if merged.Status == "" {
		merged.Status = fresh.Status
	}
	if merged.Balance == nil {
		merged.Balance = fresh.Balance
	}

	merged.AllocatedTransactionIDs = NewStringSet(persisted.AllocatedTransactionIDs.Values()...)
	merged.AllocatedTransactionIDs.Add(fresh.AllocatedTransactionIDs.Values()...)
	return merged
}

// LiftedTransactions returns Transactions plus Entries promoted to
// transaction shape, with entry dates read as IST midnight. Entries without a
// parseable date are dropped.
func (p *Payload) LiftedTransactions() []SourceTransaction {
	if p == nil {
		return nil
	}
	out := make([]SourceTransaction, 0, len(p.Transactions)+len(p.Entries))
	out = append(out, p.Transactions...)
	for _, e := range p.Entries {
		day, err := time.ParseInLocation("2006-01-02", e.Date, shared.IST)
		if err != nil {
			continue
		}
		out = append(out, SourceTransaction{
			ID:          entryID(e),
			Type:        e.Type,
			Amount:      e.Amount,
			Description: e.Description,
			Timestamp:   FlexTime{Time: day},
		})
	}
	return out
}

// entryID is the provider's id when the entry carries one. The synthetic
// fallback is built only from the entry's own fields, so it keeps pointing at
// the same entry when the provider inserts or reorders siblings.
func entryID(e SourceEntry) string {
	if e.ID != "" {
		return e.ID
	}
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(e.Description), " ", "_"))
	if len(slug) > 24 {
		slug = slug[:24]
	}
	return fmt.Sprintf("entry_%s_%s_%s", e.Date, slug, e.Amount.String())
}
