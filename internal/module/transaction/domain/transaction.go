package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// ManualTransaction is a ledger row the user entered directly, as opposed to
// rows observed through a payment connection.
type ManualTransaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Type        string          `gorm:"not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	OccurredAt  time.Time       `gorm:"not null;index" json:"occurred_at"`
	// AllocatedAt is set when the allocation engine has applied this income,
	// so a redelivered allocation task cannot count it twice.
	AllocatedAt *time.Time `json:"allocated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ManualTransaction) TableName() string { return "manual_transactions" }

func (t *ManualTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.Must(uuid.NewV7())
	}
	return nil
}

func (t *ManualTransaction) IsIncome() bool  { return t.Type == TypeIncome }
func (t *ManualTransaction) IsExpense() bool { return t.Type == TypeExpense }
