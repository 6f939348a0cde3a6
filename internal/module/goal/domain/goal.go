package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TypeEmergency = "emergency"
	TypeSavings   = "savings"
	TypePurchase  = "purchase"
)

// FarFutureDays is the horizon used to encode "no deadline" as a concrete
// date, keeping deadline ordering total.
const FarFutureDays = 3650

// Goal is a savings target the allocator feeds.
type Goal struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description,omitempty"`
	Type        string          `gorm:"column:goal_type;not null;default:savings" json:"type"`
	Target      decimal.Decimal `gorm:"column:target_amount;type:numeric(14,2);not null" json:"target"`
	Saved       decimal.Decimal `gorm:"column:current_amount;type:numeric(14,2);not null" json:"saved"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
	IsCompleted bool            `gorm:"not null;default:false" json:"is_completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Goal) TableName() string { return "goals" }

func (g *Goal) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.Must(uuid.NewV7())
	}
	return nil
}

func (g *Goal) IsEmergency() bool { return g.Type == TypeEmergency }

// Remaining is the gap to target, floored at zero.
func (g *Goal) Remaining() decimal.Decimal {
	r := g.Target.Sub(g.Saved)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// ProgressPercent is saved/target in percent; zero-target goals report 0.
func (g *Goal) ProgressPercent() float64 {
	if !g.Target.IsPositive() {
		return 0
	}
	f, _ := g.Saved.Div(g.Target).Mul(decimal.NewFromInt(100)).Float64()
	return f
}

// DaysUntilDeadline returns the day count to the deadline, or ok=false when
// the goal has none (including the far-future sentinel).
func (g *Goal) DaysUntilDeadline(now time.Time) (int, bool) {
	if g.Deadline == nil {
		return 0, false
	}
	days := int(g.Deadline.Sub(now).Hours() / 24)
	if days >= FarFutureDays-30 {
		// sentinel deadline, treat as open-ended
		return 0, false
	}
	return days, true
}

// Urgency buckets deadline pressure. Goals under 50% progress within 60 days
// get promoted to urgent regardless of bucket.
type Urgency int

const (
	UrgencyOverdue Urgency = iota
	UrgencyUrgent
	UrgencyModerate
	UrgencyNormal
	UrgencyLow
)

func (u Urgency) String() string {
	switch u {
	case UrgencyOverdue:
		return "overdue"
	case UrgencyUrgent:
		return "urgent"
	case UrgencyModerate:
		return "moderate"
	case UrgencyNormal:
		return "normal"
	default:
		return "low"
	}
}

func (g *Goal) UrgencyAt(now time.Time) Urgency {
	days, ok := g.DaysUntilDeadline(now)
	if !ok {
		return UrgencyLow
	}
	var u Urgency
	switch {
	case days < 0:
		u = UrgencyOverdue
	case days <= 30:
		u = UrgencyUrgent
	case days <= 90:
		u = UrgencyModerate
	case days <= 180:
		u = UrgencyNormal
	default:
		u = UrgencyLow
	}
	if u > UrgencyUrgent && g.ProgressPercent() < 50 && days <= 60 {
		u = UrgencyUrgent
	}
	return u
}
