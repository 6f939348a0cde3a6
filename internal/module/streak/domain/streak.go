package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TypeSavings     = "savings"
	TypeTransaction = "transaction"
)

// UserStreak tracks consecutive-day activity of one kind for one user.
// LastActiveDate is an IST calendar day stored at midnight.
type UserStreak struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_streak_user_type" json:"user_id"`
	Type           string     `gorm:"column:streak_type;not null;uniqueIndex:idx_streak_user_type" json:"type"`
	CurrentStreak  int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak  int        `gorm:"not null;default:0" json:"longest_streak"`
	TotalDays      int        `gorm:"not null;default:0" json:"total_days"`
	LastActiveDate *time.Time `json:"last_active_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserStreak) TableName() string { return "user_streaks" }

func (s *UserStreak) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.Must(uuid.NewV7())
	}
	return nil
}
