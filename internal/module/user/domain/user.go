package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User is the account owner. Registration and session management live in a
// separate service; this module only needs identity, contact address and the
// spending budget.
type User struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Email         string           `gorm:"uniqueIndex;not null" json:"email"`
	Name          string           `gorm:"not null" json:"name"`
	PasswordHash  string           `gorm:"not null" json:"-"`
	MonthlyBudget *decimal.Decimal `gorm:"type:numeric(12,2)" json:"monthly_budget,omitempty"`
	Language      string           `gorm:"default:en" json:"language"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.Must(uuid.NewV7())
	}
	return nil
}

// SetPassword stores a bcrypt hash of the plaintext.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a plaintext against the stored hash.
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}
