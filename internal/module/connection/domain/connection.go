package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// PaymentConnection links a user to one mock payment source. Disconnecting is
// a soft state change so the payload (and with it the allocation ledger)
// survives a later reconnect.
type PaymentConnection struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index:idx_conn_user_name" json:"user_id"`
	Name     string    `gorm:"not null;index:idx_conn_user_name" json:"name"`
	Type     string    `gorm:"not null" json:"type"`
	Icon     string    `json:"icon,omitempty"`
	Status   string    `gorm:"not null;default:connected" json:"status"`
	Payload  *Payload  `gorm:"type:jsonb;serializer:json" json:"payload,omitempty"`
	// Meta carries source-specific presentation data (labels, colors) that
	// never participates in sync decisions.
	Meta     datatypes.JSONMap `gorm:"type:jsonb" json:"meta,omitempty"`
	LastSync *time.Time        `json:"last_sync,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PaymentConnection) TableName() string { return "payment_connections" }

func (c *PaymentConnection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.Must(uuid.NewV7())
	}
	return nil
}

func (c *PaymentConnection) IsConnected() bool { return c.Status == StatusConnected }

// AllocatedIDs returns the ledger set, never nil.
func (c *PaymentConnection) AllocatedIDs() StringSet {
	if c.Payload == nil || c.Payload.AllocatedTransactionIDs == nil {
		return NewStringSet()
	}
	return c.Payload.AllocatedTransactionIDs
}

// MarkAllocated unions ids into the payload ledger, creating the payload if
// the connection has never synced.
func (c *PaymentConnection) MarkAllocated(ids ...string) {
	if len(ids) == 0 {
		return
	}
	if c.Payload == nil {
		c.Payload = &Payload{AllocatedTransactionIDs: NewStringSet()}
	}
	if c.Payload.AllocatedTransactionIDs == nil {
		c.Payload.AllocatedTransactionIDs = NewStringSet()
	}
	c.Payload.AllocatedTransactionIDs.Add(ids...)
}
