package models

import (
	"time"
)

// Withdrawal is written inside the settlement transaction. Actual payout is
// handled by an admin outside the system; the worker only notifies.
type Withdrawal struct {
	ID         uint   `gorm:"primaryKey"`
	TelegramID int64  `gorm:"not null;index"`
	Amount     int64  `gorm:"not null"`
	Status     string `gorm:"default:'requested'"`
	NotifiedAt *time.Time
	CreatedAt  time.Time
}
