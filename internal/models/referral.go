package models

import (
	"time"
)

// ReferralEdge records that NewUserID was attributed to ReferrerID.
// The unique index on NewUserID means a user can be referred at most once;
// a duplicate insert is a no-op, never a second credit.
type ReferralEdge struct {
	ID         uint  `gorm:"primaryKey"`
	NewUserID  int64 `gorm:"uniqueIndex;not null"`
	ReferrerID int64 `gorm:"not null;index"`
	CreatedAt  time.Time
}
