package models

import "time"

// UserScan records that a user has scanned a marker at least once.
// The composite primary key makes the per-user scanned list a set.
type UserScan struct {
	UserID    string    `gorm:"primaryKey;size:128" json:"user_id"`
	MarkerID  string    `gorm:"primaryKey;size:64" json:"marker_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
