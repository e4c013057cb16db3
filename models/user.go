package models

import (
	"time"

	"gorm.io/gorm"
)

// User is one visiting device. The scanned-marker set lives in user_scans.
type User struct {
	ID        string     `gorm:"primaryKey;size:128" json:"user_id"`
	Completed bool       `gorm:"not null;default:false" json:"completed"`
	TotalTime float64    `gorm:"not null;default:0" json:"total_time"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Scans     []UserScan `gorm:"foreignKey:UserID" json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}
