package models

import "time"

// Marker is a physical AR reference image with its cumulative scan counter.
type Marker struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Scans     int64     `gorm:"not null;default:0" json:"scans"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
