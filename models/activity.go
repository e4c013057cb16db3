package models

import "time"

// DailyActivity counts successful write requests per day and route.
type DailyActivity struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Day       string    `gorm:"index:idx_activity_day_route,unique;size:10;not null" json:"day"`
	Route     string    `gorm:"index:idx_activity_day_route,unique;size:64;not null" json:"route"`
	Hits      int64     `gorm:"not null;default:0" json:"hits"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
