package models

import "time"

// GlobalStatsID is the key of the singleton statistics row.
const GlobalStatsID = "global"

// GlobalStats holds cross-user counters. Averages are derived from sums and counts
// so every update is a commuting increment.
type GlobalStats struct {
	ID               string    `gorm:"primaryKey;size:32" json:"-"`
	UniqueUsers      int64     `gorm:"not null;default:0" json:"unique_users"`
	UsersCompleted   int64     `gorm:"not null;default:0" json:"users_completed"`
	SessionsCount    int64     `gorm:"not null;default:0" json:"sessions_count"`
	TotalSessionTime float64   `gorm:"not null;default:0" json:"total_session_time"`
	TotalUserTime    float64   `gorm:"not null;default:0" json:"total_user_time"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName keeps the collection name used by earlier deployments.
func (GlobalStats) TableName() string {
	return "stats"
}

// AverageSessionTime is the mean of all recorded session durations.
func (s GlobalStats) AverageSessionTime() float64 {
	if s.SessionsCount == 0 {
		return 0
	}
	return s.TotalSessionTime / float64(s.SessionsCount)
}

// AverageUserTime is the mean cumulative session time per registered user.
func (s GlobalStats) AverageUserTime() float64 {
	if s.UniqueUsers == 0 {
		return 0
	}
	return s.TotalUserTime / float64(s.UniqueUsers)
}
