package models

import (
	"time"
)

// TimeLogEntry is one open-or-closed tracking session. Entries are never
// deleted; closed rows form the append-only audit ledger the earnings
// calculator reads. For any user at most one row has a null EndTime.
type TimeLogEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	SubTaskID uint      `gorm:"not null;index" json:"sub_task_id"`
	SubTask   SubTask   `gorm:"foreignKey:SubTaskID" json:"sub_task,omitempty"`

	StartTime       time.Time  `gorm:"not null;index" json:"start_time"`
	EndTime         *time.Time `gorm:"index" json:"end_time,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
}

func (e *TimeLogEntry) IsOpen() bool {
	return e.EndTime == nil
}

// Close stamps the end time and returns the duration in whole seconds.
// Closing an already-closed entry is a no-op returning the stored duration.
func (e *TimeLogEntry) Close(now time.Time) int64 {
	if e.EndTime != nil {
		if e.DurationSeconds != nil {
			return *e.DurationSeconds
		}
		return 0
	}
	duration := int64(now.Sub(e.StartTime).Seconds())
	if duration < 0 {
		duration = 0
	}
	e.EndTime = &now
	e.DurationSeconds = &duration
	return duration
}

func (e *TimeLogEntry) ElapsedSeconds(now time.Time) int64 {
	if e.EndTime != nil {
		if e.DurationSeconds != nil {
			return *e.DurationSeconds
		}
		return 0
	}
	elapsed := int64(now.Sub(e.StartTime).Seconds())
	if elapsed < 0 {
		return 0
	}
	return elapsed
}
