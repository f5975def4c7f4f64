package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type BillingMode string

const (
	BillingHourly     BillingMode = "HOURLY"
	BillingFixedPrice BillingMode = "FIXED_PRICE"
	BillingScheduled  BillingMode = "SCHEDULED"
)

type SubTaskStatus string

const (
	StatusPending    SubTaskStatus = "PENDING"
	StatusInProgress SubTaskStatus = "IN_PROGRESS"
	StatusCompleted  SubTaskStatus = "COMPLETED"
)

// SubTask is one billable unit of work under a Task. TotalSeconds only ever
// grows, and only by the duration of a closed time log belonging to it.
type SubTask struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TaskID    uint      `gorm:"not null;index" json:"task_id"`
	Task      Task      `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	Name      string    `gorm:"not null;size:200" json:"name"`

	BillingMode    BillingMode      `gorm:"not null;size:20;default:'HOURLY'" json:"billing_mode"`
	FixedPrice     *decimal.Decimal `gorm:"type:numeric(12,2)" json:"fixed_price,omitempty"`
	HourlyRate     *decimal.Decimal `gorm:"type:numeric(12,2)" json:"hourly_rate,omitempty"`
	EstimatedHours *float64         `json:"estimated_hours,omitempty"`

	// Recurring weekly availability window, only honored for SCHEDULED
	// billing. Times are "HH:MM" clock strings, days are 0=Sunday..6=Saturday.
	StartTime    string                   `gorm:"size:5" json:"start_time,omitempty"`
	EndTime      string                   `gorm:"size:5" json:"end_time,omitempty"`
	ScheduleDays datatypes.JSONSlice[int] `json:"schedule_days,omitempty"`

	Status       SubTaskStatus `gorm:"not null;size:20;default:'PENDING';index" json:"status"`
	TotalSeconds int64         `gorm:"not null;default:0" json:"total_seconds"`

	CompletionComment string                      `gorm:"size:500" json:"completion_comment,omitempty"`
	Attachments       datatypes.JSONSlice[string] `json:"attachments,omitempty"`
}

func (s *SubTask) IsCompleted() bool {
	return s.Status == StatusCompleted
}

// BudgetSeconds returns the estimated-hours budget in seconds, or 0 when no
// estimate is set.
func (s *SubTask) BudgetSeconds() int64 {
	if s.EstimatedHours == nil {
		return 0
	}
	return int64(*s.EstimatedHours * 3600)
}

func (s *SubTask) RemainingBudgetSeconds() int64 {
	if s.EstimatedHours == nil {
		return 0
	}
	remaining := s.BudgetSeconds() - s.TotalSeconds
	if remaining < 0 {
		return 0
	}
	return remaining
}
