package models

import (
	"time"
)

// Task is the parent grouping for billable sub-tasks. Task administration
// lives outside this service; rows exist so sub-tasks have an owner and a
// tenant.
type Task struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CompanyID string    `gorm:"index;size:64" json:"company_id"`
	Name      string    `gorm:"not null;size:200" json:"name"`
	SubTasks  []SubTask `gorm:"foreignKey:TaskID" json:"sub_tasks,omitempty"`
}
