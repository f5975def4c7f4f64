package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleHR       Role = "HR"
	RoleEmployee Role = "EMPLOYEE"
)

type CompensationType string

const (
	CompensationHourly  CompensationType = "HOURLY"
	CompensationMonthly CompensationType = "MONTHLY"
)

type User struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
	Username           string         `gorm:"uniqueIndex;not null;size:100" json:"username"`
	FullName           string         `gorm:"not null;size:200" json:"full_name"`
	PasswordHash       string         `gorm:"not null" json:"-"`
	Role               Role           `gorm:"not null;size:20" json:"role"`
	MustChangePassword bool           `gorm:"default:true" json:"must_change_password"`

	// CompanyID is an opaque tenant identifier; it is carried through to
	// queries and events, never interpreted.
	CompanyID string `gorm:"index;size:64" json:"company_id"`
	Active    bool   `gorm:"default:true;index" json:"active"`

	// Compensation configuration consumed by the earnings calculator.
	CompensationType CompensationType `gorm:"not null;size:20;default:'HOURLY'" json:"compensation_type"`
	HourlyRate       decimal.Decimal  `gorm:"type:numeric(12,2);default:0" json:"hourly_rate"`
	MonthlySalary    decimal.Decimal  `gorm:"type:numeric(12,2);default:0" json:"monthly_salary"`
	OvertimeRate     decimal.Decimal  `gorm:"type:numeric(12,2);default:0" json:"overtime_rate"`
	Currency         string           `gorm:"size:3;default:'USD'" json:"currency"`
	LeaveBalanceDays float64          `gorm:"default:0" json:"leave_balance_days"`

	TimeLogs []TimeLogEntry `gorm:"foreignKey:UserID" json:"time_logs,omitempty"`
}

func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsHR() bool {
	return u.Role == RoleHR
}

func (u *User) IsEmployee() bool {
	return u.Role == RoleEmployee
}

func (u *User) CanViewEarningsFor(userID uint) bool {
	if u.IsAdmin() || u.IsHR() {
		return true
	}
	return u.ID == userID
}

func (u *User) CanViewCompanyEarnings() bool {
	return u.IsAdmin() || u.IsHR()
}

func (u *User) CanExport() bool {
	return u.IsAdmin() || u.IsHR()
}

// CanTrackIn reports whether the user may operate timers inside the given
// company. Admins are not tenant-scoped.
func (u *User) CanTrackIn(companyID string) bool {
	if u.IsAdmin() {
		return true
	}
	return u.CompanyID == companyID
}
