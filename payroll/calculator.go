// Package payroll projects the time-log ledger into pay-period earnings
// snapshots. Snapshots are recomputed on demand and never persisted; they
// reflect ledger state as of read time, not a committed payroll run.
package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"timeclock/models"
)

const secondsPerHour = 3600

// Snapshot is one user's earnings over one [PeriodStart, PeriodEnd) interval.
type Snapshot struct {
	UserID        uint            `json:"user_id"`
	DisplayName   string          `json:"display_name,omitempty"`
	Currency      string          `json:"currency"`
	PeriodStart   time.Time       `json:"period_start"`
	PeriodEnd     time.Time       `json:"period_end"`
	WorkedSeconds int64           `json:"worked_seconds"`
	WorkedHours   decimal.Decimal `json:"worked_hours"`
	WorkedAmount  decimal.Decimal `json:"worked_amount"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
	OvertimePay   decimal.Decimal `json:"overtime_pay"`
	LeaveDays     decimal.Decimal `json:"leave_days"`
	LeavePay      decimal.Decimal `json:"leave_pay"`
	Penalty       decimal.Decimal `json:"penalty"`
	Gross         decimal.Decimal `json:"gross"`
	Net           decimal.Decimal `json:"net"`
}

// Adjustments are the overtime, leave and penalty figures owned by the
// compensation-configuration collaborator. The calculator only combines them.
type Adjustments struct {
	OvertimeHours decimal.Decimal
	OvertimePay   decimal.Decimal
	LeaveDays     decimal.Decimal
	LeavePay      decimal.Decimal
	Penalty       decimal.Decimal
}

type AdjustmentsProvider interface {
	Adjustments(ctx context.Context, user *models.User, periodStart, periodEnd time.Time) (Adjustments, error)
}

// NoAdjustments satisfies AdjustmentsProvider with all-zero figures, for
// deployments where the compensation collaborator is not wired up.
type NoAdjustments struct{}

func (NoAdjustments) Adjustments(context.Context, *models.User, time.Time, time.Time) (Adjustments, error) {
	return Adjustments{}, nil
}

// CalculationError marks one employee's snapshot as uncomputable. Batch mode
// swallows it per employee; the single-user endpoint surfaces it.
type CalculationError struct {
	UserID uint
	Err    error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("earnings calculation failed for user %d: %v", e.UserID, e.Err)
}

func (e *CalculationError) Unwrap() error {
	return e.Err
}

type Calculator struct {
	db      *gorm.DB
	adjust  AdjustmentsProvider
	timeout time.Duration

	// batchSize bounds concurrent per-employee queries in company mode so a
	// large company cannot drain the connection pool. Resource control, not
	// correctness.
	batchSize int

	log *logrus.Logger
}

func NewCalculator(db *gorm.DB, adjust AdjustmentsProvider, batchSize int, timeout time.Duration) *Calculator {
	if adjust == nil {
		adjust = NoAdjustments{}
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &Calculator{
		db:        db,
		adjust:    adjust,
		batchSize: batchSize,
		timeout:   timeout,
		log:       logrus.StandardLogger(),
	}
}

// Calculate builds the snapshot for one user over [periodStart, periodEnd).
func (c *Calculator) Calculate(ctx context.Context, userID uint, periodStart, periodEnd time.Time) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var user models.User
	err := c.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &CalculationError{UserID: userID, Err: errors.New("user not found")}
	}
	if err != nil {
		return nil, &CalculationError{UserID: userID, Err: err}
	}

	return c.calculateFor(ctx, &user, periodStart, periodEnd)
}

func (c *Calculator) calculateFor(ctx context.Context, user *models.User, periodStart, periodEnd time.Time) (*Snapshot, error) {
	snapshot := &Snapshot{
		UserID:      user.ID,
		DisplayName: user.DisplayName(),
		Currency:    user.Currency,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}

	workedSeconds, err := c.closedSeconds(ctx, user.ID, periodStart, periodEnd)
	if err != nil {
		return nil, &CalculationError{UserID: user.ID, Err: err}
	}
	snapshot.WorkedSeconds = workedSeconds
	snapshot.WorkedHours = decimal.NewFromInt(workedSeconds).
		Div(decimal.NewFromInt(secondsPerHour)).Round(4)

	switch user.CompensationType {
	case models.CompensationMonthly:
		snapshot.WorkedAmount = prorateMonthly(user.MonthlySalary, periodStart, periodEnd, time.Now())
	default:
		snapshot.WorkedAmount = user.HourlyRate.
			Mul(decimal.NewFromInt(workedSeconds)).
			Div(decimal.NewFromInt(secondsPerHour)).Round(2)
	}

	adjustments, err := c.adjust.Adjustments(ctx, user, periodStart, periodEnd)
	if err != nil {
		return nil, &CalculationError{UserID: user.ID, Err: err}
	}
	snapshot.OvertimeHours = adjustments.OvertimeHours
	snapshot.OvertimePay = adjustments.OvertimePay
	snapshot.LeaveDays = adjustments.LeaveDays
	snapshot.LeavePay = adjustments.LeavePay
	snapshot.Penalty = adjustments.Penalty

	snapshot.Gross = snapshot.WorkedAmount.
		Add(adjustments.OvertimePay).
		Add(adjustments.LeavePay)
	snapshot.Net = snapshot.Gross.Sub(adjustments.Penalty)
	return snapshot, nil
}

// CompanyEarnings computes snapshots for every active employee of a company.
// A per-employee failure never aborts the batch: the employee gets a
// zero-valued snapshot with identity and currency preserved.
func (c *Calculator) CompanyEarnings(ctx context.Context, companyID string, periodStart, periodEnd time.Time) ([]Snapshot, error) {
	listCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var employees []models.User
	if err := c.db.WithContext(listCtx).
		Where("company_id = ? AND active = ?", companyID, true).
		Order("id asc").
		Find(&employees).Error; err != nil {
		return nil, err
	}

	snapshots := make([]Snapshot, len(employees))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.batchSize)

	for i := range employees {
		i := i
		group.Go(func() error {
			employee := employees[i]
			calcCtx, cancel := context.WithTimeout(groupCtx, c.timeout)
			defer cancel()

			snapshot, err := c.calculateFor(calcCtx, &employee, periodStart, periodEnd)
			if err != nil {
				c.log.WithError(err).WithField("user_id", employee.ID).
					Warn("earnings calculation failed, substituting zero snapshot")
				snapshots[i] = zeroSnapshot(&employee, periodStart, periodEnd)
				return nil
			}
			snapshots[i] = *snapshot
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func zeroSnapshot(user *models.User, periodStart, periodEnd time.Time) Snapshot {
	return Snapshot{
		UserID:      user.ID,
		DisplayName: user.DisplayName(),
		Currency:    user.Currency,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}
}

// closedSeconds sums closed ledger durations for the user inside the period.
// Open logs contribute nothing until they close.
func (c *Calculator) closedSeconds(ctx context.Context, userID uint, periodStart, periodEnd time.Time) (int64, error) {
	var total int64
	err := c.db.WithContext(ctx).
		Model(&models.TimeLogEntry{}).
		Select("COALESCE(SUM(duration_seconds), 0)").
		Where("user_id = ? AND end_time IS NOT NULL", userID).
		Where("start_time >= ? AND start_time < ?", periodStart, periodEnd).
		Scan(&total).Error
	return total, err
}

// prorateMonthly scales a monthly salary by scheduled working days elapsed so
// far versus total working days in the period.
func prorateMonthly(salary decimal.Decimal, periodStart, periodEnd, now time.Time) decimal.Decimal {
	total := CountWorkingDays(periodStart, periodEnd)
	if total == 0 {
		return decimal.Zero
	}
	elapsedEnd := now
	if elapsedEnd.After(periodEnd) {
		elapsedEnd = periodEnd
	}
	if elapsedEnd.Before(periodStart) {
		return decimal.Zero
	}
	elapsed := CountWorkingDays(periodStart, elapsedEnd)
	return salary.
		Mul(decimal.NewFromInt(int64(elapsed))).
		Div(decimal.NewFromInt(int64(total))).Round(2)
}

// CountWorkingDays walks [start, end) counting Monday through Friday.
func CountWorkingDays(start, end time.Time) int {
	count := 0
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for day.Before(end) {
		weekday := day.Weekday()
		if weekday != time.Saturday && weekday != time.Sunday {
			count++
		}
		day = day.AddDate(0, 0, 1)
	}
	return count
}

// CurrentPeriod is the fallback pay period when no external payroll-period
// collaborator is attached: the calendar month containing now.
func CurrentPeriod(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}
