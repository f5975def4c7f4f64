package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"timeclock/database"
	"timeclock/events"
	"timeclock/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=10000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serializes writers; concurrent callers contend on the
	// pool instead of on sqlite table locks.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// newContendedTestDB opens a file-backed database with a multi-connection
// pool, so concurrent transactions genuinely interleave instead of queueing
// on a single connection.
func newContendedTestDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000", filepath.Join(t.TempDir(), "timeclock.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type captureEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureEmitter) Emit(_ context.Context, event events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureEmitter) ofType(eventType string) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, event := range c.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func seedUser(t *testing.T, db *gorm.DB, company string) *models.User {
	t.Helper()
	user := &models.User{
		Username:  uuid.NewString()[:8],
		FullName:  "Test Worker",
		Role:      models.RoleEmployee,
		CompanyID: company,
		Active:    true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedSubTask(t *testing.T, db *gorm.DB, company string, mutate ...func(*models.SubTask)) *models.SubTask {
	t.Helper()
	task := &models.Task{CompanyID: company, Name: "website rebuild"}
	require.NoError(t, db.Create(task).Error)

	sub := &models.SubTask{
		TaskID:      task.ID,
		Name:        "landing page",
		BillingMode: models.BillingHourly,
		Status:      models.StatusPending,
	}
	for _, fn := range mutate {
		fn(sub)
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func newTestManager(t *testing.T) (*Manager, *gorm.DB, *captureEmitter) {
	t.Helper()
	db := newTestDB(t)
	emitter := &captureEmitter{}
	return NewManager(db, emitter, 5*time.Second), db, emitter
}

func TestStartOpensLogAndFlipsStatus(t *testing.T) {
	manager, db, emitter := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme")

	result, err := manager.Start(context.Background(), sub.ID, user)
	require.NoError(t, err)
	require.NotNil(t, result.Log)
	assert.Nil(t, result.Log.EndTime)
	assert.Nil(t, result.StoppedSubTask)

	var stored models.SubTask
	require.NoError(t, db.First(&stored, sub.ID).Error)
	assert.Equal(t, models.StatusInProgress, stored.Status)

	started := emitter.ofType(events.TypeSubTaskStarted)
	require.Len(t, started, 1)
	assert.Equal(t, sub.ID, started[0].SubTaskID)
	assert.Equal(t, user.ID, started[0].UserID)
}

func TestStartAutoPausesPriorSession(t *testing.T) {
	// Start X, then 300 seconds later start Y from another tab.
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	subX := seedSubTask(t, db, "acme")
	subY := seedSubTask(t, db, "acme")

	t0 := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return t0 }
	_, err := manager.Start(context.Background(), subX.ID, user)
	require.NoError(t, err)

	manager.now = func() time.Time { return t0.Add(300 * time.Second) }
	result, err := manager.Start(context.Background(), subY.ID, user)
	require.NoError(t, err)

	require.NotNil(t, result.StoppedSubTask)
	assert.Equal(t, subX.ID, result.StoppedSubTask.ID)
	assert.Equal(t, models.StatusPending, result.StoppedSubTask.Status)
	assert.Equal(t, int64(300), result.StoppedSubTask.TotalSeconds)

	var storedX models.SubTask
	require.NoError(t, db.First(&storedX, subX.ID).Error)
	assert.Equal(t, int64(300), storedX.TotalSeconds)
	assert.Equal(t, models.StatusPending, storedX.Status)

	var closed models.TimeLogEntry
	require.NoError(t, db.Where("sub_task_id = ?", subX.ID).First(&closed).Error)
	require.NotNil(t, closed.DurationSeconds)
	assert.Equal(t, int64(300), *closed.DurationSeconds)

	var storedY models.SubTask
	require.NoError(t, db.First(&storedY, subY.ID).Error)
	assert.Equal(t, models.StatusInProgress, storedY.Status)

	var openCount int64
	require.NoError(t, db.Model(&models.TimeLogEntry{}).
		Where("user_id = ? AND end_time IS NULL", user.ID).Count(&openCount).Error)
	assert.Equal(t, int64(1), openCount)
}

func TestConcurrentStartsLeaveOneOpenLog(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")

	const workers = 8
	subs := make([]*models.SubTask, workers)
	for i := range subs {
		subs[i] = seedSubTask(t, db, "acme")
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := manager.Start(context.Background(), subs[i].ID, user)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	var openCount int64
	require.NoError(t, db.Model(&models.TimeLogEntry{}).
		Where("user_id = ? AND end_time IS NULL", user.ID).Count(&openCount).Error)
	assert.Equal(t, int64(1), openCount)

	var totalLogs int64
	require.NoError(t, db.Model(&models.TimeLogEntry{}).
		Where("user_id = ?", user.ID).Count(&totalLogs).Error)
	assert.Equal(t, int64(workers), totalLogs)
}

func TestAccountingNeverLosesSeconds(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme")

	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return now }

	durations := []int64{60, 300, 42, 1}
	var expected int64
	for _, d := range durations {
		_, err := manager.Start(context.Background(), sub.ID, user)
		require.NoError(t, err)
		now = now.Add(time.Duration(d) * time.Second)
		got, err := manager.Stop(context.Background(), sub.ID, user)
		require.NoError(t, err)
		assert.Equal(t, d, got)
		expected += d
		now = now.Add(time.Minute) // idle gap between sessions
	}

	// One more session closed by auto-pause instead of an explicit stop.
	other := seedSubTask(t, db, "acme")
	_, err := manager.Start(context.Background(), sub.ID, user)
	require.NoError(t, err)
	now = now.Add(77 * time.Second)
	_, err = manager.Start(context.Background(), other.ID, user)
	require.NoError(t, err)
	expected += 77

	var stored models.SubTask
	require.NoError(t, db.First(&stored, sub.ID).Error)
	assert.Equal(t, expected, stored.TotalSeconds)

	var sum int64
	require.NoError(t, db.Model(&models.TimeLogEntry{}).
		Select("COALESCE(SUM(duration_seconds), 0)").
		Where("sub_task_id = ? AND end_time IS NOT NULL", sub.ID).
		Scan(&sum).Error)
	assert.Equal(t, expected, sum)
}

func TestStartScheduleLocked(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme", func(s *models.SubTask) {
		s.BillingMode = models.BillingScheduled
		s.StartTime = "09:00"
		s.EndTime = "17:00"
		s.ScheduleDays = datatypes.JSONSlice[int]{1}
	})

	// Sunday evening: Monday-only window is shut.
	manager.now = func() time.Time {
		return time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	}

	_, err := manager.Start(context.Background(), sub.ID, user)
	var locked *ScheduleLockedError
	require.ErrorAs(t, err, &locked)
	require.NotNil(t, locked.StartsInSeconds)
	assert.NotEmpty(t, locked.Countdown)

	// Nothing was opened.
	var openCount int64
	require.NoError(t, db.Model(&models.TimeLogEntry{}).
		Where("user_id = ?", user.ID).Count(&openCount).Error)
	assert.Zero(t, openCount)
}

func TestStartAlreadyCompleted(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme", func(s *models.SubTask) {
		s.Status = models.StatusCompleted
	})

	_, err := manager.Start(context.Background(), sub.ID, user)
	var completed *AlreadyCompletedError
	assert.ErrorAs(t, err, &completed)
}

func TestStartNotFound(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")

	_, err := manager.Start(context.Background(), 9999, user)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStartOtherCompanyRejected(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "globex")

	_, err := manager.Start(context.Background(), sub.ID, user)
	var unauthorized *UnauthorizedError
	assert.ErrorAs(t, err, &unauthorized)
}

func TestStopWithoutSession(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme")

	_, err := manager.Stop(context.Background(), sub.ID, user)
	var noSession *NoActiveSessionError
	assert.ErrorAs(t, err, &noSession)
}

func TestStopOnlyClosesMatchingSubTask(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	running := seedSubTask(t, db, "acme")
	other := seedSubTask(t, db, "acme")

	_, err := manager.Start(context.Background(), running.ID, user)
	require.NoError(t, err)

	_, err = manager.Stop(context.Background(), other.ID, user)
	var noSession *NoActiveSessionError
	assert.ErrorAs(t, err, &noSession)

	active, err := manager.GetActive(context.Background(), user)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, running.ID, active.SubTask.ID)
}

func TestCompleteClosesOpenSession(t *testing.T) {
	manager, db, emitter := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme")

	t0 := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return t0 }
	_, err := manager.Start(context.Background(), sub.ID, user)
	require.NoError(t, err)

	manager.now = func() time.Time { return t0.Add(120 * time.Second) }
	completed, err := manager.Complete(context.Background(), sub.ID, user, ProofOfWork{
		Comment:     "done, screenshots attached",
		Attachments: []string{"s3://proof/1.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	assert.Equal(t, int64(120), completed.TotalSeconds)
	assert.Equal(t, "done, screenshots attached", completed.CompletionComment)

	var openCount int64
	require.NoError(t, db.Model(&models.TimeLogEntry{}).
		Where("user_id = ? AND end_time IS NULL", user.ID).Count(&openCount).Error)
	assert.Zero(t, openCount)

	require.Len(t, emitter.ofType(events.TypeSubTaskCompleted), 1)
}

func TestCompleteIsIdempotentWithoutSession(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme")

	completed, err := manager.Complete(context.Background(), sub.ID, user, ProofOfWork{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)

	// Completing again still succeeds and stays terminal.
	completed, err = manager.Complete(context.Background(), sub.ID, user, ProofOfWork{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)

	_, err = manager.Start(context.Background(), sub.ID, user)
	var already *AlreadyCompletedError
	assert.ErrorAs(t, err, &already)
}

func TestAutoStopEmitsScheduledEndReason(t *testing.T) {
	manager, db, emitter := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme")

	t0 := time.Date(2024, 3, 11, 16, 59, 0, 0, time.UTC)
	manager.now = func() time.Time { return t0 }
	_, err := manager.Start(context.Background(), sub.ID, user)
	require.NoError(t, err)

	manager.now = func() time.Time { return t0.Add(60 * time.Second) }
	duration, err := manager.AutoStop(context.Background(), sub.ID, user, ProofOfWork{
		Comment:     "deploy finished before the window closed",
		Attachments: []string{"s3://proof/window-close.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(60), duration)

	auto := emitter.ofType(events.TypeSubTaskAutoStopped)
	require.Len(t, auto, 1)
	assert.Equal(t, events.ReasonScheduledEnd, auto[0].Reason)
	assert.Equal(t, int64(60), auto[0].DurationSeconds)

	var stored models.SubTask
	require.NoError(t, db.First(&stored, sub.ID).Error)
	assert.Contains(t, []string(stored.Attachments), "s3://proof/window-close.png")
	assert.Equal(t, "deploy finished before the window closed", stored.CompletionComment)
}

func TestAutoStopWithoutSession(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme")

	_, err := manager.AutoStop(context.Background(), sub.ID, user, ProofOfWork{})
	var noSession *NoActiveSessionError
	assert.ErrorAs(t, err, &noSession)
}

func TestGetActive(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme")

	active, err := manager.GetActive(context.Background(), user)
	require.NoError(t, err)
	assert.Nil(t, active)

	t0 := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return t0 }
	_, err = manager.Start(context.Background(), sub.ID, user)
	require.NoError(t, err)

	manager.now = func() time.Time { return t0.Add(45 * time.Second) }
	active, err = manager.GetActive(context.Background(), user)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, sub.ID, active.SubTask.ID)
	assert.Equal(t, int64(45), active.ElapsedSeconds)

	// The read path must not mutate anything.
	var stored models.SubTask
	require.NoError(t, db.First(&stored, sub.ID).Error)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.Zero(t, stored.TotalSeconds)
}

func TestListByTask(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme")

	subs, err := manager.ListByTask(context.Background(), sub.TaskID, user)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)

	_, err = manager.ListByTask(context.Background(), 9999, user)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestBudgetFields(t *testing.T) {
	estimate := 2.0
	sub := &models.SubTask{EstimatedHours: &estimate, TotalSeconds: 3600}
	assert.Equal(t, int64(7200), sub.BudgetSeconds())
	assert.Equal(t, int64(3600), sub.RemainingBudgetSeconds())

	sub.TotalSeconds = 10000 // over budget clamps to zero
	assert.Equal(t, int64(0), sub.RemainingBudgetSeconds())

	unestimated := &models.SubTask{TotalSeconds: 100}
	assert.Zero(t, unestimated.BudgetSeconds())
}

func TestInterleavedStartsKeepSingleOpenLog(t *testing.T) {
	// Same user starting from several devices at once, with transactions
	// interleaving across real connections. A losing start may surface a
	// retryable failure; a second open log may not exist afterwards.
	db := newContendedTestDB(t, 4)
	manager := NewManager(db, &captureEmitter{}, 5*time.Second)
	user := seedUser(t, db, "acme")

	const workers = 4
	subs := make([]*models.SubTask, workers)
	for i := range subs {
		subs[i] = seedSubTask(t, db, "acme")
	}

	var successes int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := manager.Start(context.Background(), subs[i].ID, user)
			if err == nil {
				atomic.AddInt32(&successes, 1)
				return
			}
			var retryable *RetryableError
			assert.ErrorAs(t, err, &retryable)
		}(i)
	}
	wg.Wait()

	require.GreaterOrEqual(t, atomic.LoadInt32(&successes), int32(1))

	var openCount int64
	require.NoError(t, db.Model(&models.TimeLogEntry{}).
		Where("user_id = ? AND end_time IS NULL", user.ID).Count(&openCount).Error)
	assert.Equal(t, int64(1), openCount)

	// Every rolled-back start left no entry behind.
	var totalLogs int64
	require.NoError(t, db.Model(&models.TimeLogEntry{}).
		Where("user_id = ?", user.ID).Count(&totalLogs).Error)
	assert.Equal(t, int64(atomic.LoadInt32(&successes)), totalLogs)
}

func TestOpenLogUniquePerUser(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "acme")
	subX := seedSubTask(t, db, "acme")
	subY := seedSubTask(t, db, "acme")

	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	first := models.TimeLogEntry{UserID: user.ID, SubTaskID: subX.ID, StartTime: now}
	require.NoError(t, db.Create(&first).Error)

	// A second open entry for the same user is rejected by the schema itself,
	// and the conflict counts as retryable so a lost race self-heals.
	second := models.TimeLogEntry{UserID: user.ID, SubTaskID: subY.ID, StartTime: now}
	err := db.Create(&second).Error
	require.Error(t, err)
	assert.True(t, isTransient(err))

	// Closed entries are unconstrained.
	require.NoError(t, db.Model(&models.TimeLogEntry{}).Where("id = ?", first.ID).
		Update("end_time", now.Add(time.Minute)).Error)
	second = models.TimeLogEntry{UserID: user.ID, SubTaskID: subY.ID, StartTime: now}
	require.NoError(t, db.Create(&second).Error)
}

func TestStartRetriesOnceOnTransientFailure(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme")

	attempts := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").
		Register("flaky_create", func(tx *gorm.DB) {
			if tx.Statement.Table != "time_log_entries" {
				return
			}
			attempts++
			if attempts == 1 {
				tx.AddError(errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"))
			}
		}))

	result, err := manager.Start(context.Background(), sub.ID, user)
	require.NoError(t, err)
	require.NotNil(t, result.Log)
	assert.Equal(t, 2, attempts)

	var openCount int64
	require.NoError(t, db.Model(&models.TimeLogEntry{}).
		Where("user_id = ? AND end_time IS NULL", user.ID).Count(&openCount).Error)
	assert.Equal(t, int64(1), openCount)
}

func TestStartSurfacesRetryableAfterSecondFailure(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme")

	attempts := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").
		Register("broken_create", func(tx *gorm.DB) {
			if tx.Statement.Table != "time_log_entries" {
				return
			}
			attempts++
			tx.AddError(errors.New("driver: bad connection"))
		}))

	_, err := manager.Start(context.Background(), sub.ID, user)
	var retryable *RetryableError
	require.ErrorAs(t, err, &retryable)
	assert.Equal(t, 2, attempts)

	// Both attempts rolled back.
	var totalLogs int64
	require.NoError(t, db.Model(&models.TimeLogEntry{}).
		Where("user_id = ?", user.ID).Count(&totalLogs).Error)
	assert.Zero(t, totalLogs)
}

func TestStartDoesNotRetryPermanentFailure(t *testing.T) {
	manager, db, _ := newTestManager(t)
	user := seedUser(t, db, "acme")
	sub := seedSubTask(t, db, "acme")

	attempts := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").
		Register("rejecting_create", func(tx *gorm.DB) {
			if tx.Statement.Table != "time_log_entries" {
				return
			}
			attempts++
			tx.AddError(errors.New("value too long for type character varying(64)"))
		}))

	_, err := manager.Start(context.Background(), sub.ID, user)
	require.Error(t, err)
	var retryable *RetryableError
	assert.False(t, errors.As(err, &retryable))
	assert.Equal(t, 1, attempts)
}

func TestTransientErrorClassification(t *testing.T) {
	assert.True(t, isTransient(errors.New("ERROR: could not serialize access (SQLSTATE 40001)")))
	assert.True(t, isTransient(errors.New("ERROR: deadlock detected (SQLSTATE 40P01)")))
	assert.True(t, isTransient(errors.New("database is locked")))
	assert.True(t, isTransient(errors.New("driver: bad connection")))
	assert.True(t, isTransient(context.DeadlineExceeded))
	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(errors.New("value too long for type character varying(64)")))
}

func TestAutoPauseEventCarriesStoppedCompany(t *testing.T) {
	// An admin pausing work in one company by starting in another: the
	// earnings update belongs to the company whose ledger changed.
	manager, db, emitter := newTestManager(t)
	admin := seedUser(t, db, "acme")
	require.NoError(t, db.Model(admin).Update("role", models.RoleAdmin).Error)
	admin.Role = models.RoleAdmin

	subX := seedSubTask(t, db, "acme")
	subY := seedSubTask(t, db, "globex")

	t0 := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return t0 }
	_, err := manager.Start(context.Background(), subX.ID, admin)
	require.NoError(t, err)

	manager.now = func() time.Time { return t0.Add(60 * time.Second) }
	_, err = manager.Start(context.Background(), subY.ID, admin)
	require.NoError(t, err)

	updates := emitter.ofType(events.TypeEarningsUpdated)
	require.Len(t, updates, 1)
	assert.Equal(t, "acme", updates[0].CompanyID)
	assert.Equal(t, subX.ID, updates[0].SubTaskID)

	started := emitter.ofType(events.TypeSubTaskStarted)
	require.Len(t, started, 2)
	assert.Equal(t, "globex", started[1].CompanyID)
}
