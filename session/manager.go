// Package session owns the single-open-timer invariant: a user has at most
// one open time log at any instant, across every sub-task and device. The
// invariant is not merely checked, it is maintained: starting a timer closes
// whatever was open inside the same transaction that opens the new one.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timeclock/events"
	"timeclock/models"
	"timeclock/schedule"
)

type Manager struct {
	db      *gorm.DB
	emitter events.Emitter
	timeout time.Duration
	log     *logrus.Logger

	// now is swapped out by tests.
	now func() time.Time
}

func NewManager(db *gorm.DB, emitter events.Emitter, timeout time.Duration) *Manager {
	return &Manager{
		db:      db,
		emitter: emitter,
		timeout: timeout,
		log:     logrus.StandardLogger(),
		now:     time.Now,
	}
}

// StartResult reports the newly opened log and, when the start auto-paused
// another timer, the sub-task that was stopped.
type StartResult struct {
	Log            *models.TimeLogEntry `json:"time_log"`
	StoppedSubTask *models.SubTask      `json:"stopped_sub_task,omitempty"`
}

// ProofOfWork is optional completion metadata supplied by clients.
type ProofOfWork struct {
	Comment     string   `json:"comment,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// ActiveSession is the read-model for "what am I tracking right now".
type ActiveSession struct {
	Log            models.TimeLogEntry `json:"time_log"`
	SubTask        models.SubTask      `json:"sub_task"`
	ElapsedSeconds int64               `json:"elapsed_seconds"`
}

// Start opens a timer on the sub-task. Any open log the user holds, on any
// sub-task, is closed first with full accounting inside the same transaction;
// that prior sub-task drops back to PENDING.
func (m *Manager) Start(ctx context.Context, subTaskID uint, user *models.User) (*StartResult, error) {
	now := m.now()
	var result StartResult
	var pending []events.Event

	err := m.inTx(ctx, func(tx *gorm.DB) error {
		result = StartResult{}
		pending = pending[:0]

		if err := lockUser(tx, user.ID); err != nil {
			return err
		}
		sub, err := lockSubTask(tx, subTaskID)
		if err != nil {
			return err
		}
		if !user.CanTrackIn(sub.Task.CompanyID) {
			return &UnauthorizedError{Reason: "sub-task belongs to another company"}
		}

		eval := schedule.Evaluate(sub, now)
		if !eval.CanStart {
			locked := &ScheduleLockedError{Reason: eval.Reason, StartsInSeconds: eval.StartsIn}
			if eval.StartsIn != nil {
				locked.Countdown = schedule.FormatCountdown(*eval.StartsIn)
			}
			return locked
		}
		if sub.IsCompleted() {
			return &AlreadyCompletedError{SubTaskID: sub.ID}
		}

		stopped, duration, err := closeOpenLog(tx, user.ID, 0, now)
		if err != nil {
			return err
		}
		if stopped != nil {
			result.StoppedSubTask = stopped
			update := events.New(events.TypeEarningsUpdated)
			update.CompanyID = stopped.Task.CompanyID
			update.UserID = user.ID
			update.TaskID = stopped.TaskID
			update.SubTaskID = stopped.ID
			update.DurationSeconds = duration
			pending = append(pending, update)
		}

		entry := models.TimeLogEntry{
			UserID:    user.ID,
			SubTaskID: sub.ID,
			StartTime: now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.SubTask{}).Where("id = ?", sub.ID).
			Update("status", models.StatusInProgress).Error; err != nil {
			return err
		}
		sub.Status = models.StatusInProgress
		result.Log = &entry

		started := events.New(events.TypeSubTaskStarted)
		started.CompanyID = sub.Task.CompanyID
		started.UserID = user.ID
		started.TaskID = sub.TaskID
		started.SubTaskID = sub.ID
		pending = append(pending, started)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, pending)
	return &result, nil
}

// Stop closes the user's open log on the sub-task and returns its duration.
func (m *Manager) Stop(ctx context.Context, subTaskID uint, user *models.User) (int64, error) {
	return m.stop(ctx, subTaskID, user, "", nil)
}

// AutoStop is Stop invoked by the scheduler when a window closes. Accounting
// is identical; emitted events carry reason scheduled_end and the optional
// proof-of-work payload is attached to the sub-task.
func (m *Manager) AutoStop(ctx context.Context, subTaskID uint, user *models.User, proof ProofOfWork) (int64, error) {
	return m.stop(ctx, subTaskID, user, events.ReasonScheduledEnd, &proof)
}

func (m *Manager) stop(ctx context.Context, subTaskID uint, user *models.User, reason string, proof *ProofOfWork) (int64, error) {
	now := m.now()
	var duration int64
	var pending []events.Event

	err := m.inTx(ctx, func(tx *gorm.DB) error {
		pending = pending[:0]

		if err := lockUser(tx, user.ID); err != nil {
			return err
		}
		sub, err := lockSubTask(tx, subTaskID)
		if err != nil {
			return err
		}
		if !user.CanTrackIn(sub.Task.CompanyID) {
			return &UnauthorizedError{Reason: "sub-task belongs to another company"}
		}

		stopped, d, err := closeOpenLog(tx, user.ID, sub.ID, now)
		if err != nil {
			return err
		}
		if stopped == nil {
			return &NoActiveSessionError{SubTaskID: sub.ID, UserID: user.ID}
		}
		duration = d

		if proof != nil {
			updates := map[string]interface{}{}
			if proof.Comment != "" {
				sub.CompletionComment = proof.Comment
				updates["completion_comment"] = proof.Comment
			}
			if len(proof.Attachments) > 0 {
				sub.Attachments = append(sub.Attachments, proof.Attachments...)
				updates["attachments"] = sub.Attachments
			}
			if len(updates) > 0 {
				if err := tx.Model(&models.SubTask{}).Where("id = ?", sub.ID).
					Updates(updates).Error; err != nil {
					return err
				}
			}
		}

		if reason == events.ReasonScheduledEnd {
			auto := events.New(events.TypeSubTaskAutoStopped)
			auto.CompanyID = sub.Task.CompanyID
			auto.UserID = user.ID
			auto.TaskID = sub.TaskID
			auto.SubTaskID = sub.ID
			auto.DurationSeconds = d
			auto.Reason = reason
			pending = append(pending, auto)
		}
		update := events.New(events.TypeEarningsUpdated)
		update.CompanyID = sub.Task.CompanyID
		update.UserID = user.ID
		update.TaskID = sub.TaskID
		update.SubTaskID = sub.ID
		update.DurationSeconds = d
		pending = append(pending, update)
		return nil
	})
	if err != nil {
		return 0, err
	}

	m.publish(ctx, pending)
	return duration, nil
}

// Complete closes any open session on the sub-task (same accounting as Stop,
// but a missing session is not an error) and marks it COMPLETED. Completion
// is terminal: no further Start is admitted.
func (m *Manager) Complete(ctx context.Context, subTaskID uint, user *models.User, proof ProofOfWork) (*models.SubTask, error) {
	now := m.now()
	var completed models.SubTask
	var pending []events.Event

	err := m.inTx(ctx, func(tx *gorm.DB) error {
		pending = pending[:0]

		if err := lockUser(tx, user.ID); err != nil {
			return err
		}
		sub, err := lockSubTask(tx, subTaskID)
		if err != nil {
			return err
		}
		if !user.CanTrackIn(sub.Task.CompanyID) {
			return &UnauthorizedError{Reason: "sub-task belongs to another company"}
		}

		stopped, d, err := closeOpenLog(tx, user.ID, sub.ID, now)
		if err != nil {
			return err
		}
		if stopped != nil {
			sub.TotalSeconds = stopped.TotalSeconds
			update := events.New(events.TypeEarningsUpdated)
			update.CompanyID = sub.Task.CompanyID
			update.UserID = user.ID
			update.TaskID = sub.TaskID
			update.SubTaskID = sub.ID
			update.DurationSeconds = d
			pending = append(pending, update)
		}

		updates := map[string]interface{}{
			"status":             models.StatusCompleted,
			"completion_comment": proof.Comment,
		}
		if len(proof.Attachments) > 0 {
			sub.Attachments = append(sub.Attachments, proof.Attachments...)
			updates["attachments"] = sub.Attachments
		}
		if err := tx.Model(&models.SubTask{}).Where("id = ?", sub.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		sub.Status = models.StatusCompleted
		sub.CompletionComment = proof.Comment
		completed = *sub

		done := events.New(events.TypeSubTaskCompleted)
		done.CompanyID = sub.Task.CompanyID
		done.UserID = user.ID
		done.TaskID = sub.TaskID
		done.SubTaskID = sub.ID
		done.DurationSeconds = d
		pending = append(pending, done)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, pending)
	return &completed, nil
}

// GetActive returns the user's open session joined with its sub-task, or nil
// when nothing is running. Pure read, never mutates.
func (m *Manager) GetActive(ctx context.Context, user *models.User) (*ActiveSession, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var entry models.TimeLogEntry
	err := m.db.WithContext(ctx).
		Preload("SubTask").Preload("SubTask.Task").
		Where("user_id = ? AND end_time IS NULL", user.ID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &ActiveSession{
		Log:            entry,
		SubTask:        entry.SubTask,
		ElapsedSeconds: entry.ElapsedSeconds(m.now()),
	}, nil
}

// ListByTask returns all sub-tasks of a task for read-path enrichment.
func (m *Manager) ListByTask(ctx context.Context, taskID uint, user *models.User) ([]models.SubTask, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var task models.Task
	err := m.db.WithContext(ctx).First(&task, taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "task", ID: taskID}
	}
	if err != nil {
		return nil, err
	}
	if !user.CanTrackIn(task.CompanyID) {
		return nil, &UnauthorizedError{Reason: "task belongs to another company"}
	}

	var subs []models.SubTask
	if err := m.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("id asc").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// forUpdate adds a row lock on dialects that support it; SQLite serializes
// writers on its own and rejects FOR UPDATE.
func forUpdate(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "sqlite", "sqlite3":
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockUser takes the user's row lock before any session mutation. The open-log
// select alone cannot serialize concurrent starts: when the user has nothing
// open there is no row for it to lock, and two transactions could each pass
// the check and insert an open entry. The user row always exists, so locking
// it first serializes every mutation for that user. Lock order is user, then
// sub-task, on every path.
func lockUser(tx *gorm.DB, id uint) error {
	var user models.User
	return forUpdate(tx).Select("id").First(&user, id).Error
}

// lockSubTask loads a sub-task with its task under a row lock, so status and
// counter updates in the same transaction race with nobody.
func lockSubTask(tx *gorm.DB, id uint) (*models.SubTask, error) {
	var sub models.SubTask
	err := forUpdate(tx).
		Preload("Task").
		First(&sub, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "sub-task", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// closeOpenLog closes the user's open log and applies the accounting: the
// duration lands on the owning sub-task's counter and that sub-task drops to
// PENDING. With subTaskID zero any open log qualifies (the auto-pause path);
// otherwise only a log on that sub-task is closed. Returns the updated
// sub-task, or nil when the user had nothing open.
func closeOpenLog(tx *gorm.DB, userID, subTaskID uint, now time.Time) (*models.SubTask, int64, error) {
	query := forUpdate(tx).
		Where("user_id = ? AND end_time IS NULL", userID)
	if subTaskID != 0 {
		query = query.Where("sub_task_id = ?", subTaskID)
	}

	var open models.TimeLogEntry
	err := query.First(&open).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	duration := open.Close(now)
	if err := tx.Model(&models.TimeLogEntry{}).Where("id = ?", open.ID).
		Updates(map[string]interface{}{
			"end_time":         open.EndTime,
			"duration_seconds": duration,
		}).Error; err != nil {
		return nil, 0, err
	}

	var sub models.SubTask
	if err := forUpdate(tx).Preload("Task").First(&sub, open.SubTaskID).Error; err != nil {
		return nil, 0, err
	}
	if err := tx.Model(&models.SubTask{}).Where("id = ?", sub.ID).
		Updates(map[string]interface{}{
			"total_seconds": gorm.Expr("total_seconds + ?", duration),
			"status":        models.StatusPending,
		}).Error; err != nil {
		return nil, 0, err
	}
	sub.TotalSeconds += duration
	sub.Status = models.StatusPending
	return &sub, duration, nil
}

// inTx runs fn in a transaction with the configured timeout, retrying exactly
// once on a transient storage failure. A second failure surfaces as a
// RetryableError; nothing partial was committed either way.
func (m *Manager) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.db.WithContext(ctx).Transaction(fn)
	if err == nil || !isTransient(err) {
		return err
	}

	m.log.WithError(err).Warn("transaction failed, retrying once")
	if err := m.db.WithContext(ctx).Transaction(fn); err != nil {
		if isTransient(err) {
			return &RetryableError{Err: err}
		}
		return err
	}
	return nil
}

func (m *Manager) publish(ctx context.Context, pending []events.Event) {
	if m.emitter == nil {
		return
	}
	for _, event := range pending {
		m.emitter.Emit(ctx, event)
	}
}

var transientMarkers = []string{
	"40001", // serialization_failure
	"40P01", // deadlock_detected
	"deadlock",
	"database is locked",
	"database table is locked",
	"bad connection",
	"connection reset",
	"connection refused",
	// A lost race on the one-open-log index resolves itself: the retry sees
	// the committed open entry and closes it.
	"idx_time_log_entries_open_user",
	"UNIQUE constraint failed: time_log_entries.user_id",
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
