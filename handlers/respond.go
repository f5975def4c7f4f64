package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"timeclock/payroll"
	"timeclock/session"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps tagged session/payroll errors onto HTTP statuses.
// ScheduleLocked and NoActiveSession are expected outcomes with structured
// payloads; only unrecognized errors are logged as server faults.
func writeDomainError(w http.ResponseWriter, err error) {
	var notFound *session.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, notFound.Error())
		return
	}

	var unauthorized *session.UnauthorizedError
	if errors.As(err, &unauthorized) {
		writeError(w, http.StatusForbidden, unauthorized.Error())
		return
	}

	var locked *session.ScheduleLockedError
	if errors.As(err, &locked) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"schedule_locked":   true,
			"reason":            locked.Reason,
			"starts_in_seconds": locked.StartsInSeconds,
			"countdown":         locked.Countdown,
		})
		return
	}

	var completed *session.AlreadyCompletedError
	if errors.As(err, &completed) {
		writeError(w, http.StatusConflict, completed.Error())
		return
	}

	var noSession *session.NoActiveSessionError
	if errors.As(err, &noSession) {
		writeError(w, http.StatusBadRequest, noSession.Error())
		return
	}

	var retryable *session.RetryableError
	if errors.As(err, &retryable) {
		writeError(w, http.StatusServiceUnavailable, "temporary failure, please retry")
		return
	}

	var calc *payroll.CalculationError
	if errors.As(err, &calc) {
		writeError(w, http.StatusUnprocessableEntity, calc.Error())
		return
	}

	logrus.WithError(err).Error("unhandled request error")
	writeError(w, http.StatusInternalServerError, "internal error")
}
