package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"timeclock/middleware"
	"timeclock/payroll"
)

type PayrollHandler struct {
	calculator *payroll.Calculator
}

func NewPayrollHandler(calculator *payroll.Calculator) *PayrollHandler {
	return &PayrollHandler{calculator: calculator}
}

// CurrentEarnings returns the caller's snapshot for the running pay period.
func (h *PayrollHandler) CurrentEarnings(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	periodStart, periodEnd := payroll.CurrentPeriod(time.Now())

	snapshot, err := h.calculator.Calculate(r.Context(), user.ID, periodStart, periodEnd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// CurrentEarningsFor returns another user's snapshot; employees may only see
// their own.
func (h *PayrollHandler) CurrentEarningsFor(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	targetID, err := strconv.ParseUint(chi.URLParam(r, "userId"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if !user.CanViewEarningsFor(uint(targetID)) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	periodStart, periodEnd := payroll.CurrentPeriod(time.Now())
	snapshot, err := h.calculator.Calculate(r.Context(), uint(targetID), periodStart, periodEnd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// CompanyEarnings returns snapshots for every active employee of the caller's
// company.
func (h *PayrollHandler) CompanyEarnings(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if !user.CanViewCompanyEarnings() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	periodStart, periodEnd := payroll.CurrentPeriod(time.Now())
	snapshots, err := h.calculator.CompanyEarnings(r.Context(), user.CompanyID, periodStart, periodEnd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}
