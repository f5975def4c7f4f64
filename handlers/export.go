package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"timeclock/database"
	"timeclock/middleware"
	"timeclock/models"
)

type ExportHandler struct{}

func NewExportHandler() *ExportHandler {
	return &ExportHandler{}
}

// TimeLogsCSV streams the closed ledger for one month as CSV.
func (h *ExportHandler) TimeLogsCSV(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if !user.CanExport() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 2000 || year > 2100 {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}

	startDate := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	endDate := startDate.AddDate(0, 1, 0)

	var entries []models.TimeLogEntry
	query := database.GetDB().
		Preload("User").Preload("SubTask").Preload("SubTask.Task").
		Joins("JOIN users ON users.id = time_log_entries.user_id").
		Where("users.company_id = ?", user.CompanyID).
		Where("time_log_entries.end_time IS NOT NULL").
		Where("time_log_entries.start_time >= ? AND time_log_entries.start_time < ?", startDate, endDate)

	if err := query.Order("time_log_entries.start_time asc, time_log_entries.user_id asc").
		Find(&entries).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	filename := fmt.Sprintf("timelogs_%d_%02d.csv", year, month)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	writer.Write([]string{"Employee", "Task", "SubTask", "Start", "End", "DurationSeconds"})
	for _, entry := range entries {
		end := ""
		if entry.EndTime != nil {
			end = entry.EndTime.Format(time.RFC3339)
		}
		duration := int64(0)
		if entry.DurationSeconds != nil {
			duration = *entry.DurationSeconds
		}
		writer.Write([]string{
			entry.User.DisplayName(),
			entry.SubTask.Task.Name,
			entry.SubTask.Name,
			entry.StartTime.Format(time.RFC3339),
			end,
			strconv.FormatInt(duration, 10),
		})
	}
}
