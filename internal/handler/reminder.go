package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/recurrence"
	"github.com/dukerupert/nudge/internal/reminder"
)

type ReminderHandler struct {
	svc    *reminder.Service
	logger *slog.Logger
}

func NewReminderHandler(svc *reminder.Service, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{svc: svc, logger: logger}
}

type reminderRequest struct {
	Name       string   `json:"name"`
	DaysOfWeek *[7]bool `json:"days_of_week"`
	// Days is an alternative to DaysOfWeek, e.g. "MO,WE,FR" or "weekdays".
	Days string `json:"days"`
	Time string `json:"time"`
}

type reminderResponse struct {
	HabitID int64    `json:"habit_id"`
	IDs     []string `json:"ids"`
	Warning string   `json:"warning,omitempty"`
}

// decodeReminder parses the habit id and body into a HabitReminder. It
// writes a 400 and returns false when the request is malformed.
func decodeReminder(w http.ResponseWriter, r *http.Request) (model.HabitReminder, bool) {
	var h model.HabitReminder

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return h, false
	}

	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return h, false
	}

	req.Time = strings.TrimSpace(req.Time)
	if _, _, err := recurrence.ParseClock(req.Time); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "time must be HH:MM (24h)"})
		return h, false
	}

	switch {
	case req.DaysOfWeek != nil:
		h.DaysOfWeek = *req.DaysOfWeek
	case req.Days != "":
		days, err := recurrence.ParseDays(req.Days)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return h, false
		}
		h.DaysOfWeek = days
	}

	h.HabitID = id
	h.Name = strings.TrimSpace(req.Name)
	h.Time = req.Time
	return h, true
}

// Schedule handles POST /api/habits/{id}/reminders. Reminders are optional
// for a habit, so a failed schedule still answers 201 with a warning.
func (h *ReminderHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	habit, ok := decodeReminder(w, r)
	if !ok {
		return
	}

	ids, err := h.svc.Schedule(r.Context(), habit)
	writeJSON(w, http.StatusCreated, h.softResult("schedule", habit.HabitID, ids, err))
}

// Update handles PUT /api/habits/{id}/reminders.
func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	habit, ok := decodeReminder(w, r)
	if !ok {
		return
	}

	ids, err := h.svc.Update(r.Context(), habit)
	writeJSON(w, http.StatusOK, h.softResult("update", habit.HabitID, ids, err))
}

// Complete handles POST /api/habits/{id}/complete.
func (h *ReminderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	habit, ok := decodeReminder(w, r)
	if !ok {
		return
	}

	ids, err := h.svc.Reschedule(r.Context(), habit)
	writeJSON(w, http.StatusOK, completeResponse{
		reminderResponse: h.softResult("reschedule", habit.HabitID, ids, err),
		Rescheduled:      h.svc.Strategy().NeedsPostCompletionReschedule(),
	})
}

type completeResponse struct {
	reminderResponse
	Rescheduled bool `json:"rescheduled"`
}

func (h *ReminderHandler) softResult(op string, habitID int64, ids []string, err error) reminderResponse {
	resp := reminderResponse{HabitID: habitID, IDs: ids}
	if err != nil {
		h.logger.Warn("reminder "+op+" failed", "habit_id", habitID, "error", err)
		resp.Warning = "reminders could not be " + op + "d"
	}
	if resp.IDs == nil {
		resp.IDs = []string{}
	}
	return resp
}

// Cancel handles DELETE /api/habits/{id}/reminders.
func (h *ReminderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.svc.Cancel(r.Context(), id); err != nil {
		h.logger.Error("cancel reminders", "habit_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to cancel reminders"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /api/habits/{id}/reminders.
func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	ids, ok, err := h.svc.Tracked(id)
	if err != nil {
		h.logger.Error("get tracked reminders", "habit_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read reminders"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "habit has no reminders"})
		return
	}
	writeJSON(w, http.StatusOK, reminderResponse{HabitID: id, IDs: ids})
}

// List handles GET /api/reminders.
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Scheduled(r.Context())
	if err != nil {
		h.logger.Error("list scheduled reminders", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list reminders"})
		return
	}
	if records == nil {
		records = []model.NotificationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Cleanup handles POST /api/reminders/cleanup.
func (h *ReminderHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.CleanupOrphans(r.Context())
	if err != nil {
		h.logger.Error("cleanup orphaned reminders", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  "cleanup incomplete",
			"report": report,
		})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Permission handles POST /api/permission.
func (h *ReminderHandler) Permission(w http.ResponseWriter, r *http.Request) {
	granted := h.svc.RequestPermission(r.Context())

	status, err := h.svc.PermissionStatus(r.Context())
	if err != nil {
		h.logger.Warn("read permission status", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"granted": granted, "status": status})
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
