package controllers

import (
	"context"
	"log/slog"
	"net/http"

	"eventsettlement/internal/delivery/http/helpers"
	"eventsettlement/internal/domain"
)

// JobRunner runs one tick of a background job synchronously.
type JobRunner interface {
	RunReminders(ctx context.Context) (*domain.ReminderBatchResult, error)
	RunSweep(ctx context.Context) (*domain.SweepResult, error)
}

type JobController struct {
	Logger *slog.Logger
	Jobs   JobRunner
}

func NewJobController(logger *slog.Logger, jobs JobRunner) *JobController {
	return &JobController{Logger: logger, Jobs: jobs}
}

// RunRemindersResponse is the data payload of POST /notifications/reminders/run.
type RunRemindersResponse struct {
	Message string `json:"message"`
	domain.ReminderBatchResult
}

// RunRemindersSuccessResponse is the success response envelope for POST /notifications/reminders/run (200).
type RunRemindersSuccessResponse struct {
	Data  RunRemindersResponse `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// RunReminders godoc
// @Summary Send due event reminders now
// @Description Runs one reminder tick synchronously. Registrations already reminded are skipped.
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.RunRemindersSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /notifications/reminders/run [post]
func (c *JobController) RunReminders(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r, ""); !ok {
		return
	}
	res, err := c.Jobs.RunReminders(r.Context())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, RunRemindersResponse{
		Message:             "Notification check completed",
		ReminderBatchResult: *res,
	})
}

// RunSweepSuccessResponse is the success response envelope for POST /registrations/sweep/run (200).
type RunSweepSuccessResponse struct {
	Data  domain.SweepResult `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// RunSweep godoc
// @Summary Reconcile stale pending registrations now
// @Description Asks each provider about Pending registrations older than the configured TTL. Paid ones are confirmed, unpaid ones released.
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.RunSweepSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/sweep/run [post]
func (c *JobController) RunSweep(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r, ""); !ok {
		return
	}
	res, err := c.Jobs.RunSweep(r.Context())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, res)
}
