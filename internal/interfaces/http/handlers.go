package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/application/service"
	"github.com/garyjia/disbursement/internal/application/workflow"
	"github.com/garyjia/disbursement/internal/domain/entity"
	domainwf "github.com/garyjia/disbursement/internal/domain/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool                  `json:"success"`
	Data    interface{}           `json:"data,omitempty"`
	Error   string                `json:"error,omitempty"`
	Details []domainwf.FieldError `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ActionRequest is the body of POST /api/requests/:id/actions
type ActionRequest struct {
	Action  string `json:"action" binding:"required"`
	Comment string `json:"comment" binding:"max=1000"`
}

// ListRequestsQuery represents query parameters for listing requests
type ListRequestsQuery struct {
	Status      string `form:"status"`
	RequestType string `form:"requestType"`
	Category    string `form:"category"`
	Priority    string `form:"priority"`
	EmployeeID  int64  `form:"employeeId" binding:"min=0"`
	ActionBy    string `form:"actionBy"`
	OpenOnly    bool   `form:"openOnly"`
	Page        int    `form:"page" binding:"min=0"`
	Limit       int    `form:"limit" binding:"min=0"`
}

func (q ListRequestsQuery) filter() entity.RequestFilter {
	return entity.RequestFilter{
		Status:      entity.RequestStatus(q.Status),
		RequestType: entity.RequestType(q.RequestType),
		Category:    q.Category,
		Priority:    q.Priority,
		EmployeeID:  q.EmployeeID,
		ActionBy:    entity.Role(q.ActionBy),
		OpenOnly:    q.OpenOnly,
	}
}

// SubmitRequestBody is the body of POST /api/requests. Dates are YYYY-MM-DD or RFC 3339.
type SubmitRequestBody struct {
	workflow.SubmitInput

	ExpenseStartDate        string `json:"expenseStartDate"`
	ExpenseEndDate          string `json:"expenseEndDate"`
	ExpectedLiquidationDate string `json:"expectedLiquidationDate"`
	PlannedExpenseDate      string `json:"plannedExpenseDate"`
}

// input parses the dates into the engine's input
func (b SubmitRequestBody) input() (workflow.SubmitInput, error) {
	in := b.SubmitInput
	verr := &domainwf.ValidationError{}

	parse := func(field, raw string) *time.Time {
		t, err := parseDate(raw)
		if err != nil {
			verr.Add(field, "must be a date (YYYY-MM-DD)")
		}
		return t
	}
	in.ExpenseStartDate = parse("expenseStartDate", b.ExpenseStartDate)
	in.ExpenseEndDate = parse("expenseEndDate", b.ExpenseEndDate)
	in.ExpectedLiquidationDate = parse("expectedLiquidationDate", b.ExpectedLiquidationDate)
	in.PlannedExpenseDate = parse("plannedExpenseDate", b.PlannedExpenseDate)

	if verr.HasErrors() {
		return in, verr
	}
	return in, nil
}

// parseDate accepts a calendar date, taken as midnight UTC, or an RFC 3339 timestamp.
// An empty string is no date.
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// SubmitRequest handles POST /api/requests
func (h *Handlers) SubmitRequest(c *gin.Context) {
	var body SubmitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	in, err := body.input()
	if err != nil {
		h.fail(c, "Invalid request dates", err)
		return
	}
	in.SubmitterID = actorID(c)

	req, err := h.services.Engine.SubmitRequest(c.Request.Context(), in)
	if err != nil {
		h.fail(c, "Failed to submit request", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: req})
}

// ApplyAction handles POST /api/requests/:id/actions
func (h *Handlers) ApplyAction(c *gin.Context) {
	var body ActionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	action, ok := domainwf.ParseAction(body.Action)
	if !ok {
		h.fail(c, "Unknown action", domainwf.NewValidationError("action", "must be one of APPROVE, REJECT, PROCESS_PAYMENT, MARK_PAID"))
		return
	}

	req, err := h.services.Engine.ApplyAction(c.Request.Context(), c.Param("id"), action, actorID(c), body.Comment)
	if err != nil {
		h.fail(c, "Failed to apply action", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	detail, err := h.services.Queries.GetRequest(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get request", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	var q ListRequestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	page, err := h.services.Queries.ListRequests(c.Request.Context(), actorID(c), q.filter(), port.Page{Page: q.Page, Limit: q.Limit})
	if err != nil {
		h.fail(c, "Failed to list requests", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: page})
}

// DeleteRequest handles DELETE /api/requests/:id
func (h *Handlers) DeleteRequest(c *gin.Context) {
	if err := h.services.Queries.DeleteRequest(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		h.fail(c, "Failed to delete request", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// Inbox handles GET /api/inbox
func (h *Handlers) Inbox(c *gin.Context) {
	requests, err := h.services.Queries.Inbox(c.Request.Context(), actorID(c))
	if err != nil {
		h.fail(c, "Failed to load inbox", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: requests})
}

// DashboardStats handles GET /api/stats/dashboard
func (h *Handlers) DashboardStats(c *gin.Context) {
	stats, err := h.services.Queries.DashboardStats(c.Request.Context(), actorID(c))
	if err != nil {
		h.fail(c, "Failed to compute dashboard stats", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// ExportLedger handles GET /api/requests/export
func (h *Handlers) ExportLedger(c *gin.Context) {
	var q ListRequestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	export, err := h.services.Exports.ExportLedger(c.Request.Context(), actorID(c), q.filter())
	if err != nil {
		h.fail(c, "Failed to export ledger", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
	c.Header("X-Row-Count", strconv.Itoa(export.RowCount))
	c.Data(http.StatusOK, xlsxContentType, export.Content)
}

// ListUsers handles GET /api/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.services.Users.ListUsers(c.Request.Context(), entity.Role(c.Query("role")))
	if err != nil {
		h.fail(c, "Failed to list users", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: users})
}

// GetUser handles GET /api/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.fail(c, "Invalid user ID", domainwf.NewValidationError("id", "must be a number"))
		return
	}

	user, err := h.services.Users.GetUser(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get user", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: user})
}

// CreateUser handles POST /api/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var body service.UserInput
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	user, err := h.services.Users.CreateUser(c.Request.Context(), actorID(c), body)
	if err != nil {
		h.fail(c, "Failed to create user", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: user})
}

// UpdateUser handles PUT /api/users/:id
func (h *Handlers) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.fail(c, "Invalid user ID", domainwf.NewValidationError("id", "must be a number"))
		return
	}

	var body service.UserUpdate
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	user, err := h.services.Users.UpdateUser(c.Request.Context(), actorID(c), id, body)
	if err != nil {
		h.fail(c, "Failed to update user", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: user})
}

// ListNotifications handles GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(c, "Invalid limit", domainwf.NewValidationError("limit", "must be a number"))
			return
		}
		limit = n
	}

	notifications, err := h.services.Notifications.ListNotifications(c.Request.Context(), actorID(c), limit)
	if err != nil {
		h.fail(c, "Failed to list notifications", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: notifications})
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "error", err, "path", c.Request.URL.Path)
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg + ": " + err.Error(),
	})
}

// fail maps an application error onto a status code and writes the error envelope
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, "error", err, "path", c.Request.URL.Path)
		c.JSON(status, Response{Success: false, Error: "internal server error"})
		return
	}

	h.logger.Info(msg, "error", err, "status", status, "path", c.Request.URL.Path)

	resp := Response{Success: false, Error: err.Error()}
	var verr *domainwf.ValidationError
	if errors.As(err, &verr) {
		resp.Details = verr.Fields
	}
	c.JSON(status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domainwf.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domainwf.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrInvalidTransition), errors.Is(err, domainwf.ErrAlreadyTerminal):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
