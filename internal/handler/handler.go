package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opsreport/internal/attendance"
	"opsreport/internal/auth"
	"opsreport/internal/inspection"
	"opsreport/internal/period"
	"opsreport/internal/queue"
)

// AttendanceService is the attendance behaviour the handlers call.
type AttendanceService interface {
	Location() *time.Location
	MonthlyReport(ctx context.Context, employeeCode string, year, month int) (attendance.Report, error)
	DailyBoard(ctx context.Context, day time.Time) (period.Window, []attendance.BoardEntry, error)
	RecordPunch(ctx context.Context, employeeCode, deviceID string, at time.Time) (attendance.Punch, bool, error)
	RegisterDevice(ctx context.Context, deviceID string) error
}

// InspectionService reports deduplicated inspections.
type InspectionService interface {
	Report(ctx context.Context, filter period.Filter, gate inspection.Gate, now time.Time) (inspection.Report, error)
}

// Publisher enqueues ingest work.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Checker is a backing service that can report its health.
type Checker interface {
	Healthy(ctx context.Context) bool
}

// Deps are the collaborators of Handler.
type Deps struct {
	Attendance  AttendanceService
	Inspections InspectionService
	Queue       Publisher
	Signer      *auth.Signer
	Tokens      auth.RefreshStore
	AdminKey    string
	Checks      map[string]Checker
	Logger      *zap.Logger
}

// Handler serves the HTTP API.
type Handler struct {
	Deps
	now func() time.Time
}

// New returns a Handler. A nil logger is replaced with a no-op one.
func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handler{Deps: d, now: time.Now}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.POST("/devices/register", h.RegisterDevice)
	v1.POST("/auth/viewer", h.IssueViewer)
	v1.POST("/auth/refresh", h.Refresh)

	device := v1.Group("", auth.Require(h.Signer, auth.RoleDevice))
	device.POST("/punches", h.CreatePunch)
	device.POST("/inspections", h.CreateInspection)

	viewer := v1.Group("", auth.Require(h.Signer, auth.RoleViewer))
	viewer.GET("/employees/:code/attendance", h.EmployeeAttendance)
	viewer.GET("/attendance/daily", h.DailyAttendance)
	viewer.GET("/inspections", h.ListInspections)
	viewer.GET("/filters", h.Filters)
}

// ---------- Health ----------

// Healthz reports 503 when any backing service is unhealthy.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{}
	for name, check := range h.Checks {
		ok := check.Healthy(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
		}
	}
	if status == http.StatusOK {
		body["status"] = "ok"
	} else {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// ---------- Tokens ----------

// RegisterDevice issues a device token pair. Requires the admin key.
func (h *Handler) RegisterDevice(c *gin.Context) {
	var req struct {
		DeviceID string `json:"device_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Attendance.RegisterDevice(c.Request.Context(), req.DeviceID); err != nil {
		h.writeError(c, err)
		return
	}
	h.issue(c, req.DeviceID, auth.RoleDevice)
}

// IssueViewer issues a read-only token pair for report clients.
func (h *Handler) IssueViewer(c *gin.Context) {
	if h.AdminKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "viewer tokens disabled"})
		return
	}
	key := c.GetHeader("X-Admin-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(h.AdminKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
		return
	}
	h.issue(c, "viewer", auth.RoleViewer)
}

func (h *Handler) issue(c *gin.Context, subject, role string) {
	tokens, err := h.Signer.IssueStored(c.Request.Context(), h.Tokens, subject, role)
	if err != nil {
		h.Logger.Error("token issue failed", zap.String("subject", subject), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, tokenResponse(tokens))
}

// Refresh rotates a refresh token into a new pair.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, err := h.Signer.Rotate(c.Request.Context(), h.Tokens, req.RefreshToken)
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrWrongTokenKind), errors.Is(err, auth.ErrRevoked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	case err != nil:
		h.Logger.Error("token refresh failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token refresh failed"})
		return
	}
	c.JSON(http.StatusOK, tokenResponse(tokens))
}

func tokenResponse(t auth.TokenPair) gin.H {
	return gin.H{
		"access_token":  t.AccessToken,
		"refresh_token": t.RefreshToken,
		"expires_at":    t.AccessExp.Unix(),
	}
}

// ---------- Ingest ----------

// CreatePunch records a punch and enqueues it for finalization.
func (h *Handler) CreatePunch(c *gin.Context) {
	var req struct {
		EmployeeCode string    `json:"employee_code" binding:"required"`
		DeviceID     string    `json:"device_id"`
		At           time.Time `json:"at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, _ := auth.ClaimsFrom(c)
	if req.DeviceID == "" {
		req.DeviceID = claims.Subject
	}
	if req.DeviceID != claims.Subject {
		c.JSON(http.StatusForbidden, gin.H{"error": "device mismatch"})
		return
	}

	punch, duplicate, err := h.Attendance.RecordPunch(c.Request.Context(), req.EmployeeCode, req.DeviceID, req.At)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !duplicate {
		msg := queue.Message{Type: queue.TypePunch, Body: []byte(punch.ID)}
		if err := h.Queue.Publish(c.Request.Context(), msg); err != nil {
			h.Logger.Warn("queue publish failed", zap.String("punch_id", punch.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusAccepted, gin.H{
		"punch_id":  punch.ID,
		"at":        punch.At.In(h.Attendance.Location()),
		"status":    punch.Status,
		"duplicate": duplicate,
	})
}

// CreateInspection validates an inspection result and enqueues it.
func (h *Handler) CreateInspection(c *gin.Context) {
	var sub inspection.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := sub.Event(); err != nil {
		h.writeError(c, err)
		return
	}
	body, err := json.Marshal(sub)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode failed"})
		return
	}
	if err := h.Queue.Publish(c.Request.Context(), queue.Message{Type: queue.TypeInspection, Body: body}); err != nil {
		h.Logger.Error("queue publish failed", zap.String("panel_serial", sub.PanelSerial), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingest queue unavailable"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// ---------- Reports ----------

// EmployeeAttendance returns the payroll period report. Without year and month
// the period containing today is used.
func (h *Handler) EmployeeAttendance(c *gin.Context) {
	code := c.Param("code")
	yearStr, monthStr := c.Query("year"), c.Query("month")

	var year, month int
	if yearStr == "" && monthStr == "" {
		w := period.PayrollContaining(h.now(), h.Attendance.Location())
		year, month = w.End.Year(), int(w.End.Month())
	} else {
		var err error
		if year, month, err = attendance.ParseYearMonth(yearStr, monthStr); err != nil {
			h.writeError(c, err)
			return
		}
	}

	report, err := h.Attendance.MonthlyReport(c.Request.Context(), code, year, month)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// DailyAttendance returns the board for one day.
func (h *Handler) DailyAttendance(c *gin.Context) {
	loc := h.Attendance.Location()
	day := h.now().In(loc)
	if s := c.Query("date"); s != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, s, loc)
		if err != nil {
			h.writeError(c, &attendance.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	w, entries, err := h.Attendance.DailyBoard(c.Request.Context(), day)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if entries == nil {
		entries = []attendance.BoardEntry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"date":      w.Start.Format(time.DateOnly),
		"dayOfWeek": w.Start.Weekday().String(),
		"employees": entries,
	})
}

// ListInspections returns the deduplicated inspections for a filter window, optionally narrowed to one gate.
func (h *Handler) ListInspections(c *gin.Context) {
	filter, err := period.ParseFilter(c.Query("filter"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	var gate inspection.Gate
	if s := strings.TrimSpace(c.Query("gate")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.writeError(c, inspection.ErrUnknownGate)
			return
		}
		gate = inspection.Gate(n)
	}

	report, err := h.Inspections.Report(c.Request.Context(), filter, gate, h.now())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Filters lists the supported period filters and gates.
func (h *Handler) Filters(c *gin.Context) {
	gates := make([]gin.H, 0, len(inspection.Gates()))
	for _, g := range inspection.Gates() {
		gates = append(gates, gin.H{"gate": int(g), "name": g.Name()})
	}
	c.JSON(http.StatusOK, gin.H{"filters": period.Filters(), "gates": gates})
}

// writeError maps service errors to statuses. Store failures are already
// logged by the services; clients only get a generic message.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		dataErr  *attendance.DataSourceError
		storeErr *inspection.StoreError
	)
	switch {
	case attendance.IsValidation(err),
		errors.Is(err, period.ErrUnknownFilter),
		inspection.IsInvalid(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &dataErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attendance data unavailable"})
	case errors.As(err, &storeErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "inspection data unavailable"})
	default:
		h.Logger.Error("unhandled request error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
