package deskapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/benchdesk/internal/intake"
	"go.uber.org/zap"
)

type handlers struct {
	reg   *Registry
	techs TechnicianSource
	log   *zap.Logger
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/technicians", h.listTechnicians)
	api.POST("/sessions", h.createSession)

	s := api.Group("/sessions/:id", h.loadSession)
	s.GET("", h.getSession)
	s.DELETE("", h.deleteSession)
	s.PUT("/values", h.putValues)
	s.GET("/notices", h.notices)
	s.POST("/lookup/client", h.lookupClient)
	s.POST("/lookup/device", h.lookupDevice)
	s.POST("/blur/phone", h.blurPhone)
	s.POST("/blur/serial", h.blurSerial)
	s.POST("/reset", h.reset)
	s.POST("/submit", h.submit)
}

const sessionKey = "session"

// loadSession resolves :id to a session or answers 404.
func (h *handlers) loadSession(c *gin.Context) {
	sess, ok := h.reg.Get(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Set(sessionKey, sess)
	c.Next()
}

func session(c *gin.Context) *intake.Session {
	return c.MustGet(sessionKey).(*intake.Session)
}

// abortWithError maps intake errors to HTTP statuses.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, intake.ErrSubmissionInProgress):
		status = http.StatusConflict
	case errors.Is(err, intake.ErrSessionClosed):
		status = http.StatusGone
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (h *handlers) listTechnicians(c *gin.Context) {
	if h.techs == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	techs, err := h.techs.Technicians(c.Request.Context())
	if err != nil {
		h.log.Warn("list technicians", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if updated := h.techs.Updated(); !updated.IsZero() {
		c.Header("Last-Modified", updated.UTC().Format(http.TimeFormat))
	}
	c.JSON(http.StatusOK, techs)
}

// checkTechnician rejects an assigned technician missing from the roster.
// It reports whether the request may continue.
func (h *handlers) checkTechnician(c *gin.Context, id intake.ID) bool {
	if h.techs == nil || id.IsZero() {
		return true
	}
	if _, err := h.techs.Technicians(c.Request.Context()); err != nil {
		h.log.Warn("load technicians", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return false
	}
	if _, ok := h.techs.Get(id); !ok {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("unknown technician %s", id)})
		return false
	}
	return true
}

func (h *handlers) createSession(c *gin.Context) {
	sess := h.reg.Create()
	c.JSON(http.StatusCreated, sess.Snapshot())
}

func (h *handlers) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, session(c).Snapshot())
}

func (h *handlers) deleteSession(c *gin.Context) {
	h.reg.Delete(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *handlers) putValues(c *gin.Context) {
	var v intake.FormValues
	if err := c.ShouldBindJSON(&v); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.checkTechnician(c, v.AssignedTechnician) {
		return
	}
	sess := session(c)
	if err := sess.SetValues(v); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (h *handlers) notices(c *gin.Context) {
	notices := session(c).Notices()
	if notices == nil {
		notices = []intake.Notice{}
	}
	c.JSON(http.StatusOK, notices)
}

type phoneRequest struct {
	Phone string `json:"phone"`
}

type serialRequest struct {
	Serial string `json:"serial"`
}

// lookupResponse reports a synchronous lookup.
type lookupResponse struct {
	Kind    string          `json:"kind"`
	Record  any             `json:"record,omitempty"`
	Error   string          `json:"error,omitempty"`
	Applied bool            `json:"applied"`
	Notice  *intake.Notice  `json:"notice,omitempty"`
	Session intake.Snapshot `json:"session"`
}

func (h *handlers) lookupClient(c *gin.Context) {
	var req phoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess := session(c)
	msg, applied, err := sess.LookupClient(c.Request.Context(), req.Phone)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLookupResponse(msg, applied, sess.Snapshot()))
}

func (h *handlers) lookupDevice(c *gin.Context) {
	var req serialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess := session(c)
	msg, applied, err := sess.LookupDevice(c.Request.Context(), req.Serial)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLookupResponse(msg, applied, sess.Snapshot()))
}

func newLookupResponse(msg intake.Message, applied bool, snap intake.Snapshot) lookupResponse {
	resp := lookupResponse{Applied: applied, Session: snap}
	switch m := msg.(type) {
	case intake.ClientFound:
		resp.Kind, resp.Record = "client_found", m.Record
	case intake.ClientAbsent:
		resp.Kind = "client_absent"
	case intake.DeviceFound:
		resp.Kind, resp.Record = "device_found", m.Record
	case intake.DeviceAbsent:
		resp.Kind = "device_absent"
	case intake.LookupError:
		resp.Kind, resp.Error = "lookup_error", m.Error()
	}
	if n, ok := intake.LookupNotice(msg); ok {
		resp.Notice = &n
	}
	return resp
}

func (h *handlers) blurPhone(c *gin.Context) {
	var req phoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := session(c).BlurPhone(req.Phone); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *handlers) blurSerial(c *gin.Context) {
	var req serialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := session(c).BlurSerial(req.Serial); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *handlers) reset(c *gin.Context) {
	sess := session(c)
	sess.Reset()
	c.JSON(http.StatusOK, sess.Snapshot())
}

// submitResponse is the JSON view of a finished submission.
type submitResponse struct {
	SubmissionID   string          `json:"submission_id"`
	Outcome        intake.State    `json:"outcome"`
	Succeeded      bool            `json:"succeeded"`
	ClientID       intake.ID       `json:"client_id,omitempty"`
	ClientCreated  bool            `json:"client_created"`
	DeviceID       intake.ID       `json:"device_id,omitempty"`
	DeviceCreated  bool            `json:"device_created"`
	TechnicianID   intake.ID       `json:"technician_id,omitempty"`
	JobCardID      intake.ID       `json:"job_card_id,omitempty"`
	EmailSent      bool            `json:"email_sent"`
	OrphanedClient bool            `json:"orphaned_client"`
	Compensated    bool            `json:"compensated"`
	Error          string          `json:"error,omitempty"`
	Notice         intake.Notice   `json:"notice"`
	Session        intake.Snapshot `json:"session"`
}

func (h *handlers) submit(c *gin.Context) {
	sess := session(c)
	res, err := sess.Submit(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	resp := submitResponse{
		SubmissionID:   res.SubmissionID,
		Outcome:        res.Outcome,
		Succeeded:      res.Succeeded(),
		ClientID:       res.ClientID,
		ClientCreated:  res.ClientCreated,
		DeviceID:       res.DeviceID,
		DeviceCreated:  res.DeviceCreated,
		TechnicianID:   res.TechnicianID,
		OrphanedClient: res.OrphanedClient,
		Compensated:    res.Compensated,
		Notice:         intake.OutcomeNotice(res),
		Session:        sess.Snapshot(),
	}
	if res.JobCard != nil {
		resp.JobCardID = res.JobCard.ID
		resp.EmailSent = res.JobCard.EmailSent
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
