package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/notify"
	"github.com/zulandar/cpg/internal/session"
	"gorm.io/gorm"
)

type api struct {
	db      *gorm.DB
	factory *session.Factory
	store   session.Store
	logger  zerolog.Logger
	poll    time.Duration
}

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, a *api) {
	router.GET("/healthz", a.handleHealth)

	s := router.Group("/api/sessions")
	s.GET("", a.handleList)
	s.POST("", a.handleCreate)
	s.GET("/:id", a.handleShow)
	s.GET("/:id/events", a.handleSessionEvents)
	s.POST("/:id/display", a.handleDisplay)
	s.POST("/:id/display/commit", a.handleCommit)
	s.POST("/:id/format", a.handleFormat)
	s.POST("/:id/review", a.handleReview)
	s.POST("/:id/send", a.handleSend)
	s.POST("/:id/cancel", a.handleCancel)
	s.PUT("/:id/products/:channel/:key", a.handleSaveProduct)
	s.DELETE("/:id/products/:channel/:key", a.handleDeleteProduct)

	router.GET("/api/events", a.handleSSE)
}

// actionRequest is the body shared by the workflow endpoints. Every field is
// optional for endpoints that do not use it.
type actionRequest struct {
	User              string                  `json:"user"`
	Reason            string                  `json:"reason"`
	Channel           string                  `json:"channel"`
	Operational       *bool                   `json:"operational"`
	OverrideApprovals bool                    `json:"override_approvals"`
	Report            *climate.ReportEnvelope `json:"report"`
}

func (r actionRequest) user() string {
	if r.User == "" {
		return "dashboard"
	}
	return r.User
}

func bindAction(c *gin.Context) (actionRequest, bool) {
	var req actionRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	return req, true
}

func parseChannel(s string) (climate.Source, bool) {
	switch ch := climate.Source(strings.ToUpper(s)); ch {
	case climate.SourceNWWS, climate.SourceNWR:
		return ch, true
	}
	return "", false
}

// status maps session errors onto HTTP status codes.
func status(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrNoSuchProduct):
		return http.StatusNotFound
	case errors.Is(err, session.ErrEmptyKey), errors.Is(err, session.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrWrongState), errors.Is(err, session.ErrTerminated),
		errors.Is(err, session.ErrNoReportData), errors.Is(err, session.ErrEmptyProdData):
		return http.StatusConflict
	case session.IsStageError(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (a *api) fail(c *gin.Context, err error) {
	code := status(err)
	if code >= http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("dashboard: request failed")
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (a *api) load(c *gin.Context) (*session.Session, bool) {
	s, err := a.factory.BySessionID(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return nil, false
	}
	return s, true
}

func (a *api) handleHealth(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *api) handleList(c *gin.Context) {
	f := session.ListFilter{ActiveOnly: c.Query("active") == "true"}
	if short := c.Query("prod_type"); short != "" {
		pt, ok := climate.PeriodTypeFromShort(strings.ToLower(short))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown prod_type " + short})
			return
		}
		f.ProdType = pt
	}
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit " + l})
			return
		}
		f.Limit = n
	}
	rows, err := a.store.List(c.Request.Context(), f)
	if err != nil {
		a.fail(c, err)
		return
	}
	out := make([]SessionRow, len(rows))
	for i, r := range rows {
		out[i] = sessionRow(r)
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

type createRequest struct {
	ProdType int                    `json:"prod_type"`
	Setting  climate.ProductSetting `json:"setting"`
}

// handleCreate starts a manual session and runs the create stage.
func (a *api) handleCreate(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	s := a.factory.New(ctx, int(climate.RunTypeManual), req.ProdType)
	if s.IsTerminated() {
		c.JSON(http.StatusBadRequest, gin.H{"error": s.CurrentStatus().Description, "session": sessionDetail(s)})
		return
	}
	if err := s.ManualCreate(ctx, req.Setting); err != nil {
		c.JSON(status(err), gin.H{"error": err.Error(), "session": sessionDetail(s)})
		return
	}
	c.JSON(http.StatusCreated, sessionDetail(s))
}

func (a *api) handleShow(c *gin.Context) {
	s, ok := a.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionDetail(s))
}

func (a *api) handleSessionEvents(c *gin.Context) {
	after, _ := strconv.ParseUint(c.Query("after"), 10, 64)
	rows, err := notify.Since(c.Request.Context(), a.db, c.Param("id"), uint(after), 500)
	if err != nil {
		a.fail(c, err)
		return
	}
	out := make([]notificationEvent, len(rows))
	for i, r := range rows {
		out[i] = toEvent(r)
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func (a *api) handleDisplay(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	s, ok := a.load(c)
	if !ok {
		return
	}
	data, err := s.StartDisplay(c.Request.Context(), req.user())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (a *api) handleCommit(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	s, ok := a.load(c)
	if !ok {
		return
	}
	var report climate.ReportData
	if req.Report != nil {
		r, err := req.Report.Report()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		report = r
	}
	if err := s.FinalizeDisplay(c.Request.Context(), report, req.OverrideApprovals); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionDetail(s))
}

func (a *api) handleFormat(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	s, ok := a.load(c)
	if !ok {
		return
	}
	if _, err := s.ManualFormat(c.Request.Context(), req.user()); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionDetail(s))
}

func (a *api) handleReview(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	ch, valid := parseChannel(req.Channel)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel must be NWWS or NWR"})
		return
	}
	s, ok := a.load(c)
	if !ok {
		return
	}
	set, err := s.StartReview(c.Request.Context(), ch, req.user())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (a *api) handleSend(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	ch, valid := parseChannel(req.Channel)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel must be NWWS or NWR"})
		return
	}
	s, ok := a.load(c)
	if !ok {
		return
	}
	operational := true
	if req.Operational != nil {
		operational = *req.Operational
	}
	c.JSON(http.StatusOK, s.SendAll(c.Request.Context(), ch, operational, req.user()))
}

func (a *api) handleCancel(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	s, ok := a.load(c)
	if !ok {
		return
	}
	code := s.Cancel(c.Request.Context(), req.user(), req.Reason)
	c.JSON(http.StatusOK, gin.H{"status": code.String(), "session": sessionDetail(s)})
}

type productRequest struct {
	Text     string `json:"text" binding:"required"`
	FileName string `json:"file_name"`
	User     string `json:"user"`
}

func (a *api) handleSaveProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ch, valid := parseChannel(c.Param("channel"))
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel must be NWWS or NWR"})
		return
	}
	s, ok := a.load(c)
	if !ok {
		return
	}
	key := c.Param("key")
	cur, found := s.ProdData().Get(ch, key)
	if !found {
		a.fail(c, s.SaveModifiedProduct(c.Request.Context(), ch, key, nil, req.User))
		return
	}
	edited := cur.Clone()
	edited.Text = req.Text
	if req.FileName != "" {
		edited.FileName = req.FileName
	}
	user := req.User
	if user == "" {
		user = "dashboard"
	}
	if err := s.SaveModifiedProduct(c.Request.Context(), ch, key, edited, user); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, edited)
}

func (a *api) handleDeleteProduct(c *gin.Context) {
	ch, valid := parseChannel(c.Param("channel"))
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel must be NWWS or NWR"})
		return
	}
	s, ok := a.load(c)
	if !ok {
		return
	}
	if err := s.DeleteProduct(c.Request.Context(), ch, c.Param("key")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
