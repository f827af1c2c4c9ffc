package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/philopaterwaheed/exeio/internal/supervisor"
	"github.com/philopaterwaheed/exeio/pkg/jsonx"
)

// handler bundles the dependencies every route needs (§4.11).
type handler struct {
	log  *zap.Logger
	sup  *supervisor.Supervisor
	val  *validator.Validate
	info infoResponse

	// listGroup collapses concurrent GET /list calls into a single
	// registry snapshot: bursts of pollers hitting /list at once all
	// wait on the one in-flight Snapshot build instead of each walking
	// the registry under its own lock acquisition.
	listGroup singleflight.Group
}

func newHandler(log *zap.Logger, sup *supervisor.Supervisor, info infoResponse) *handler {
	return &handler{log: log.Named("httpapi"), sup: sup, val: validator.New(), info: info}
}

// fail reports a domain error (validation, not-found, spawn failure) as a
// 200-with-success:false JSON envelope (§7: "400-semantic, but returned as
// 200 with success:false"). Only authentication failures use a non-200
// status (§6/§7: missing/wrong API key -> 401 JSON); gin.Recovery handles
// the truly unexpected panic case separately.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
}

func ok(c *gin.Context, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(http.StatusOK, body)
}

// handleAdd implements POST /add (§4.11).
func (h *handler) handleAdd(c *gin.Context) {
	var req addRequest
	if err := jsonx.ParseStrictJSONBody(c.Request, &req); err != nil {
		fail(c, err)
		return
	}
	if err := h.val.Struct(req); err != nil {
		fail(c, err)
		return
	}
	if req.Periodic && req.PeriodSeconds <= 0 {
		fail(c, errors.New("periodic processes require period_seconds > 0"))
		return
	}

	def := req.toDefinition()
	if err := h.sup.Add(def, req.SaveForNextRun); err != nil {
		fail(c, err)
		return
	}

	ok(c, gin.H{"id": def.ID})
}

// withID runs do with the :id path parameter and writes the envelope; it is
// shared by the restart, stop, remove and clear-log routes.
func (h *handler) withID(c *gin.Context, do func(id string) error) {
	id := c.Param("id")
	if err := do(id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *handler) handleRestart(c *gin.Context) { h.withID(c, h.sup.Restart) }
func (h *handler) handleStop(c *gin.Context)    { h.withID(c, h.sup.Stop) }
func (h *handler) handleRemove(c *gin.Context)  { h.withID(c, h.sup.Remove) }
func (h *handler) handleClearLog(c *gin.Context) { h.withID(c, h.sup.ClearLog) }

func (h *handler) handleRestartAll(c *gin.Context) {
	h.sup.RestartAll()
	ok(c, nil)
}

func (h *handler) handleStopAll(c *gin.Context) {
	h.sup.StopAll()
	ok(c, nil)
}

func (h *handler) handleInput(c *gin.Context) {
	id := c.Param("id")
	var req inputRequest
	if err := jsonx.ParseStrictJSONBody(c.Request, &req); err != nil {
		fail(c, err)
		return
	}
	if err := h.val.Struct(req); err != nil {
		fail(c, err)
		return
	}
	if err := h.sup.Input(id, req.Input); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *handler) handleList(c *gin.Context) {
	res, _, _ := h.listGroup.Do("list", func() (interface{}, error) {
		return h.sup.List(), nil
	})
	snaps := res.([]supervisor.Snapshot)

	views := make([]processView, 0, len(snaps))
	for _, s := range snaps {
		views = append(views, newProcessView(s))
	}
	ok(c, gin.H{"processes": views})
}

func (h *handler) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.info)
}

func (h *handler) handleLogs(c *gin.Context) {
	id := c.Param("id")
	page := queryIntDefault(c, "page", 1)
	pageSize := queryIntDefault(c, "page_size", 50)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	lines, total, err := h.sup.Logs(id, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, gin.H{"logs": logsResponse{Lines: lines, TotalLines: total, Page: page, PageSize: pageSize}})
}

func queryIntDefault(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// shutdownFunc is invoked by handleShutdown once the HTTP response has been
// written, so it can tear down the supervisor and exit the process.
type shutdownFunc func()

func (h *handler) handleShutdown(trigger shutdownFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok(c, nil)
		c.Writer.Flush()
		go trigger()
	}
}
