package vitals

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/internal/vitals"
	"github.com/jwalitptl/phms-engine/pkg/httputil"
)

const (
	exportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	streamBuffer = 16
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	writeWait    = 10 * time.Second
)

// Engine is the part of the vitals engine the API exposes.
type Engine interface {
	History() []model.VitalSample
	Thresholds() model.ThresholdValues
	SaveThresholds(ctx context.Context, t model.ThresholdValues) error
	Subscribe(buffer int) (<-chan model.VitalSample, func())
	EmitTestAlert(ctx context.Context, vitalName string, value float64) (model.VitalAlert, error)
}

type Handler struct {
	engine   Engine
	loc      *time.Location
	upgrader websocket.Upgrader
}

func NewHandler(engine Engine, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		engine: engine,
		loc:    loc,
		upgrader: websocket.Upgrader{
			// Auth is token based, so any origin may connect.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	v := r.Group("/vitals")
	{
		v.GET("/thresholds", h.GetThresholds)
		v.PUT("/thresholds", h.UpdateThresholds)
		v.GET("/history", h.GetHistory)
		v.GET("/history/export", h.ExportHistory)
		v.GET("/stream", h.Stream)
		v.POST("/alerts/test", h.TestAlert)
	}
}

func (h *Handler) GetThresholds(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.engine.Thresholds())
}

func (h *Handler) UpdateThresholds(c *gin.Context) {
	var req model.ThresholdValues
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.engine.SaveThresholds(c.Request.Context(), req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, h.engine.Thresholds())
}

func (h *Handler) GetHistory(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{
		"samples":    h.engine.History(),
		"thresholds": h.engine.Thresholds(),
	})
}

func (h *Handler) ExportHistory(c *gin.Context) {
	data, err := vitals.ExportXLSX(h.engine.History(), h.engine.Thresholds(), h.loc)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	filename := "vitals-" + time.Now().In(h.loc).Format("20060102-150405") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, exportContentType, data)
}

type testAlertRequest struct {
	VitalName string  `json:"vitalName"`
	Value     float64 `json:"value"`
}

func (h *Handler) TestAlert(c *gin.Context) {
	var req testAlertRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.RespondWithMessage(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	alert, err := h.engine.EmitTestAlert(c.Request.Context(), req.VitalName, req.Value)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httputil.Response{Success: true, Data: alert})
}

// Stream upgrades to a websocket, sends the current history and then one JSON
// message per new sample.
func (h *Handler) Stream(c *gin.Context) {
	log := zerolog.Ctx(c.Request.Context())

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	samples, unsubscribe := h.engine.Subscribe(streamBuffer)
	defer unsubscribe()

	closed := make(chan struct{})
	go readPump(conn, closed)

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(streamMessage{Type: "history", Samples: h.engine.History()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case s, ok := <-samples:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "engine stopped"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(streamMessage{Type: "sample", Sample: &s}); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

type streamMessage struct {
	Type    string              `json:"type"`
	Sample  *model.VitalSample  `json:"sample,omitempty"`
	Samples []model.VitalSample `json:"samples,omitempty"`
}

// readPump drains client frames so pongs and close frames are processed.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
