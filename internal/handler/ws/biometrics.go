package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"DefiGuard/internal/domain/models"
	"DefiGuard/internal/service/capture"
	xhttp "DefiGuard/pkg/http"
	applogger "DefiGuard/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// Frame types accepted on the capture stream.
const (
	FrameKeystroke = "keystroke"
	FrameMouse     = "mouse"
	FrameTiming    = "timing"
	FrameReset     = "reset"
)

type captureFrame struct {
	Type      string                    `json:"type"`
	Keystroke *models.KeystrokePattern  `json:"keystroke,omitempty"`
	Mouse     *models.MouseMovement     `json:"mouse,omitempty"`
	Timing    *models.TransactionTiming `json:"timing,omitempty"`
}

type ackFrame struct {
	Type   string          `json:"type"`
	Counts *capture.Counts `json:"counts,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// BiometricsHandler streams behavioral events from the client into the capture store.
type BiometricsHandler struct {
	store *capture.Store
	l     *applogger.Logger
}

func NewBiometricsHandler(store *capture.Store, l *applogger.Logger) *BiometricsHandler {
	return &BiometricsHandler{store: store, l: l}
}

func (h *BiometricsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/biometrics/:session", h.Stream)
}

// Stream upgrades the connection and acknowledges every frame with the session counts.
func (h *BiometricsHandler) Stream(c echo.Context) error {
	id := c.Param("session")
	if id == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("session is required"))
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("capture upgrade failed", applogger.Error(err))
		return nil
	}
	defer conn.Close()

	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				// WriteControl may run concurrently with the reader's writes
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	h.l.Debug("capture session opened", applogger.String("session", id))
	for {
		var f captureFrame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.l.Warn("capture stream closed", applogger.String("session", id), applogger.Error(err))
			}
			return nil
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		ack := h.apply(id, f)
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ack); err != nil {
			return nil
		}
	}
}

func (h *BiometricsHandler) apply(id string, f captureFrame) ackFrame {
	var counts capture.Counts
	switch {
	case f.Type == FrameKeystroke && f.Keystroke != nil:
		counts = h.store.AddKeystroke(id, *f.Keystroke)
	case f.Type == FrameMouse && f.Mouse != nil:
		counts = h.store.AddMouse(id, *f.Mouse)
	case f.Type == FrameTiming && f.Timing != nil:
		counts = h.store.AddTiming(id, *f.Timing)
	case f.Type == FrameReset:
		h.store.Reset(id)
	default:
		return ackFrame{Type: "error", Error: "unsupported frame " + f.Type}
	}
	return ackFrame{Type: "ack", Counts: &counts}
}
