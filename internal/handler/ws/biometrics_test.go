package ws

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DefiGuard/internal/domain/models"
	"DefiGuard/internal/service/capture"
	applogger "DefiGuard/pkg/logger"
)

func dial(t *testing.T, store *capture.Store, session string) *websocket.Conn {
	t.Helper()
	e := echo.New()
	NewBiometricsHandler(store, applogger.Nop()).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/biometrics/" + session
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestStream_BuffersFrames(t *testing.T) {
	store := capture.NewStore(applogger.Nop())
	conn := dial(t, store, "s1")

	frames := []captureFrame{
		{Type: FrameKeystroke, Keystroke: &models.KeystrokePattern{Key: "a", PressTime: 0, ReleaseTime: 90}},
		{Type: FrameMouse, Mouse: &models.MouseMovement{X: 3, Y: 4, Velocity: 380}},
		{Type: FrameTiming, Timing: &models.TransactionTiming{ConfirmTime: 700, TotalDuration: 1000}},
	}
	var ack ackFrame
	for _, f := range frames {
		require.NoError(t, conn.WriteJSON(f))
		require.NoError(t, conn.ReadJSON(&ack))
		assert.Equal(t, "ack", ack.Type)
	}
	assert.Equal(t, capture.Counts{Keystrokes: 1, Mouse: 1, Timing: 1}, *ack.Counts)

	s, ok := store.Sample("s1")
	require.True(t, ok)
	assert.Equal(t, "a", s.KeystrokePatterns[0].Key)
	assert.Equal(t, 380.0, s.MouseMovements[0].Velocity)
}

func TestStream_RejectsUnknownFrame(t *testing.T) {
	store := capture.NewStore(applogger.Nop())
	conn := dial(t, store, "s1")

	require.NoError(t, conn.WriteJSON(captureFrame{Type: "scroll"}))
	var ack ackFrame
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "error", ack.Type)

	// a keystroke frame without payload is rejected too
	require.NoError(t, conn.WriteJSON(captureFrame{Type: FrameKeystroke}))
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "error", ack.Type)

	_, ok := store.Sample("s1")
	assert.False(t, ok)
}

func TestStream_Reset(t *testing.T) {
	store := capture.NewStore(applogger.Nop())
	store.AddKeystroke("s1", models.KeystrokePattern{Key: "x"})
	conn := dial(t, store, "s1")

	require.NoError(t, conn.WriteJSON(captureFrame{Type: FrameReset}))
	var ack ackFrame
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "ack", ack.Type)

	_, ok := store.Sample("s1")
	assert.False(t, ok)
}
