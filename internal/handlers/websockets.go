package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"greencure/internal/logger"
	"greencure/internal/models"
	"greencure/internal/service"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsIdleTimeout  = 60 * time.Second
	wsPingEvery    = wsIdleTimeout * 9 / 10
	wsReadLimit    = 4 << 10

	streamDefaultRate = time.Second
	streamMaxRate     = 10 * time.Second
)

// stateFrame is the only message the stream writes.
type stateFrame struct {
	Type string              `json:"type"`
	Data models.MachineState `json:"data"`
}

var upgrader = websocket.Upgrader{
	// served on the local network only
	CheckOrigin: func(*http.Request) bool { return true },
}

// stateStream remembers the last snapshot written so unchanged states are
// not resent on every poll.
type stateStream struct {
	sent bool
	last models.MachineState
}

func (s *stateStream) changed(st models.MachineState) bool {
	return !s.sent || st.Version != s.last.Version || st.Actuators != s.last.Actuators
}

func (s *stateStream) mark(st models.MachineState) {
	s.sent, s.last = true, st
}

// streamSession polls Monitoring for one websocket client.
type streamSession struct {
	conn    *websocket.Conn
	source  service.Monitoring
	log     *logger.Logger
	rate    time.Duration
	history stateStream
}

// streamRate reads ?interval=500ms or, failing that, ?interval_ms=500.
// Values outside (0, 10s] fall back to one second.
func streamRate(c *gin.Context) time.Duration {
	if d, err := time.ParseDuration(c.Query("interval")); err == nil && d > 0 && d <= streamMaxRate {
		return d
	}
	if ms, err := strconv.Atoi(c.Query("interval_ms")); err == nil {
		if d := time.Duration(ms) * time.Millisecond; d > 0 && d <= streamMaxRate {
			return d
		}
	}
	return streamDefaultRate
}

// @Summary      Live machine state
// @Description  Upgrades to a websocket that receives {"type":"state","data":MachineState} on connect and whenever the state or an actuator changes. Poll rate is set with ?interval=500ms or ?interval_ms=500 (max 10s).
// @Tags         machine
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	rate := streamRate(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	s := &streamSession{
		conn:   conn,
		source: h.services.Monitoring,
		log:    h.log.With("remote", c.Request.RemoteAddr),
		rate:   rate,
	}
	s.run(c.Request.Context())
}

func (s *streamSession) run(ctx context.Context) {
	s.conn.SetReadLimit(wsReadLimit)
	s.extendIdle()
	s.conn.SetPongHandler(func(string) error { return s.extendIdle() })

	closed := s.watchPeer()

	if err := s.push(ctx); err != nil {
		s.log.Infow("ws_initial_push_failed", "err", err)
		return
	}

	poll := time.NewTicker(s.rate)
	defer poll.Stop()
	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Infow("ws_ping_failed", "err", err)
				return
			}
		case <-poll.C:
			if err := s.push(ctx); err != nil {
				s.log.Infow("ws_push_failed", "err", err)
				return
			}
		}
	}
}

func (s *streamSession) extendIdle() error {
	return s.conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
}

// watchPeer reads and discards client frames so pongs and close frames are
// processed. The returned channel closes when the peer goes away.
func (s *streamSession) watchPeer() <-chan struct{} {
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				s.log.Debugw("ws_peer_closed", "err", err)
				return
			}
		}
	}()
	return closed
}

func (s *streamSession) push(ctx context.Context) error {
	st, err := s.source.GetState(ctx)
	if err != nil {
		s.log.Errorw("ws_get_state_failed", "err", err)
		return err
	}
	if !s.history.changed(st) {
		return nil
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteJSON(stateFrame{Type: "state", Data: st}); err != nil {
		return err
	}
	s.history.mark(st)
	return nil
}
