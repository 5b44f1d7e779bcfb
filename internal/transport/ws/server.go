// Package ws hosts games on the server: each connection gets its own engine,
// ticked by the server and mirrored to the client as periodic snapshots.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"binrush.ai/internal/protocol"
	"binrush.ai/internal/session"
	"binrush.ai/internal/sim/clock"
	"binrush.ai/internal/sim/engine"
	"binrush.ai/internal/sim/tuning"
)

// SessionStarter issues the credential a hosted game later submits with.
type SessionStarter interface {
	StartSession(ctx context.Context) (session.Token, error)
}

type Config struct {
	Sessions SessionStarter
	Tuning   tuning.Tuning
	Clock    clock.Clock
	Rand     clock.Rand
	Events   engine.EventLogger
	Logger   *log.Logger

	// Overrides Tuning.TickInterval when > 0.
	TickInterval time.Duration
}

type Server struct {
	cfg Config
	log *log.Logger

	upgrader websocket.Upgrader

	active      atomic.Int64
	gamesTotal  atomic.Uint64
	movesTotal  atomic.Uint64
	lossesTotal atomic.Uint64
}

func NewServer(cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Rand == nil {
		cfg.Rand = clock.Default{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = cfg.Tuning.TickInterval()
	}
	return &Server{
		cfg: cfg,
		log: cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) ActiveGames() int64 { return s.active.Load() }

// WriteMetrics appends Prometheus lines for hosted games.
func (s *Server) WriteMetrics(w io.Writer) {
	fmt.Fprintf(w, "# HELP binrush_ws_active_games Hosted games currently connected.\n")
	fmt.Fprintf(w, "# TYPE binrush_ws_active_games gauge\n")
	fmt.Fprintf(w, "binrush_ws_active_games %d\n", s.active.Load())

	fmt.Fprintf(w, "# HELP binrush_ws_games_total Hosted games started, resets included.\n")
	fmt.Fprintf(w, "# TYPE binrush_ws_games_total counter\n")
	fmt.Fprintf(w, "binrush_ws_games_total %d\n", s.gamesTotal.Load())

	fmt.Fprintf(w, "# HELP binrush_ws_moves_total Accepted MOVE messages.\n")
	fmt.Fprintf(w, "# TYPE binrush_ws_moves_total counter\n")
	fmt.Fprintf(w, "binrush_ws_moves_total %d\n", s.movesTotal.Load())

	fmt.Fprintf(w, "# HELP binrush_ws_losses_total Hosted games that ended in a loss.\n")
	fmt.Fprintf(w, "# TYPE binrush_ws_losses_total counter\n")
	fmt.Fprintf(w, "binrush_ws_losses_total %d\n", s.lossesTotal.Load())
}

// conn owns one client. Only the reader goroutine touches g.
type conn struct {
	s   *Server
	ws  *websocket.Conn
	out chan []byte
	ctx context.Context

	g *game
}

type game struct {
	eng    *engine.Engine
	cancel context.CancelFunc
	done   chan struct{}
	tick   atomic.Uint64
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		wsConn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer wsConn.Close()

		if !s.handshake(wsConn) {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		c := &conn{s: s, ws: wsConn, out: make(chan []byte, 16), ctx: ctx}
		s.active.Add(1)
		defer s.active.Add(-1)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.writeLoop(cancel)
		}()

		if err := c.startGame(); err != nil {
			s.logf("start game: %v", err)
			c.sendError(protocol.ErrInternal, "could not start game")
			cancel()
		} else {
			c.readLoop(cancel)
		}

		c.stopGame()
		cancel()
		wg.Wait()
	}
}

func (s *Server) handshake(wsConn *websocket.Conn) bool {
	_ = wsConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := wsConn.ReadMessage()
	if err != nil {
		return false
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = wsConn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = wsConn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return false
	}
	return true
}

func (c *conn) writeLoop(cancel context.CancelFunc) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case b := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				cancel()
				return
			}
		}
	}
}

func (c *conn) readLoop(cancel context.CancelFunc) {
	for {
		_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			cancel()
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			c.sendError(protocol.ErrProtoBadRequest, "invalid json")
			continue
		}
		if base.ProtocolVersion != protocol.Version {
			c.sendError(protocol.ErrProtoBadRequest, "bad protocol_version")
			continue
		}
		switch base.Type {
		case protocol.TypeMove:
			var mv protocol.MoveMsg
			if err := json.Unmarshal(msg, &mv); err != nil {
				c.sendError(protocol.ErrProtoBadRequest, "invalid MOVE")
				continue
			}
			cat, ok := engine.ParseCategory(mv.Category)
			if !ok {
				c.sendError(protocol.ErrProtoBadRequest, "unknown category")
				continue
			}
			if c.g.eng.MoveFromSpawnToBin(cat, mv.ItemID) {
				c.s.movesTotal.Add(1)
			}
			c.pushSnapshot(c.g, false)
		case protocol.TypeReset:
			c.stopGame()
			if err := c.startGame(); err != nil {
				c.s.logf("reset game: %v", err)
				c.sendError(protocol.ErrInternal, "could not start game")
				cancel()
				return
			}
		default:
			c.sendError(protocol.ErrProtoBadRequest, "unknown message type")
		}
	}
}

// startGame issues a fresh session, builds its engine and starts ticking.
func (c *conn) startGame() error {
	tok, err := c.s.cfg.Sessions.StartSession(c.ctx)
	if err != nil {
		return err
	}
	opts := []engine.Option{
		engine.WithClock(c.s.cfg.Clock),
		engine.WithRand(c.s.cfg.Rand),
		engine.WithGameID(tok.ID),
	}
	if c.s.cfg.Events != nil {
		opts = append(opts, engine.WithEventLogger(c.s.cfg.Events))
	}
	eng, err := engine.New(c.s.cfg.Tuning, opts...)
	if err != nil {
		return err
	}

	gctx, gcancel := context.WithCancel(c.ctx)
	g := &game{eng: eng, cancel: gcancel, done: make(chan struct{})}
	c.g = g
	c.s.gamesTotal.Add(1)

	c.send(protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       tok.Value,
		StartedAt:       tok.StartedAt.UnixMilli(),
		Config:          eng.Config(),
	})
	c.pushSnapshot(g, true)

	every := uint64(c.s.cfg.Tuning.BroadcastEvery)
	if every == 0 {
		every = 1
	}
	go func() {
		defer close(g.done)
		wasLost := false
		_ = eng.Run(gctx, c.s.cfg.TickInterval, func(n uint64) {
			g.tick.Store(n)
			lost := eng.Lost()
			if lost && !wasLost {
				wasLost = true
				c.s.lossesTotal.Add(1)
				c.pushSnapshot(g, true)
				return
			}
			if n%every == 0 {
				c.pushSnapshot(g, false)
			}
		})
	}()
	return nil
}

func (c *conn) stopGame() {
	if c.g == nil {
		return
	}
	c.g.cancel()
	<-c.g.done
	c.g = nil
}

// pushSnapshot queues the game's state. Routine snapshots are dropped when
// the client lags; must=true blocks until queued or the connection ends.
func (c *conn) pushSnapshot(g *game, must bool) {
	b, err := json.Marshal(protocol.SnapshotMsg{
		Type:            protocol.TypeSnapshot,
		ProtocolVersion: protocol.Version,
		Tick:            g.tick.Load(),
		State:           g.eng.Snapshot(),
	})
	if err != nil {
		return
	}
	if must {
		select {
		case c.out <- b:
		case <-c.ctx.Done():
		}
		return
	}
	select {
	case c.out <- b:
	default:
	}
}

func (c *conn) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.out <- b:
	case <-c.ctx.Done():
	}
}

func (c *conn) sendError(code, message string) {
	c.send(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
