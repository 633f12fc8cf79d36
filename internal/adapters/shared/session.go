package shared

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/straddle-io/straddle/internal/observability"
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 5 * time.Second
	defaultIdleWarn     = 10 * time.Second
	reconnectInitial    = 500 * time.Millisecond
	reconnectMax        = 30 * time.Second
)

// SessionConfig tunes one reconnecting websocket session.
type SessionConfig struct {
	Venue        string
	URL          string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// ControlRate throttles control frames (subscribe/unsubscribe) to the
	// venue's per-connection limit.
	ControlRate  rate.Limit
	ControlBurst int
	// IdleWarn logs an error after this much feed silence without killing
	// the connection.
	IdleWarn time.Duration
	// FrameBuffer bounds the inbound frame channel.
	FrameBuffer int
}

// Session owns at most one live websocket and reconnects transparently:
// the consumer keeps reading Frames() across reconnects, and registered
// subscriptions are replayed onto every fresh socket before frames resume.
// At most one reconnect attempt is ever in flight.
type Session struct {
	cfg    SessionConfig
	ctx    context.Context
	cancel context.CancelFunc

	conn   *websocket.Conn
	connMu sync.RWMutex

	book    *SubscriptionBook
	frames  chan []byte
	reqID   atomic.Uint64
	control *rate.Limiter
	lastMsg atomic.Int64

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}

	reconnects atomic.Int64
}

// NewSession builds a session; Start dials it.
func NewSession(ctx context.Context, cfg SessionConfig, book *SubscriptionBook) *Session {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.IdleWarn <= 0 {
		cfg.IdleWarn = defaultIdleWarn
	}
	if cfg.FrameBuffer <= 0 {
		cfg.FrameBuffer = 1024
	}
	if cfg.ControlRate <= 0 {
		cfg.ControlRate = rate.Every(250 * time.Millisecond)
	}
	if cfg.ControlBurst <= 0 {
		cfg.ControlBurst = 1
	}
	if book == nil {
		book = NewSubscriptionBook()
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	return &Session{
		cfg:     cfg,
		ctx:     sessionCtx,
		cancel:  cancel,
		book:    book,
		frames:  make(chan []byte, cfg.FrameBuffer),
		control: rate.NewLimiter(cfg.ControlRate, cfg.ControlBurst),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the connect loop and waits for the first successful dial.
func (s *Session) Start() error {
	go s.run()
	select {
	case <-s.ready:
		return nil
	case <-time.After(s.cfg.DialTimeout):
		return fmt.Errorf("%s: timeout waiting for websocket connection", s.cfg.Venue)
	case <-s.ctx.Done():
		return fmt.Errorf("%s: session context done: %w", s.cfg.Venue, s.ctx.Err())
	}
}

// Frames returns the inbound frame stream. The channel closes only when the
// session stops permanently.
func (s *Session) Frames() <-chan []byte { return s.frames }

// Book returns the subscription replay book.
func (s *Session) Book() *SubscriptionBook { return s.book }

// NextRequestID returns a monotonic per-session request id.
func (s *Session) NextRequestID() uint64 { return s.reqID.Add(1) }

// Reconnects returns how many times the session re-dialled.
func (s *Session) Reconnects() int64 { return s.reconnects.Load() }

// Stop closes the socket and ends the connect loop.
func (s *Session) Stop() {
	s.cancel()
	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, "shutdown")
		s.conn = nil
	}
	s.connMu.Unlock()
	<-s.done
}

// SendControl writes a control payload (subscribe and friends), paced to the
// venue's control-frame limit.
func (s *Session) SendControl(ctx context.Context, payload []byte) error {
	if err := s.control.Wait(ctx); err != nil {
		return fmt.Errorf("%s: pacing control frame: %w", s.cfg.Venue, err)
	}
	return s.write(ctx, payload)
}

// Send writes a data payload without control pacing.
func (s *Session) Send(ctx context.Context, payload []byte) error {
	return s.write(ctx, payload)
}

func (s *Session) write(ctx context.Context, payload []byte) error {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		return fmt.Errorf("%s: websocket not connected", s.cfg.Venue)
	}
	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("%s: write frame: %w", s.cfg.Venue, err)
	}
	return nil
}

func (s *Session) run() {
	defer close(s.done)
	defer close(s.frames)

	go s.watchdog()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = reconnectInitial
	policy.MaxInterval = reconnectMax

	first := true
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		dialCtx, cancel := context.WithTimeout(s.ctx, s.cfg.DialTimeout)
		conn, _, err := websocket.Dial(dialCtx, s.cfg.URL, nil)
		cancel()
		if err != nil {
			observability.Log().Error("websocket dial failed",
				observability.F("venue", s.cfg.Venue),
				observability.F("error", err.Error()))
			if !s.sleep(policy.NextBackOff()) {
				return
			}
			continue
		}
		conn.SetReadLimit(1 << 22)

		s.connMu.Lock()
		s.conn = conn
		s.connMu.Unlock()
		if first {
			first = false
		} else {
			s.reconnects.Add(1)
			observability.Telemetry().IncCounter("ws_reconnects", 1,
				map[string]string{"venue": s.cfg.Venue})
			observability.Log().Info("websocket reconnected",
				observability.F("venue", s.cfg.Venue),
				observability.F("count", s.reconnects.Load()))
		}
		s.readyOnce.Do(func() { close(s.ready) })
		policy.Reset()

		if err := s.replaySubscriptions(); err != nil {
			observability.Log().Error("resubscribe after reconnect failed",
				observability.F("venue", s.cfg.Venue),
				observability.F("error", err.Error()))
		}

		err = s.readLoop(conn)
		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		if errors.Is(err, context.Canceled) || s.ctx.Err() != nil {
			return
		}
		observability.Log().Warn("websocket read loop ended, reconnecting",
			observability.F("venue", s.cfg.Venue),
			observability.F("error", fmt.Sprint(err)))
		if !s.sleep(policy.NextBackOff()) {
			return
		}
	}
}

func (s *Session) replaySubscriptions() error {
	for _, payload := range s.book.Snapshot() {
		if err := s.SendControl(s.ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(s.ctx)
		if err != nil {
			return err
		}
		s.lastMsg.Store(time.Now().UnixNano())
		select {
		case s.frames <- data:
		case <-s.ctx.Done():
			return context.Canceled
		}
	}
}

func (s *Session) watchdog() {
	ticker := time.NewTicker(s.cfg.IdleWarn)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			last := s.lastMsg.Load()
			if last == 0 {
				continue
			}
			silence := time.Since(time.Unix(0, last))
			if silence >= s.cfg.IdleWarn {
				observability.Telemetry().IncCounter("feed_silent_intervals", 1,
					map[string]string{"venue": s.cfg.Venue})
				observability.Log().Error("feed silent beyond watchdog threshold",
					observability.F("venue", s.cfg.Venue),
					observability.F("silence", silence.String()))
			}
		}
	}
}

func (s *Session) sleep(d time.Duration) bool {
	select {
	case <-s.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
