package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tradesim/src/model"
	"tradesim/src/normalizer"
)

var ErrSessionClosed = errors.New("feed session closed")

// TickSink receives normalized ticks.
type TickSink interface {
	Dispatch(tick model.Tick) error
}

// EventHandler receives pushed authority events.
type EventHandler interface {
	HandleGttTriggered(ctx context.Context, data json.RawMessage) error
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type subscription struct {
	Action      string   `json:"action"`
	Instruments []string `json:"instruments"`
}

// Session is one market-data websocket connection shared by every consumer.
// It connects when the first instrument is acquired and disconnects when the
// last one is released.
type Session struct {
	url    string
	header http.Header
	dialer websocket.Dialer
	cfg    Config
	sink   TickSink
	events EventHandler
	logger *logrus.Entry
	now    func() time.Time

	mu           sync.Mutex
	conn         *websocket.Conn
	refs         map[string]int
	closed       bool
	reconnecting bool
}

func NewSession(cfg Config, sink TickSink, events EventHandler, logger *logrus.Entry) *Session {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = time.Second
	}
	if cfg.ReconnectMaxWait < cfg.ReconnectWait {
		cfg.ReconnectMaxWait = cfg.ReconnectWait
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 5 * time.Second
	}
	return &Session{
		url:    cfg.WSURL,
		header: http.Header{},
		dialer: websocket.Dialer{
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: true,
			Proxy:             http.ProxyFromEnvironment,
		},
		cfg:    cfg,
		sink:   sink,
		events: events,
		logger: logger.WithField("feed", cfg.WSURL),
		now:    time.Now,
		refs:   make(map[string]int),
	}
}

// Acquire subscribes to an instrument, connecting first if needed. When the
// dial fails the subscription is kept and the session keeps redialing with
// backoff; the dial error is still returned.
func (s *Session) Acquire(ctx context.Context, instrument string) error {
	if instrument == "" {
		return errors.New("instrument is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.conn == nil && s.reconnecting {
		// the redial loop subscribes everything held in refs
		s.refs[instrument]++
		return nil
	}
	if s.conn == nil {
		conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
		if err != nil {
			s.refs[instrument]++
			s.startReconnectLocked()
			return fmt.Errorf("ws dial failed: %w", err)
		}
		s.conn = conn
		go s.readLoop(conn)
		s.logger.Info("feed connected")

		// resubscribe what survived a dropped connection
		if len(s.refs) > 0 {
			if err := s.writeLocked(subscription{Action: "subscribe", Instruments: s.instrumentsLocked()}); err != nil {
				return err
			}
		}
	}

	s.refs[instrument]++
	if s.refs[instrument] > 1 {
		return nil
	}
	if err := s.writeLocked(subscription{Action: "subscribe", Instruments: []string{instrument}}); err != nil {
		s.refs[instrument]--
		if s.refs[instrument] == 0 {
			delete(s.refs, instrument)
		}
		return err
	}
	return nil
}

// Release drops one subscriber of an instrument and disconnects after the last.
func (s *Session) Release(instrument string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.refs[instrument]
	if !ok {
		return nil
	}
	if n > 1 {
		s.refs[instrument] = n - 1
		return nil
	}
	delete(s.refs, instrument)

	var err error
	if s.conn != nil {
		err = s.writeLocked(subscription{Action: "unsubscribe", Instruments: []string{instrument}})
	}
	if len(s.refs) == 0 {
		s.disconnectLocked()
	}
	return err
}

// Close drops every subscription and disconnects. The session cannot be reused.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.refs = make(map[string]int)
	s.disconnectLocked()
	return nil
}

// Run acquires the instruments and holds them until ctx is done. Dial
// failures are logged and retried in the background.
func (s *Session) Run(ctx context.Context, instruments []string) error {
	for _, inst := range instruments {
		if err := s.Acquire(ctx, inst); err != nil {
			if errors.Is(err, ErrSessionClosed) {
				return err
			}
			s.logger.WithError(err).WithField("instrument", inst).Warn("feed subscribe failed")
		}
	}
	<-ctx.Done()
	return s.Close()
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *Session) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instrumentsLocked()
}

func (s *Session) instrumentsLocked() []string {
	out := make([]string, 0, len(s.refs))
	for inst := range s.refs {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

func (s *Session) writeLocked(v interface{}) error {
	if s.conn == nil {
		return errors.New("feed not connected")
	}
	_ = s.conn.SetWriteDeadline(s.now().Add(s.cfg.WriteTimeout))
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("ws write failed: %w", err)
	}
	return nil
}

func (s *Session) disconnectLocked() {
	if s.conn == nil {
		return
	}
	conn := s.conn
	s.conn = nil
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, s.now().Add(s.cfg.WriteTimeout))
	_ = conn.Close()
	s.logger.Info("feed disconnected")
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			dropped := s.conn == conn
			if dropped {
				s.conn = nil
				if len(s.refs) > 0 && !s.closed {
					s.startReconnectLocked()
				}
			}
			s.mu.Unlock()

			if dropped {
				s.logger.WithError(err).Warn("feed connection lost")
				_ = conn.Close()
			}
			return
		}
		s.HandleFrame(msg)
	}
}

func (s *Session) startReconnectLocked() {
	if s.reconnecting {
		return
	}
	s.reconnecting = true
	go s.reconnect()
}

// reconnect redials with backoff while there are subscribers.
func (s *Session) reconnect() {
	wait := s.cfg.ReconnectWait
	for {
		time.Sleep(wait)

		s.mu.Lock()
		if s.closed || len(s.refs) == 0 || s.conn != nil {
			s.reconnecting = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HandshakeTimeout+time.Second)
		conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
		cancel()
		if err != nil {
			s.logger.WithError(err).Warn("feed reconnect failed")
			wait *= 2
			if wait > s.cfg.ReconnectMaxWait {
				wait = s.cfg.ReconnectMaxWait
			}
			continue
		}

		s.mu.Lock()
		s.reconnecting = false
		if s.closed || len(s.refs) == 0 || s.conn != nil {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conn = conn
		go s.readLoop(conn)
		err = s.writeLocked(subscription{Action: "subscribe", Instruments: s.instrumentsLocked()})
		s.mu.Unlock()
		if err != nil {
			s.logger.WithError(err).Warn("feed resubscribe failed")
		} else {
			s.logger.Info("feed reconnected")
		}
		return
	}
}

// HandleFrame routes one inbound frame. Event envelopes go to the event
// handler; anything else is read as one tick or an array of ticks. Frames
// that parse to nothing are dropped.
func (s *Session) HandleFrame(msg []byte) {
	payload := bytes.TrimSpace(msg)
	if len(payload) == 0 {
		return
	}

	if payload[0] == '{' {
		var env envelope
		if err := json.Unmarshal(payload, &env); err == nil && env.Event != "" {
			switch env.Event {
			case EventGttTriggered:
				if s.events == nil {
					return
				}
				ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PushTimeout)
				defer cancel()
				if err := s.events.HandleGttTriggered(ctx, env.Data); err != nil {
					s.logger.WithError(err).Warn("gtt-triggered handling failed")
				}
				return
			case "tick", "ticks":
				payload = env.Data
			default:
				s.logger.WithField("event", env.Event).Debug("ignoring feed event")
				return
			}
		}
	}

	for _, tick := range normalizer.ParseTicks(payload, s.now().UTC()) {
		if err := s.sink.Dispatch(tick); err != nil {
			s.logger.WithError(err).WithField("instrument", tick.TokenOrSymbol).Debug("tick not dispatched")
		}
	}
}
