package signaling

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wojtas-j/cam-relay/internal/auth"
	"github.com/wojtas-j/cam-relay/internal/config"
	"github.com/wojtas-j/cam-relay/internal/metrics"
	"github.com/wojtas-j/cam-relay/internal/origin"
)

const wsWriteWait = 1 * time.Second

// Close reasons sent with a 1008 (policy violation) on admission failure.
// These are part of the client contract; clients match on the exact strings.
const (
	closeReasonUnauthorized  = "Unauthorized"
	closeReasonReceiverLimit = "Receiver limit reached"
	closeReasonPeerLimit     = "User/Admin limit reached"
)

// Server owns the signaling WebSocket endpoint: it authenticates the
// handshake, admits the session into the registry, and runs the per-frame
// read loop until the peer disconnects.
type Server struct {
	log           *slog.Logger
	authenticator auth.Authenticator
	registry      *Registry
	router        *Router
	metrics       *metrics.Metrics
	upgrader      websocket.Upgrader

	idleTimeout     time.Duration
	pingInterval    time.Duration
	maxMessageBytes int64
}

func NewServer(cfg config.Config, log *slog.Logger, registry *Registry, router *Router, m *metrics.Metrics) (*Server, error) {
	authenticator, err := auth.NewAuthenticator(cfg)
	if err != nil {
		return nil, err
	}

	return &Server{
		log:           log,
		authenticator: authenticator,
		registry:      registry,
		router:        router,
		metrics:       m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return origin.CheckRequest(r, cfg.AllowedOrigins)
			},
		},
		idleTimeout:     cfg.SignalingWSIdleTimeout,
		pingInterval:    cfg.SignalingWSPingInterval,
		maxMessageBytes: cfg.MaxSignalingMessageBytes,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Disallowed origins are rejected by the upgrader with a 403 before any
	// WebSocket frame is exchanged.
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	principal, err := s.authenticator.Authenticate(r)
	if err != nil {
		s.log.Warn("signaling handshake rejected", "remote", r.RemoteAddr, "err", err)
		s.metrics.Admissions.WithLabelValues(metrics.AdmissionUnauthorized).Inc()
		closeAndDiscard(conn, websocket.ClosePolicyViolation, closeReasonUnauthorized)
		return
	}

	sess := newSession(conn, s.log.With(
		"conn_id", uuid.NewString(),
		"username", principal.Username,
	))

	displaced, err := s.registry.Register(principal, sess)
	if err != nil {
		reason := closeReasonPeerLimit
		outcome := metrics.AdmissionPeerLimit
		if errors.Is(err, ErrReceiverLimit) {
			reason = closeReasonReceiverLimit
			outcome = metrics.AdmissionReceiverLimit
		}
		sess.log.Warn("signaling admission rejected", "reason", reason)
		s.metrics.Admissions.WithLabelValues(outcome).Inc()
		sess.closeWith(websocket.ClosePolicyViolation, reason)
		return
	}
	if old, ok := displaced.(*session); ok {
		old.log.Info("session replaced by new connection")
		old.closeWith(websocket.CloseNormalClosure, "session replaced")
	}

	s.metrics.Admissions.WithLabelValues(metrics.AdmissionAccepted).Inc()
	s.metrics.ActiveSessions.Set(float64(s.registry.Len()))
	sess.log.Info("signaling session registered", "receiver", principal.IsReceiver())

	defer func() {
		if s.registry.Unregister(principal.Username, sess) {
			sess.log.Info("signaling session unregistered")
		}
		s.metrics.ActiveSessions.Set(float64(s.registry.Len()))
		sess.close()
	}()

	go s.keepalive(sess)
	s.readLoop(sess, principal)
}

func (s *Server) readLoop(sess *session, principal auth.Principal) {
	conn := sess.conn
	conn.SetReadLimit(s.maxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.log.Debug("signaling read", "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			s.drop(sess, metrics.DropMalformed, "binary frame")
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		s.handleFrame(sess, principal, data)
	}
}

// handleFrame processes one inbound frame. Invalid traffic is dropped without
// feedback to the sender; the connection stays open regardless of how often
// that happens. A panic in frame handling must not take the process down.
func (s *Server) handleFrame(sess *session, principal auth.Principal, data []byte) {
	defer func() {
		if v := recover(); v != nil {
			sess.log.Error("panic handling signaling frame", "panic", v)
		}
	}()

	msg, err := parseMessage(data)
	if err != nil {
		if errors.Is(err, errUnknownType) {
			s.drop(sess, metrics.DropUnknownType, err.Error())
		} else {
			s.drop(sess, metrics.DropMalformed, "malformed frame")
		}
		return
	}

	if msg.Type == messageTypePing {
		if err := sess.WriteText(pongFrame); err != nil {
			sess.log.Warn("write pong", "err", err)
			s.metrics.ForwardErrors.Inc()
		}
		return
	}

	if msg.From == "" || msg.To == "" {
		s.drop(sess, metrics.DropMalformed, "missing from/to")
		return
	}
	if msg.From != principal.Username {
		sess.log.Warn("impersonation attempt dropped", "claimed_from", msg.From, "to", msg.To)
		s.metrics.MessagesDropped.WithLabelValues(metrics.DropImpersonation).Inc()
		return
	}

	s.router.Route(msg)
}

func (s *Server) drop(sess *session, reason, detail string) {
	sess.log.Debug("dropping inbound frame", "reason", reason, "detail", detail)
	s.metrics.MessagesDropped.WithLabelValues(reason).Inc()
}

// keepalive sends protocol-level pings until the session closes. A failed
// ping means the transport is gone; the read loop will observe it shortly.
func (s *Server) keepalive(sess *session) {
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-sess.done:
			return
		case <-t.C:
			if err := sess.ping(); err != nil {
				return
			}
		}
	}
}

// session is the server side of one signaling WebSocket connection. It
// implements Handle; writes from the router, the roster broadcaster, and the
// keepalive pinger are serialized through writeMu.
type session struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

func newSession(conn *websocket.Conn, log *slog.Logger) *session {
	return &session{
		conn: conn,
		log:  log,
		done: make(chan struct{}),
	}
}

func (s *session) WriteText(data []byte) error {
	if s.closed.Load() {
		return net.ErrClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) Open() bool {
	return !s.closed.Load()
}

func (s *session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// closeWith sends a close frame with the given code and reason, then tears
// down the connection.
func (s *session) closeWith(code int, reason string) {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
	s.writeMu.Unlock()
	s.close()
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		_ = s.conn.Close()
	})
}

// closeAndDiscard closes an unadmitted connection that never became a
// session.
func closeAndDiscard(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
	_ = conn.Close()
}
