package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/storefront-realtime/internal/channels"
	"github.com/spec-kit/storefront-realtime/internal/domain"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

// State is the lifecycle position of a Session.
type State int32

const (
	StateConnecting State = iota
	StateAuthorized
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorized:
		return "authorized"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ErrUnauthorized is returned by Run when the connection was closed during
// authorization.
var ErrUnauthorized = errors.New("realtime: connection not authorized")

// protocolError is a client mistake reported verbatim in an error frame.
type protocolError string

func (e protocolError) Error() string { return string(e) }

const errRateLimited = protocolError("rate limit exceeded")

const cleanupTimeout = 5 * time.Second

// CommandHandler answers one client command.
type CommandHandler func(ctx context.Context, s *Session, cmd Command) error

// EventHandler turns a group message into a frame; false skips it.
type EventHandler func(s *Session, msg channels.Message) (Frame, bool)

type (
	commandTable map[CommandType]CommandHandler
	eventTable   map[channels.EventName]EventHandler
)

// consumer is the per-connection behaviour of one socket endpoint.
type consumer interface {
	name() string
	// authorize returns the groups to join, or an error to close the
	// connection without joining anything.
	authorize(ctx context.Context, s *Session) ([]string, error)
	// open sends the confirmation and the initial snapshot.
	open(ctx context.Context, s *Session) error
	commands() commandTable
	events() eventTable
	// close runs after the session left its groups.
	close(ctx context.Context, s *Session)
}

// Session drives one websocket connection through
// connecting, authorized, open and closed. Three goroutines serve an open
// session: the caller's goroutine reads and dispatches commands inline, a
// pump renders group messages, and a writer owns every write to the conn.
type Session struct {
	id       string
	user     *domain.User
	conn     Conn
	consumer consumer
	layer    channels.Layer
	logger   *zap.Logger
	opts     Options

	limiter *rate.Limiter
	inbox   chan channels.Message
	outbox  chan []byte
	done    chan struct{}
	state   atomic.Int32

	closeOnce sync.Once
	groups    []string
	commandsT commandTable
	eventsT   eventTable
}

func newSession(conn Conn, user *domain.User, c consumer, layer channels.Layer, logger *zap.Logger, opts Options) *Session {
	s := &Session{
		id:       "ws." + uuid.NewString(),
		user:     user,
		conn:     conn,
		consumer: c,
		layer:    layer,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Limit(opts.CommandRate), opts.CommandBurst),
		inbox:    make(chan channels.Message, opts.SendBuffer),
		outbox:   make(chan []byte, opts.SendBuffer),
		done:     make(chan struct{}),
	}
	s.logger = logger.With(zap.String("consumer", c.name()), zap.String("channel", s.id))
	if user != nil {
		s.logger = s.logger.With(zap.String("user_id", user.ID))
	}
	return s
}

// ChannelName identifies the session inside channel groups.
func (s *Session) ChannelName() string { return s.id }

// User returns the identity the session was opened with; nil if anonymous.
func (s *Session) User() *domain.User { return s.user }

// State reports the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Deliver queues a group message without blocking. A full queue or a
// closed session drops it.
func (s *Session) Deliver(msg channels.Message) bool {
	if s.State() == StateClosed {
		return false
	}
	select {
	case s.inbox <- msg:
		return true
	default:
		return false
	}
}

// Send encodes frame and hands it to the writer. It waits for room in the
// outbox and gives up once the session closes.
func (s *Session) Send(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case s.outbox <- data:
		return nil
	case <-s.done:
		return errSessionClosed
	}
}

var errSessionClosed = errors.New("realtime: session closed")

// Run serves the connection until the client goes away or ctx ends.
func (s *Session) Run(ctx context.Context) error {
	s.state.Store(int32(StateConnecting))

	if s.user == nil {
		s.reject("anonymous connection")
		return ErrUnauthorized
	}
	groups, err := s.consumer.authorize(ctx, s)
	if err != nil {
		s.reject(err.Error())
		return ErrUnauthorized
	}
	s.state.Store(int32(StateAuthorized))

	for _, group := range groups {
		if err := s.layer.GroupAdd(ctx, group, s); err != nil {
			s.logger.Warn("group join failed", zap.String("group", group), zap.Error(err))
			s.leaveGroups()
			s.state.Store(int32(StateClosed))
			_ = s.conn.Close()
			return err
		}
		s.groups = append(s.groups, group)
	}

	s.commandsT = s.consumer.commands()
	s.eventsT = s.consumer.events()
	s.state.Store(int32(StateOpen))
	openConnections.WithLabelValues(s.consumer.name()).Inc()
	defer openConnections.WithLabelValues(s.consumer.name()).Dec()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()
	go func() {
		defer wg.Done()
		s.pumpEvents()
	}()

	stop := context.AfterFunc(ctx, s.terminate)
	defer stop()

	if err := s.consumer.open(ctx, s); err != nil {
		s.logger.Warn("initial snapshot failed", zap.Error(err))
	}
	s.readLoop(ctx)

	s.terminate()
	wg.Wait()

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	s.leaveGroupsCtx(cleanupCtx)
	s.consumer.close(cleanupCtx, s)
	s.logger.Debug("session closed")
	return nil
}

func (s *Session) reject(reason string) {
	s.state.Store(int32(StateClosed))
	rejectedConnections.WithLabelValues(s.consumer.name()).Inc()
	s.logger.Info("connection rejected", zap.String("reason", reason))
	_ = s.conn.Close()
}

// terminate stops the pump and writer and unblocks the reader.
func (s *Session) terminate() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Session) leaveGroups() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	s.leaveGroupsCtx(ctx)
}

func (s *Session) leaveGroupsCtx(ctx context.Context) {
	for _, group := range s.groups {
		if err := s.layer.GroupDiscard(ctx, group, s.id); err != nil {
			s.logger.Warn("group leave failed", zap.String("group", group), zap.Error(err))
		}
	}
	s.groups = nil
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != textMessage {
			continue
		}
		if !s.limiter.Allow() {
			s.replyError(CommandUnknown, errRateLimited)
			continue
		}
		s.dispatch(ctx, data)
	}
}

func (s *Session) dispatch(ctx context.Context, data []byte) {
	cmd, err := DecodeCommand(data)
	if err != nil {
		s.replyError(CommandUnknown, err)
		return
	}
	handler, ok := s.commandsT[cmd.Type]
	if !ok {
		s.replyError(cmd.Type, protocolError("unknown command: "+cmd.Name))
		return
	}
	if err := handler(ctx, s, cmd); err != nil {
		s.replyError(cmd.Type, err)
	}
}

func (s *Session) replyError(cmd CommandType, err error) {
	commandErrors.WithLabelValues(s.consumer.name(), cmd.String()).Inc()
	var protoErr protocolError
	if errors.As(err, &protoErr) {
		_ = s.Send(errorFrame(protoErr.Error()))
		return
	}
	domainErr := apperrors.ToDomainError(err)
	if domainErr.HTTPStatus >= 500 {
		s.logger.Error("command failed", zap.String("command", cmd.String()), zap.Error(err))
	}
	_ = s.Send(errorFrame(domainErr.Message))
}

func (s *Session) pumpEvents() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.inbox:
			handler, ok := s.eventsT[msg.Type]
			if !ok {
				s.logger.Debug("no handler for group event", zap.String("event", string(msg.Type)))
				continue
			}
			frame, ok := handler(s, msg)
			if !ok {
				continue
			}
			if err := s.Send(frame); err != nil {
				return
			}
		}
	}
}

func (s *Session) writeLoop() {
	var ping <-chan time.Time
	if s.opts.PingInterval > 0 {
		ticker := time.NewTicker(s.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	name := s.consumer.name()
	for {
		select {
		case <-s.done:
			return
		case data := <-s.outbox:
			if err := s.conn.WriteMessage(textMessage, data); err != nil {
				s.logger.Debug("write failed", zap.Error(err))
				s.terminate()
				return
			}
			framesSent.WithLabelValues(name).Inc()
		case <-ping:
			if err := s.conn.WriteMessage(pingMessage, nil); err != nil {
				s.terminate()
				return
			}
		}
	}
}

// isOwnEvent reports whether the group message was caused by this
// session's user.
func (s *Session) isOwnEvent(msg channels.Message) bool {
	return s.user != nil && msg.Origin != "" && msg.Origin == s.user.ID
}
