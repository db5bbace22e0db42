package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"retroboard/internal/retro"
)

// Server is the retro state synchronizer. It applies client events to the
// stored aggregate and fans the result out to every connection, tagged with
// the retro id.
type Server struct {
	store    retro.Gateway
	catalog  retro.Catalog
	hub      *Hub
	presence *Presence
	locks    *keyedMutex
	logger   *log.Logger
}

type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCatalog enables the retro listing event.
func WithCatalog(c retro.Catalog) Option {
	return func(s *Server) {
		s.catalog = c
	}
}

func NewServer(store retro.Gateway, opts ...Option) *Server {
	s := &Server{
		store:    store,
		hub:      NewHub(),
		presence: NewPresence(),
		locks:    newKeyedMutex(),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "realtime")
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Presence() *Presence { return s.presence }

// Connect registers a freshly opened connection authenticated as email.
// Events that act on behalf of a person must name that email.
func (s *Server) Connect(p Peer, email string) {
	s.hub.Register(p, strings.ToLower(strings.TrimSpace(email)))
	connectionsGauge.Set(float64(s.hub.Len()))
	s.logger.Debug("connected", "conn", p.ID(), "email", email)
}

// Disconnect drops the connection and tells everyone else about the
// shrunken presence map of its retro.
func (s *Server) Disconnect(connID string) {
	s.hub.Unregister(connID)
	connectionsGauge.Set(float64(s.hub.Len()))
	if ev, ok := s.presence.Leave(connID); ok {
		presenceGauge.Set(float64(s.presence.Len()))
		s.broadcastUsers(ev.RetroID, ev.Users, connID)
	}
	s.logger.Debug("disconnected", "conn", connID)
}

type route struct {
	acked bool
	run   func(s *Server, ctx context.Context, origin string, raw json.RawMessage) (*retro.Retro, error)
}

func bind[T any](raw json.RawMessage) (T, error) {
	var in T
	if len(raw) == 0 {
		return in, rejected("Missing payload")
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, rejected("Malformed payload")
	}
	return in, nil
}

func on[T any](fn func(*Server, context.Context, string, T) error) route {
	return route{run: func(s *Server, ctx context.Context, origin string, raw json.RawMessage) (*retro.Retro, error) {
		in, err := bind[T](raw)
		if err != nil {
			return nil, err
		}
		return nil, fn(s, ctx, origin, in)
	}}
}

func acked(r route) route {
	r.acked = true
	return r
}

var routes = map[string]route{
	EventChangeRetroStage: {acked: true, run: func(s *Server, ctx context.Context, origin string, raw json.RawMessage) (*retro.Retro, error) {
		in, err := bind[StageInput](raw)
		if err != nil {
			return nil, err
		}
		return s.ChangeStage(ctx, origin, in)
	}},
	EventIdea:             on((*Server).AddIdea),
	EventRemoveIdea:       on((*Server).RemoveIdea),
	EventUpdateIdea:       on((*Server).UpdateIdea),
	EventInitPositions:    acked(on((*Server).InitPositions)),
	EventUpdatePosition:   on((*Server).UpdatePosition),
	EventInitGroups:       acked(on((*Server).InitGroups)),
	EventUpdateGroupName:  on((*Server).UpdateGroupName),
	EventVoteAdd:          on((*Server).AddVote),
	EventVoteSubstract:    on((*Server).RemoveVote),
	EventSendActionItem:   on((*Server).SendActionItem),
	EventRemoveActionItem: on((*Server).RemoveActionItem),
	EventUpdateActionItem: on((*Server).UpdateActionItem),
	EventUser:             on((*Server).Join),
	EventListRetros:       on((*Server).ListRetros),
}

// Handle runs one inbound frame to completion. Acknowledged events always
// get an ack; fire-and-forget events get one only when the client sent a
// request id, and otherwise fail silently.
func (s *Server) Handle(ctx context.Context, origin string, f Frame) {
	r, ok := routes[f.Type]
	if !ok {
		s.sendError(origin, f.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
		eventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return
	}

	start := time.Now()
	agg, err := s.run(ctx, origin, f, r)
	eventDuration.WithLabelValues(f.Type).Observe(time.Since(start).Seconds())
	eventsTotal.WithLabelValues(f.Type, outcomeOf(err)).Inc()

	if err != nil {
		s.logDrop(origin, f.Type, err)
	}
	if r.acked || f.RequestID != "" {
		s.ack(origin, f.RequestID, agg, err)
	}
}

func (s *Server) run(ctx context.Context, origin string, f Frame, r route) (agg *retro.Retro, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("event handler panicked", "event", f.Type, "conn", origin, "panic", rec)
			agg, err = nil, &eventError{kind: ErrPersistence, msg: "Internal error", err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	return r.run(s, ctx, origin, f.Payload)
}

func (s *Server) logDrop(origin, event string, err error) {
	var cause error
	var ee *eventError
	if errors.As(err, &ee) {
		cause = ee.err
	}
	if errors.Is(err, ErrPersistence) {
		s.logger.Warn("event failed", "event", event, "conn", origin, "err", err, "cause", cause)
		return
	}
	s.logger.Debug("event dropped", "event", event, "conn", origin, "reason", err)
}

// mutate runs fn on a freshly fetched aggregate while holding the retro's
// lock, then publishes the aggregate when fn succeeds.
func (s *Server) mutate(ctx context.Context, origin, retroID string, fn func(*retro.Retro) error) (*retro.Retro, error) {
	retroID = strings.TrimSpace(retroID)
	if retroID == "" {
		return nil, errRetroNotFound
	}
	unlock := s.locks.Lock(retroID)
	defer unlock()

	agg, err := s.store.FetchAggregate(ctx, retroID)
	if err != nil {
		return nil, storeErr(err, "Retro not found")
	}
	if err := fn(agg); err != nil {
		return nil, err
	}
	s.publish(origin, retroID, agg)
	return agg, nil
}

// publish sends the whole aggregate, tagged with its retro id, to the
// originator and then to every other connection.
func (s *Server) publish(origin, retroID string, agg *retro.Retro) {
	agg.Normalize()
	f, err := newFrame(EventRetroUpdated, "", RetroUpdated{RetroID: retroID, Retro: agg})
	if err != nil {
		s.logger.Error("encode aggregate", "retro", retroID, "err", err)
		return
	}
	s.hub.Send(origin, f)
	s.hub.Broadcast(f, origin)
}

func (s *Server) ack(origin, requestID string, agg *retro.Retro, err error) {
	a := Ack{Status: statusOf(err), Retro: agg}
	if err != nil {
		a.Error = err.Error()
	}
	f, ferr := newFrame(EventAck, requestID, a)
	if ferr != nil {
		s.logger.Error("encode ack", "conn", origin, "err", ferr)
		return
	}
	s.hub.Send(origin, f)
}

func (s *Server) sendUsers(connID, retroID string, users map[string]UserData) {
	f, err := newFrame(EventUsers, "", UsersSnapshot{RetroID: retroID, Users: users})
	if err != nil {
		return
	}
	s.hub.Send(connID, f)
}

func (s *Server) broadcastUsers(retroID string, users map[string]UserData, except string) {
	f, err := newFrame(EventUsers, "", UsersSnapshot{RetroID: retroID, Users: users})
	if err != nil {
		return
	}
	s.hub.Broadcast(f, except)
}

func (s *Server) sendError(origin, requestID, code, msg string) {
	f, err := newFrame(EventError, requestID, ErrorPayload{Code: code, Message: msg})
	if err != nil {
		return
	}
	s.hub.Send(origin, f)
}

// caller resolves the email an event acts for. It is always the
// connection's verified email; a payload naming anyone else is rejected and
// an empty one means the connection's own.
func (s *Server) caller(origin, claimed string) (string, error) {
	email, ok := s.hub.Email(origin)
	if !ok {
		return "", rejected("Connection has no verified identity")
	}
	if claimed = strings.TrimSpace(claimed); claimed != "" && !strings.EqualFold(claimed, email) {
		return "", rejected("Email does not match the connection identity")
	}
	return email, nil
}

// ReportBadFrame answers a frame that could not be decoded at all.
func (s *Server) ReportBadFrame(origin string) {
	eventsTotal.WithLabelValues("unknown", "rejected").Inc()
	s.sendError(origin, "", "INVALID_ARGUMENT", "invalid frame payload")
}
