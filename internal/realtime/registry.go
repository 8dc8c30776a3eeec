package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/stemflow/stemflow/pkg/metrics"
	"go.uber.org/zap"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSlowConsumer  = errors.New("session send buffer full")
)

// Session is one live authenticated socket.
type Session interface {
	ID() string
	UserID() string
	// Send queues a frame for delivery without blocking.
	Send(frame Frame) error
	Close()
}

// Notifier is the delivery surface used by the pipeline. Delivery is best effort:
// an offline user misses the event.
type Notifier interface {
	SendToUser(userID, event string, payload Payload)
	SendToRoom(room, event string, payload Payload)
	BroadcastAll(event string, payload Payload)
	JoinRoom(userID, room string)
}

// Registry holds at most one live session per user and the room memberships of each session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	// room -> session id -> session
	rooms map[string]map[string]Session
	now   func() time.Time
	log   *zap.SugaredLogger
}

var _ Notifier = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]Session),
		rooms:    make(map[string]map[string]Session),
		now:      time.Now,
		log:      zap.S().Named("registry"),
	}
}

// Register makes s the live session of its user and joins it to the user room.
// A previous session of the same user is told to log out and closed.
func (r *Registry) Register(s Session) {
	r.mu.Lock()
	previous, found := r.sessions[s.UserID()]
	if found {
		r.leaveAllLocked(previous)
	}
	r.sessions[s.UserID()] = s
	r.joinLocked(UserRoom(s.UserID()), s)
	count := len(r.sessions)
	r.mu.Unlock()

	metrics.UpdateSocketConnectionsMetric(count)

	if found && previous.ID() != s.ID() {
		r.log.Infow("evicting previous connection", "user_id", s.UserID(), "connection_id", previous.ID())
		r.deliver(previous, EventForceLogout, Payload{"reason": "connected from another session"})
		previous.Close()
	}
}

// Unregister removes s. The user entry is only dropped when s is still the live session,
// so a late disconnect from an evicted connection never removes its replacement.
func (r *Registry) Unregister(s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveAllLocked(s)

	current, found := r.sessions[s.UserID()]
	if !found || current.ID() != s.ID() {
		return false
	}
	delete(r.sessions, s.UserID())
	metrics.UpdateSocketConnectionsMetric(len(r.sessions))
	return true
}

func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) BroadcastOnlineCount() {
	r.BroadcastAll(EventOnlineUsers, Payload{"count": r.OnlineCount()})
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, found := r.sessions[userID]
	return found
}

func (r *Registry) SendToUser(userID, event string, payload Payload) {
	r.mu.RLock()
	s, found := r.sessions[userID]
	r.mu.RUnlock()

	if !found {
		r.log.Debugw("user has no live connection, dropping event", "user_id", userID, "event", event)
		metrics.IncreaseSocketEventMetric(event, false)
		return
	}
	r.deliver(s, event, payload)
}

func (r *Registry) SendToRoom(room, event string, payload Payload) {
	r.mu.RLock()
	members := make([]Session, 0, len(r.rooms[room]))
	for _, s := range r.rooms[room] {
		members = append(members, s)
	}
	r.mu.RUnlock()

	if len(members) == 0 {
		r.log.Debugw("room is empty, dropping event", "room", room, "event", event)
		metrics.IncreaseSocketEventMetric(event, false)
		return
	}

	stamped := r.stamp(event, payload)
	for _, s := range members {
		r.send(s, event, stamped)
	}
}

func (r *Registry) BroadcastAll(event string, payload Payload) {
	r.mu.RLock()
	all := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	stamped := r.stamp(event, payload)
	for _, s := range all {
		r.send(s, event, stamped)
	}
}

func (r *Registry) JoinRoom(userID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, found := r.sessions[userID]
	if !found {
		r.log.Debugw("user has no live connection, not joining room", "user_id", userID, "room", room)
		return
	}
	r.joinLocked(room, s)
}

// ForceLogout notifies the user and then drops its connection.
func (r *Registry) ForceLogout(userID, reason string) {
	r.mu.Lock()
	s, found := r.sessions[userID]
	if found {
		r.leaveAllLocked(s)
		delete(r.sessions, userID)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !found {
		return
	}
	metrics.UpdateSocketConnectionsMetric(count)
	r.deliver(s, EventForceLogout, Payload{"reason": reason})
	s.Close()
}

func (r *Registry) joinLocked(room string, s Session) {
	members, found := r.rooms[room]
	if !found {
		members = make(map[string]Session)
		r.rooms[room] = members
	}
	members[s.ID()] = s
}

func (r *Registry) leaveAllLocked(s Session) {
	for room, members := range r.rooms {
		delete(members, s.ID())
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}

func (r *Registry) deliver(s Session, event string, payload Payload) {
	r.send(s, event, r.stamp(event, payload))
}

func (r *Registry) send(s Session, event string, payload Payload) {
	if err := s.Send(Frame{Event: event, Data: payload}); err != nil {
		r.log.Warnw("failed to deliver event", "user_id", s.UserID(), "event", event, "error", err)
		metrics.IncreaseSocketEventMetric(event, false)
		return
	}
	metrics.IncreaseSocketEventMetric(event, true)
}

// stamp returns a copy of payload carrying a timestamp and a message.
func (r *Registry) stamp(event string, payload Payload) Payload {
	stamped := make(Payload, len(payload)+2)
	for k, v := range payload {
		stamped[k] = v
	}
	if _, found := stamped["timestamp"]; !found {
		stamped["timestamp"] = r.now().UTC().Format(time.RFC3339Nano)
	}
	if msg, found := stamped["message"]; !found || msg == "" {
		stamped["message"] = defaultMessages[event]
	}
	return stamped
}
