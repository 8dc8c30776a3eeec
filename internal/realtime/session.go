package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stemflow/stemflow/internal/store/model"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

type wsSession struct {
	id     string
	user   model.User
	conn   *websocket.Conn
	send   chan Frame
	done   chan struct{}
	once   sync.Once
	log    *zap.SugaredLogger
}

// newWSSession keeps a copy of the user resolved at handshake.
func newWSSession(id string, user model.User, conn *websocket.Conn) *wsSession {
	return &wsSession{
		id:     id,
		user:   user,
		conn:   conn,
		send:   make(chan Frame, sendBufferSize),
		done:   make(chan struct{}),
		log:    zap.S().Named("socket").With("user_id", user.ID, "connection_id", id),
	}
}

func (s *wsSession) ID() string {
	return s.id
}

func (s *wsSession) UserID() string {
	return s.user.ID
}

func (s *wsSession) User() model.User {
	return s.user
}

func (s *wsSession) Send(frame Frame) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- frame:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (s *wsSession) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// writePump owns all writes on the connection. It flushes queued frames before
// closing so a forceLogout sent right before Close still reaches the client.
func (s *wsSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			if err := s.write(frame); err != nil {
				s.log.Warnw("write failed, closing connection", "error", err)
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			s.drain()
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *wsSession) drain() {
	for {
		select {
		case frame := <-s.send:
			if err := s.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *wsSession) write(frame Frame) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(frame)
}
