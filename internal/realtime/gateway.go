package realtime

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stemflow/stemflow/internal/store/model"
	"go.uber.org/zap"
)

// Authenticator resolves the user of a handshake request or returns a rejection reason.
type Authenticator interface {
	AuthenticateRequest(r *http.Request) (*model.User, error)
}

type Gateway struct {
	registry *Registry
	auth     Authenticator
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func NewGateway(registry *Registry, auth Authenticator, allowedOrigins []string) *Gateway {
	return &Gateway{
		registry: registry,
		auth:     auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		log: zap.S().Named("gateway"),
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Authenticate before the upgrade so a rejected handshake never touches the registry.
	user, err := g.auth.AuthenticateRequest(r)
	if err != nil {
		g.log.Warnw("socket handshake rejected", "remote_addr", r.RemoteAddr, "reason", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Errorw("websocket upgrade failed", "user_id", user.ID, "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	session := newWSSession(uuid.NewString(), *user, conn)
	go session.writePump()

	g.registry.Register(session)
	g.registry.deliver(session, EventConnected, Payload{
		"userId":       user.ID,
		"connectionId": session.ID(),
	})
	g.registry.BroadcastOnlineCount()
	g.log.Infow("socket connected", "user_id", user.ID, "connection_id", session.ID())

	g.readLoop(session)

	if g.registry.Unregister(session) {
		g.registry.BroadcastOnlineCount()
	}
	session.Close()
	g.log.Infow("socket disconnected", "user_id", user.ID, "connection_id", session.ID())
}

func (g *Gateway) readLoop(s *wsSession) {
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warnw("socket read error", "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var in struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &in); err != nil || in.Event == "" {
			s.log.Debugw("ignoring malformed frame", "error", err)
			continue
		}
		g.handle(s, in.Event, in.Data)
	}
}

func (g *Gateway) handle(s *wsSession, event string, data json.RawMessage) {
	switch event {
	case EventPing:
		g.registry.deliver(s, EventPong, Payload{})
	case EventMessage:
		var body struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
			s.log.Debugw("ignoring empty chat message")
			return
		}
		sender := s.User()
		g.registry.BroadcastAll(EventMessage, Payload{
			"senderId":   sender.ID,
			"senderName": sender.Username,
			"message":    body.Message,
		})
	case EventJoinTrack:
		var body struct {
			TrackID string `json:"trackId"`
		}
		if err := json.Unmarshal(data, &body); err != nil || body.TrackID == "" {
			s.log.Debugw("ignoring join-track without track id")
			return
		}
		g.registry.JoinRoom(s.UserID(), TrackRoom(body.TrackID))
	case EventJoinStage:
		var body struct {
			StageID string `json:"stageId"`
		}
		if err := json.Unmarshal(data, &body); err != nil || body.StageID == "" {
			s.log.Debugw("ignoring join-stage without stage id")
			return
		}
		g.registry.JoinRoom(s.UserID(), StageRoom(body.StageID))
	default:
		s.log.Debugw("unknown client event", "event", event)
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
