package realtime_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stemflow/stemflow/internal/realtime"
	"github.com/stemflow/stemflow/internal/store/model"
)

var _ = Describe("gateway", func() {
	var (
		registry *realtime.Registry
		server   *httptest.Server
		wsURL    string
	)

	BeforeEach(func() {
		registry = realtime.NewRegistry()
		server = httptest.NewServer(realtime.NewGateway(registry, headerAuthenticator{}, nil))
		wsURL = "ws" + strings.TrimPrefix(server.URL, "http")
	})

	AfterEach(func() {
		server.Close()
	})

	dial := func(user string) *websocket.Conn {
		header := http.Header{}
		header.Set("X-User", user)
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
		Expect(err).To(BeNil())
		return conn
	}

	It("rejects a handshake without a user before touching the registry", func() {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		Expect(err).NotTo(BeNil())
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(registry.OnlineCount()).To(Equal(0))
	})

	It("acknowledges the connection and answers pings", func() {
		conn := dial("U1")
		defer conn.Close()

		connected := readUntil(conn, realtime.EventConnected)
		data := connected.Data.(map[string]any)
		Expect(data["userId"]).To(Equal("U1"))
		Expect(data["connectionId"]).NotTo(BeEmpty())
		Expect(data).To(HaveKey("timestamp"))

		online := readUntil(conn, realtime.EventOnlineUsers)
		Expect(online.Data.(map[string]any)["count"]).To(BeNumerically("==", 1))

		Expect(conn.WriteJSON(realtime.Frame{Event: realtime.EventPing})).To(Succeed())
		pong := readUntil(conn, realtime.EventPong)
		Expect(pong.Data.(map[string]any)["message"]).NotTo(BeEmpty())
	})

	It("evicts the previous connection of the same user", func() {
		first := dial("U1")
		defer first.Close()
		readUntil(first, realtime.EventConnected)

		second := dial("U1")
		defer second.Close()
		readUntil(second, realtime.EventConnected)

		logout := readUntil(first, realtime.EventForceLogout)
		Expect(logout.Data.(map[string]any)).To(HaveKey("reason"))

		Eventually(registry.OnlineCount).Should(Equal(1))
		Expect(registry.IsOnline("U1")).To(BeTrue())
	})

	It("joins stage rooms on request", func() {
		conn := dial("U1")
		defer conn.Close()
		readUntil(conn, realtime.EventConnected)

		Expect(conn.WriteJSON(map[string]any{
			"event": realtime.EventJoinStage,
			"data":  map[string]any{"stageId": "S1"},
		})).To(Succeed())
		// round trip so the join is processed before sending to the room
		Expect(conn.WriteJSON(realtime.Frame{Event: realtime.EventPing})).To(Succeed())
		readUntil(conn, realtime.EventPong)

		registry.SendToRoom(realtime.StageRoom("S1"), realtime.EventAllStemJobsCompleted, realtime.Payload{"stageId": "S1", "stemCount": 3})
		frame := readUntil(conn, realtime.EventAllStemJobsCompleted)
		Expect(frame.Data.(map[string]any)["stemCount"]).To(BeNumerically("==", 3))
	})

	It("rebroadcasts chat messages with the sender", func() {
		a := dial("U1")
		defer a.Close()
		readUntil(a, realtime.EventConnected)
		b := dial("U2")
		defer b.Close()
		readUntil(b, realtime.EventConnected)

		Expect(a.WriteJSON(map[string]any{
			"event": realtime.EventMessage,
			"data":  map[string]any{"message": "hello"},
		})).To(Succeed())

		frame := readUntil(b, realtime.EventMessage)
		data := frame.Data.(map[string]any)
		Expect(data["senderId"]).To(Equal("U1"))
		Expect(data["senderName"]).To(Equal("user-U1"))
		Expect(data["message"]).To(Equal("hello"))
	})

	It("unregisters on disconnect", func() {
		conn := dial("U1")
		readUntil(conn, realtime.EventConnected)
		Expect(registry.IsOnline("U1")).To(BeTrue())

		conn.Close()
		Eventually(func() bool { return registry.IsOnline("U1") }).Should(BeFalse())
	})
})

func readUntil(conn *websocket.Conn, event string) realtime.Frame {
	deadline := time.Now().Add(2 * time.Second)
	for {
		Expect(conn.SetReadDeadline(deadline)).To(Succeed())
		var frame realtime.Frame
		Expect(conn.ReadJSON(&frame)).To(Succeed())
		if frame.Event == event {
			return frame
		}
	}
}

type headerAuthenticator struct{}

func (headerAuthenticator) AuthenticateRequest(r *http.Request) (*model.User, error) {
	id := r.Header.Get("X-User")
	if id == "" {
		return nil, errors.New("no token")
	}
	return &model.User{ID: id, Username: "user-" + id}, nil
}
