package live

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-debate/backend/internal/model/debate"
	debateService "github.com/zhouzirui/z-debate/backend/internal/service/debate"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
)

// Handler 实时辩论通道：客户端发起/停止辩论，并在每句台词展示完毕后回执
type Handler struct {
	debates  *debateService.Service
	upgrader websocket.Upgrader
}

// New 创建实时通道处理器
func New(debates *debateService.Service) *Handler {
	return &Handler{
		debates: debates,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册实时通道路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/live", h.handleLive)
}

type inboundMessage struct {
	Type     string   `json:"type"`
	Topic    string   `json:"topic,omitempty"`
	Rotation []string `json:"rotation,omitempty"`
}

// connection owns one socket; gorilla allows a single concurrent writer.
type connection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *connection) send(ev debate.Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(ev)
}

func (c *connection) sendError(sessionID, message string) {
	if err := c.send(debate.Event{Type: debate.EventError, SessionID: sessionID, Text: message}); err != nil {
		log.Printf("[live] write error failed: %v", err)
	}
}

// run is one paced debate bound to the connection.
type run struct {
	session *debateService.Session
	pacer   *debateService.Pacer
	cancel  context.CancelFunc
	done    chan struct{}
}

func (r *run) stop() {
	r.session.Stop()
	r.cancel()
	<-r.done
}

func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[live] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[live] viewer connected from %s", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &connection{conn: conn}
	var active *run
	defer func() {
		if active != nil {
			active.stop()
		}
		log.Printf("[live] viewer disconnected")
	}()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go pingLoop(ctx, conn)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[live] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "start":
			if active != nil {
				active.stop()
				active = nil
			}
			active = h.start(ctx, c, msg)
		case "stop":
			if active != nil {
				active.stop()
				active = nil
			}
		case "ack":
			if active != nil {
				active.pacer.Acknowledge()
			}
		default:
			c.sendError("", "unsupported message type: "+msg.Type)
		}
	}
}

func (h *Handler) start(ctx context.Context, c *connection, msg inboundMessage) *run {
	session, err := h.debates.Start(ctx, msg.Topic, msg.Rotation)
	if err != nil {
		c.sendError("", err.Error())
		return nil
	}

	if err := c.send(debate.Event{Type: debate.EventSession, SessionID: session.ID(), State: session.State()}); err != nil {
		session.Stop()
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	rn := &run{
		session: session,
		pacer:   h.debates.NewPacer(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	viewer := debateService.SinkFunc(func(_ context.Context, ev debate.Event) error {
		return c.send(ev)
	})

	go func() {
		defer close(rn.done)
		state, err := rn.pacer.Run(runCtx, session, h.debates.Deliver(session.ID(), viewer))
		if err != nil {
			log.Printf("[live] session=%s ended with error: %v", session.ID(), err)
		}
		log.Printf("[live] session=%s finished state=%s", session.ID(), state)
	}()

	return rn
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
