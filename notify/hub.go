package notify

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub 把订单通知推送给 websocket 观察者（索引器、前端）。
type Hub struct {
	pub      *Publisher
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewHub(pub *Publisher, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		pub: pub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeHTTP 升级连接并持续推送，直到对端断开。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	events, cancel := h.pub.Subscribe()
	defer cancel()
	defer conn.Close()

	h.log.Info("ws subscriber connected", zap.String("remote", r.RemoteAddr))
	done := make(chan struct{})
	go h.readLoop(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			h.log.Info("ws subscriber disconnected", zap.String("remote", r.RemoteAddr))
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Warn("ws write failed", zap.Error(err), zap.Uint64("order_id", ev.OrderID))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop 只处理控制帧；观察者不发送业务消息。
func (h *Hub) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
