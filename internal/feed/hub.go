package feed

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"groupomania/internal/metrics"

	"github.com/rs/zerolog/log"
)

// 推送给客户端的事件类型。
const (
	PostCreated    = "post_created"
	PostUpdated    = "post_updated"
	PostDeleted    = "post_deleted"
	PostLiked      = "post_liked"
	PostUnliked    = "post_unliked"
	CommentCreated = "comment_created"
	CommentDeleted = "comment_deleted"
)

type Event struct {
	Type      string    `json:"type"`
	PostID    uint      `json:"post_id,omitempty"`
	CommentID uint      `json:"comment_id,omitempty"`
	UserID    uint      `json:"user_id"`
	At        time.Time `json:"at"`
}

// Hub 在单个 goroutine 中串行处理连接注册、注销与广播。
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	online     int32
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// NewHub 创建并启动 Hub。
func NewHub() *Hub {
	h := newHub()
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			atomic.StoreInt32(&h.online, int32(len(h.clients)))
			metrics.FeedConnections.Inc()
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// 慢客户端直接断开
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	atomic.StoreInt32(&h.online, int32(len(h.clients)))
	metrics.FeedConnections.Dec()
}

// Publish 非阻塞地广播事件；缓冲区满时丢弃并记录告警，不影响请求本身。
func (h *Hub) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("type", evt.Type).Msg("feed marshal")
		return
	}
	select {
	case h.broadcast <- b:
		metrics.FeedEventsTotal.WithLabelValues(evt.Type).Inc()
	default:
		log.Warn().Str("type", evt.Type).Uint("post_id", evt.PostID).Msg("feed buffer full, event dropped")
	}
}

// Online 返回当前在线连接数。
func (h *Hub) Online() int { return int(atomic.LoadInt32(&h.online)) }

// Stop 关闭所有连接并退出事件循环，用于优雅停服。
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}
