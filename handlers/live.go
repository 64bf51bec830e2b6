package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"corkboard/schemas"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type liveConn struct {
	conn       *websocket.Conn
	searchTerm string
}

type searchMessage struct {
	Search string `json:"search"`
}

// LiveBoard pushes a freshly projected board to every connected page whenever
// the canonical list or the notification slot changes. Each connection keeps
// its own search term, sent by the page as {"search": term} on keystrokes.
type LiveBoard struct {
	handler *HTTPHandler
	logger  *zap.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]*liveConn
}

func NewLiveBoard(handler *HTTPHandler, logger *zap.Logger) *LiveBoard {
	lb := &LiveBoard{
		handler: handler,
		logger:  logger,
		conns:   map[*websocket.Conn]*liveConn{},
	}
	handler.sync.OnChange(lb.Broadcast)
	handler.center.OnChange(func(_ *schemas.Notification) { lb.Broadcast() })
	return lb
}

func (lb *LiveBoard) HandleLive(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		lb.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	lc := &liveConn{conn: conn}
	lb.mu.Lock()
	lb.conns[conn] = lc
	lb.mu.Unlock()

	lb.push(lc)

	go lb.readLoop(lc)
}

// Broadcast re-projects and pushes the board to every connection.
func (lb *LiveBoard) Broadcast() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	for _, lc := range lb.conns {
		lb.pushLocked(lc)
	}
}

func (lb *LiveBoard) push(lc *liveConn) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.pushLocked(lc)
}

// pushLocked writes under lb.mu, which also serializes writes per connection.
func (lb *LiveBoard) pushLocked(lc *liveConn) {
	if err := lc.conn.WriteJSON(lb.handler.boardResponse(lc.searchTerm)); err != nil {
		delete(lb.conns, lc.conn)
		_ = lc.conn.Close()
	}
}

func (lb *LiveBoard) readLoop(lc *liveConn) {
	for {
		var msg searchMessage
		if err := lc.conn.ReadJSON(&msg); err != nil {
			lb.mu.Lock()
			delete(lb.conns, lc.conn)
			lb.mu.Unlock()
			_ = lc.conn.Close()
			return
		}

		lb.mu.Lock()
		lc.searchTerm = msg.Search
		lb.pushLocked(lc)
		lb.mu.Unlock()
	}
}
