package controllers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/lintang-b-s/campusnav/pkg/navigation"
	"github.com/lintang-b-s/campusnav/pkg/panel"
	"go.uber.org/zap"
)

const outboxSize = 64

// User is one websocket connection following one navigation session.
type User struct {
	io   sync.Mutex
	conn net.Conn

	id      uint
	hub     *Hub
	session *navigation.Session

	outbox    chan streamMessage
	done      chan struct{}
	closeOnce sync.Once
}

// push never blocks the session event loop: when the client can't keep up the
// message is dropped.
func (u *User) push(msg streamMessage) {
	select {
	case u.outbox <- msg:
	case <-u.done:
	default:
		u.hub.log.Debug("websocket outbox full, dropping message", zap.Uint("user", u.id), zap.String("type", msg.Type))
	}
}

func (u *User) write(x interface{}) error {
	w := wsutil.NewWriter(u.conn, ws.StateServerSide, ws.OpText)
	encoder := json.NewEncoder(w)

	u.io.Lock()
	defer u.io.Unlock()

	if err := encoder.Encode(x); err != nil {
		return err
	}

	return w.Flush()
}

func (u *User) writeLoop() {
	for {
		select {
		case <-u.done:
			return
		case msg := <-u.outbox:
			if err := u.write(msg); err != nil {
				u.hub.log.Debug("websocket write failed", zap.Uint("user", u.id), zap.Error(err))
				u.close()
				return
			}
		}
	}
}

// readLoop. gesture events sent by the client go straight to the panel.
func (u *User) readLoop() {
	defer u.close()
	for {
		data, op, err := wsutil.ReadClientData(u.conn)
		if err != nil {
			return
		}
		if op != ws.OpText {
			continue
		}

		var req gestureRequest
		if err := json.Unmarshal(data, &req); err != nil {
			u.push(errorMessage(http.StatusBadRequest, err.Error()))
			continue
		}
		if err := validateRequest(req); err != nil {
			u.push(errorMessage(http.StatusBadRequest, err.Error()))
			continue
		}

		_, err = u.session.HandleGesture(context.Background(), navigation.Gesture{
			Type:          navigation.GestureType(req.Type),
			VerticalDelta: req.VerticalDelta,
		})
		if err != nil {
			u.push(errorMessage(http.StatusNotFound, err.Error()))
			return
		}
	}
}

// shutdown. say goodbye with a close frame, then drop the connection.
func (u *User) shutdown(reason string) {
	u.io.Lock()
	_ = wsutil.WriteServerMessage(u.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, reason))
	u.io.Unlock()
	u.close()
}

func (u *User) close() {
	u.closeOnce.Do(func() {
		close(u.done)
		u.conn.Close()
		u.hub.Remove(u)
	})
}

func errorMessage(status int, message string) streamMessage {
	var resp errorResponse
	resp.Error.Code = http.StatusText(status)
	resp.Error.Message = message
	return streamMessage{Type: "error", Data: resp.Error}
}

type Hub struct {
	mu  sync.RWMutex
	seq uint
	ns  map[uint]*User
	log *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		ns:  make(map[uint]*User),
		log: log,
	}
}

// Serve. upgrade the request and stream snapshot and panel frames of session until
// the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, session *navigation.Session) {
	conn, _, hs, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.log.Info("upgrade error", zap.Error(err), zap.String("session", session.ID()))
		return
	}
	h.log.Info("established websocket connection", zap.String("session", session.ID()),
		zap.String("remote", conn.RemoteAddr().String()), zap.String("protocol", hs.Protocol))

	// the server's read/write timeouts must not cut the stream
	_ = conn.SetDeadline(time.Time{})

	user := h.Register(conn, session)

	unsubscribeSnapshot := session.Subscribe(func(s navigation.Snapshot) {
		user.push(streamMessage{Type: "snapshot", Data: s})
	})
	unsubscribePanel := session.SubscribePanel(func(f panel.Frame) {
		user.push(streamMessage{Type: "panel", Data: f})
	})
	defer unsubscribeSnapshot()
	defer unsubscribePanel()

	user.push(streamMessage{Type: "snapshot", Data: session.Snapshot()})
	user.push(streamMessage{Type: "panel", Data: session.Frame()})

	go user.writeLoop()
	go func() {
		select {
		case <-session.Done():
			user.shutdown("session closed")
		case <-user.done:
		}
	}()
	user.readLoop()
}

func (h *Hub) Register(conn net.Conn, session *navigation.Session) *User {
	user := &User{
		hub:     h,
		conn:    conn,
		session: session,
		outbox:  make(chan streamMessage, outboxSize),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	user.id = h.seq
	h.ns[user.id] = user
	h.seq++
	h.mu.Unlock()

	return user
}

func (h *Hub) Remove(user *User) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.ns, user.id)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ns)
}

func (h *Hub) RemoveAllUser() {
	h.mu.RLock()
	users := make([]*User, 0, len(h.ns))
	for _, u := range h.ns {
		users = append(users, u)
	}
	h.mu.RUnlock()

	for _, u := range users {
		u.close()
	}
}
