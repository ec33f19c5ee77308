package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"rentsplit/internal/auctions/service"
	apperrors "rentsplit/pkg/errors"
	httputil "rentsplit/pkg/http"
	"rentsplit/pkg/logger"
	"rentsplit/pkg/model"
)

const (
	streamPath    = "/api/v1/auctions/:id/ws"
	streamPattern = "GET /api/v1/auctions/{id}/ws"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxClientFrame = 512
	streamBuffer   = 16
	presenceWait   = 5 * time.Second

	MessageSnapshot = "snapshot"
	MessageClosing  = "closing"
)

// StreamMessage is one frame sent to a websocket client.
type StreamMessage struct {
	Type     string                 `json:"type"`
	Snapshot *model.AuctionSnapshot `json:"snapshot,omitempty"`
	Reason   string                 `json:"reason,omitempty"`
}

// StreamHandler pushes every persisted snapshot of an auction to websocket
// clients. A client that passes ?user_id= is marked connected for as long
// as at least one of its sockets stays open.
type StreamHandler struct {
	service  service.AuctionService
	log      *logger.Logger
	upgrader websocket.Upgrader

	presenceMu sync.Mutex
	presence   map[presenceKey]*presenceEntry

	done      chan struct{}
	closeOnce sync.Once
	conns     sync.WaitGroup
}

type presenceKey struct {
	auctionID string
	userID    string
}

// presenceEntry counts the open sockets of one participant. mu serializes
// the presence writes so a closing socket cannot overtake a newer one.
type presenceEntry struct {
	mu      sync.Mutex
	sockets int
	holders int
}

func NewStreamHandler(service service.AuctionService, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		presence: make(map[presenceKey]*presenceEntry),
		done:     make(chan struct{}),
	}
}

func (h *StreamHandler) RegisterStreamRoutes(router *httprouter.Router) {
	router.GET(streamPath, h.Stream)
}

func (h *StreamHandler) StreamPatterns() []string {
	return []string{streamPattern}
}

// Close tells every open stream to say goodbye and waits for them to end.
// Hijacked connections are not covered by http.Server.Shutdown.
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	h.conns.Wait()
}

func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	auctionID := ps.ByName("id")
	userID := r.URL.Query().Get("user_id")
	log := h.log.ForAuction(auctionID)

	select {
	case <-h.done:
		h.writeError(w, apperrors.Unavailable("Auction stream"))
		return
	default:
	}
	h.conns.Add(1)
	defer h.conns.Done()

	updates := make(chan model.AuctionSnapshot, streamBuffer)
	lagging := make(chan struct{})
	var lagOnce sync.Once
	onSnapshot := func(s model.AuctionSnapshot) {
		select {
		case updates <- s:
		default:
			lagOnce.Do(func() { close(lagging) })
		}
	}

	current, unsubscribe, err := h.service.Subscribe(r.Context(), auctionID, onSnapshot)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer unsubscribe()

	if userID != "" {
		key := presenceKey{auctionID: auctionID, userID: userID}
		entry, snapshot, err := h.connect(r.Context(), key)
		if err != nil {
			h.writeError(w, err)
			return
		}
		current = snapshot
		defer h.disconnect(log, key, entry)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	log.Info("Stream opened", "user_id", userID, "remote_addr", r.RemoteAddr)

	closed := make(chan struct{})
	go h.readLoop(conn, closed)

	lastVersion := int64(-1)
	send := func(s model.AuctionSnapshot) error {
		if s.Auction == nil || s.Auction.Version <= lastVersion {
			return nil
		}
		lastVersion = s.Auction.Version
		return writeFrame(conn, StreamMessage{Type: MessageSnapshot, Snapshot: &s})
	}

	if err := send(current); err != nil {
		log.Warn("Failed to send initial snapshot", "error", err)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case s := <-updates:
			if err := send(s); err != nil {
				log.Warn("Failed to send snapshot", "version", s.Auction.Version, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug("Ping failed, closing stream", "error", err)
				return
			}
		case <-lagging:
			log.Warn("Stream client is too slow, closing", "user_id", userID)
			closeWith(conn, websocket.ClosePolicyViolation, "client too slow")
			return
		case <-h.done:
			_ = writeFrame(conn, StreamMessage{Type: MessageClosing, Reason: "server shutting down"})
			closeWith(conn, websocket.CloseGoingAway, "server shutting down")
			return
		case <-closed:
			log.Info("Stream closed by client", "user_id", userID)
			return
		}
	}
}

// readLoop drains client frames so control messages are processed. The
// stream is one-way; anything the client sends is ignored.
func (h *StreamHandler) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// connect marks the participant connected and counts the socket. The
// returned entry stays held until disconnect.
func (h *StreamHandler) connect(ctx context.Context, key presenceKey) (*presenceEntry, model.AuctionSnapshot, error) {
	e := h.holdEntry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot, err := h.service.SetPresence(ctx, key.auctionID, key.userID, &model.PresenceRequest{Connected: ptrTo(true)})
	if err != nil {
		h.dropEntry(key, e)
		return nil, model.AuctionSnapshot{}, err
	}
	e.sockets++
	return e, snapshot, nil
}

// disconnect marks the participant disconnected once its last socket closes.
func (h *StreamHandler) disconnect(log *logger.Logger, key presenceKey, e *presenceEntry) {
	defer h.dropEntry(key, e)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sockets--
	if e.sockets > 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), presenceWait)
	defer cancel()
	if _, err := h.service.SetPresence(ctx, key.auctionID, key.userID, &model.PresenceRequest{Connected: ptrTo(false)}); err != nil {
		log.Warn("Failed to record disconnect", "user_id", key.userID, "error", err)
	}
}

func (h *StreamHandler) holdEntry(key presenceKey) *presenceEntry {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()
	e, ok := h.presence[key]
	if !ok {
		e = &presenceEntry{}
		h.presence[key] = e
	}
	e.holders++
	return e
}

func (h *StreamHandler) dropEntry(key presenceKey, e *presenceEntry) {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()
	e.holders--
	if e.holders == 0 {
		delete(h.presence, key)
	}
}

func (h *StreamHandler) writeError(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "Stream", "operation", "WriteError", "error", writeErr)
	}
}

func writeFrame(conn *websocket.Conn, msg StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}

func ptrTo[T any](v T) *T { return &v }
