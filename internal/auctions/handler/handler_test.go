package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	apperrors "rentsplit/pkg/errors"
	kafkamiddleware "rentsplit/pkg/kafka/middleware"
	"rentsplit/pkg/logger"
	"rentsplit/pkg/model"
)

// Mock service for testing
type mockAuctionService struct {
	mu sync.Mutex

	createFunc      func(req *model.CreateAuctionRequest) (*model.Auction, error)
	getByIDFunc     func(id string) (*model.Auction, error)
	getAllFunc      func(limit int, offset int64) ([]*model.Auction, int64, error)
	transitionFunc  func(op string, args ...string) (model.AuctionSnapshot, error)
	resultsFunc     func(id string, req *model.ResultsRequest) ([]model.Result, error)
	subscribed      func(model.AuctionSnapshot)
	unsubscribed    bool
	presenceChanges []bool
}

func (m *mockAuctionService) Create(ctx context.Context, req *model.CreateAuctionRequest) (*model.Auction, error) {
	return m.createFunc(req)
}

func (m *mockAuctionService) GetByID(ctx context.Context, id string) (*model.Auction, error) {
	return m.getByIDFunc(id)
}

func (m *mockAuctionService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Auction, int64, error) {
	return m.getAllFunc(limit, offset)
}

func (m *mockAuctionService) transition(op string, args ...string) (model.AuctionSnapshot, error) {
	if m.transitionFunc == nil {
		return model.NewSnapshot(&model.Auction{ID: "a-1", Version: 2}, nil), nil
	}
	return m.transitionFunc(op, args...)
}

func (m *mockAuctionService) Join(ctx context.Context, id string, req *model.JoinRequest) (model.AuctionSnapshot, error) {
	return m.transition("join", id, req.Name)
}

func (m *mockAuctionService) SetPresence(ctx context.Context, id, userID string, req *model.PresenceRequest) (model.AuctionSnapshot, error) {
	m.mu.Lock()
	m.presenceChanges = append(m.presenceChanges, *req.Connected)
	m.mu.Unlock()
	return m.transition("presence", id, userID)
}

func (m *mockAuctionService) Start(ctx context.Context, id string) (model.AuctionSnapshot, error) {
	return m.transition("start", id)
}

func (m *mockAuctionService) Select(ctx context.Context, id, userID string, req *model.SelectionRequest) (model.AuctionSnapshot, error) {
	roomID := "<nil>"
	if req.RoomID != nil {
		roomID = *req.RoomID
	}
	return m.transition("select", id, userID, roomID)
}

func (m *mockAuctionService) Bid(ctx context.Context, id, roomID, userID string, req *model.BidRequest) (model.AuctionSnapshot, error) {
	return m.transition("bid", id, roomID, userID)
}

func (m *mockAuctionService) SubmitValuations(ctx context.Context, id, userID string, req *model.ValuationsRequest) (model.AuctionSnapshot, error) {
	return m.transition("valuations", id, userID)
}

func (m *mockAuctionService) ComputeResults(ctx context.Context, id string, req *model.ResultsRequest) ([]model.Result, error) {
	return m.resultsFunc(id, req)
}

func (m *mockAuctionService) Subscribe(ctx context.Context, id string, onSnapshot func(model.AuctionSnapshot)) (model.AuctionSnapshot, func(), error) {
	if id == "missing" {
		return model.AuctionSnapshot{}, nil, apperrors.NotFoundWithID("Auction", id)
	}
	m.mu.Lock()
	m.subscribed = onSnapshot
	m.mu.Unlock()
	unsubscribe := func() {
		m.mu.Lock()
		m.unsubscribed = true
		m.mu.Unlock()
	}
	return model.NewSnapshot(&model.Auction{ID: id, Version: 1}, nil), unsubscribe, nil
}

func (m *mockAuctionService) push(s model.AuctionSnapshot) bool {
	m.mu.Lock()
	fn := m.subscribed
	m.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(s)
	return true
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
}

func newRouter(svc *mockAuctionService) *httprouter.Router {
	router := httprouter.New()
	NewAuctionHandler(svc, testLogger()).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCreate(t *testing.T) {
	var received *model.CreateAuctionRequest
	svc := &mockAuctionService{
		createFunc: func(req *model.CreateAuctionRequest) (*model.Auction, error) {
			received = req
			return &model.Auction{ID: "a-1", TotalRent: req.TotalRent}, nil
		},
	}
	router := newRouter(svc)

	rr := do(router, http.MethodPost, "/api/v1/auctions", `{"total_rent":1200,"rooms":["A","B"],"users":["Ann"]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if received == nil || received.TotalRent != 1200 || len(received.Rooms) != 2 {
		t.Errorf("service received %+v", received)
	}

	tests := []struct {
		name string
		body string
	}{
		{"unknown field", `{"total_rent":1,"bogus":true}`},
		{"malformed", `{"total_rent":`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestGetByID_ReturnsSnapshotWithOpenConflicts(t *testing.T) {
	svc := &mockAuctionService{
		getByIDFunc: func(id string) (*model.Auction, error) {
			if id != "a-1" {
				return nil, apperrors.NotFoundWithID("Auction", id)
			}
			return &model.Auction{
				ID:        "a-1",
				Phase:     model.PhaseBidding,
				Conflicts: map[string][]string{"r1": {"u1", "u2"}},
			}, nil
		},
	}
	router := newRouter(svc)

	rr := do(router, http.MethodGet, "/api/v1/auctions/a-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Data model.AuctionSnapshot `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data.Open) != 1 || body.Data.Open[0].RoomID != "r1" {
		t.Errorf("open conflicts = %+v", body.Data.Open)
	}

	rr = do(router, http.MethodGet, "/api/v1/auctions/other", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestGetAll_InvalidQueryParameters(t *testing.T) {
	var receivedLimit int
	var receivedOffset int64
	svc := &mockAuctionService{
		getAllFunc: func(limit int, offset int64) ([]*model.Auction, int64, error) {
			receivedLimit = limit
			receivedOffset = offset
			return []*model.Auction{}, 0, nil
		},
	}
	router := newRouter(svc)

	tests := []struct {
		name           string
		queryString    string
		expectHTTPCode int
		wantLimit      int
		wantOffset     int64
	}{
		{"defaults", "", http.StatusOK, 10, 0},
		{"explicit", "?limit=5&offset=20", http.StatusOK, 5, 20},
		{"limit capped", "?limit=1000", http.StatusOK, 100, 0},
		{"negative offset", "?offset=-4", http.StatusOK, 10, 0},
		{"invalid limit", "?limit=abc", http.StatusBadRequest, 0, 0},
		{"invalid offset", "?offset=1.5", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receivedLimit, receivedOffset = 0, 0
			rr := do(router, http.MethodGet, "/api/v1/auctions"+tt.queryString, "")
			if rr.Code != tt.expectHTTPCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.expectHTTPCode)
			}
			if tt.expectHTTPCode == http.StatusOK && (receivedLimit != tt.wantLimit || receivedOffset != tt.wantOffset) {
				t.Errorf("service got limit=%d offset=%d, want %d/%d", receivedLimit, receivedOffset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestTransitionRoutes(t *testing.T) {
	var gotOp string
	var gotArgs []string
	svc := &mockAuctionService{
		transitionFunc: func(op string, args ...string) (model.AuctionSnapshot, error) {
			gotOp, gotArgs = op, args
			return model.NewSnapshot(&model.Auction{ID: args[0], Version: 3}, []model.Event{{Type: model.EventBidAccepted}}), nil
		},
	}
	router := newRouter(svc)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantOp     string
		wantArgs   []string
	}{
		{"join", http.MethodPost, "/api/v1/auctions/a-1/users", `{"name":"Ann"}`, http.StatusCreated, "join", []string{"a-1", "Ann"}},
		{"presence", http.MethodPut, "/api/v1/auctions/a-1/users/u2/presence", `{"connected":false}`, http.StatusOK, "presence", []string{"a-1", "u2"}},
		{"start", http.MethodPost, "/api/v1/auctions/a-1/start", "", http.StatusOK, "start", []string{"a-1"}},
		{"select", http.MethodPut, "/api/v1/auctions/a-1/selections/u1", `{"room_id":"r2"}`, http.StatusOK, "select", []string{"a-1", "u1", "r2"}},
		{"withdraw", http.MethodPut, "/api/v1/auctions/a-1/selections/u1", `{"room_id":null}`, http.StatusOK, "select", []string{"a-1", "u1", "<nil>"}},
		{"bid", http.MethodPut, "/api/v1/auctions/a-1/rooms/r1/bids/u2", `{"amount":410.5}`, http.StatusOK, "bid", []string{"a-1", "r1", "u2"}},
		{"valuations", http.MethodPut, "/api/v1/auctions/a-1/valuations/u1", `{"valuations":{"r1":10}}`, http.StatusOK, "valuations", []string{"a-1", "u1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotOp, gotArgs = "", nil
			rr := do(router, tt.method, tt.path, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if gotOp != tt.wantOp || strings.Join(gotArgs, ",") != strings.Join(tt.wantArgs, ",") {
				t.Errorf("service call = %s%v, want %s%v", gotOp, gotArgs, tt.wantOp, tt.wantArgs)
			}
		})
	}
}

func TestTransitionErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"wrong phase", apperrors.Conflict("Bids are not accepted in waiting phase"), http.StatusConflict, apperrors.CodeConflict},
		{"bad bid", apperrors.Validation("Bid is below the current price", nil), http.StatusUnprocessableEntity, apperrors.CodeValidation},
		{"invariant", apperrors.InvariantViolation("prices drifted", map[string]any{"sum": 1}), http.StatusInternalServerError, apperrors.CodeInvariantViolation},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuctionService{
				transitionFunc: func(op string, args ...string) (model.AuctionSnapshot, error) {
					return model.AuctionSnapshot{}, tt.err
				},
			}
			rr := do(newRouter(svc), http.MethodPut, "/api/v1/auctions/a-1/rooms/r1/bids/u1", `{"amount":10}`)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var body struct {
				Code    string         `json:"code"`
				Details map[string]any `json:"details"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", body.Code, tt.wantCode)
			}
			if tt.wantStatus >= 500 && body.Details != nil {
				t.Errorf("server errors must not expose details, got %v", body.Details)
			}
		})
	}
}

func TestComputeResults_StrategyFromQuery(t *testing.T) {
	var got model.Strategy
	svc := &mockAuctionService{
		resultsFunc: func(id string, req *model.ResultsRequest) ([]model.Result, error) {
			got = req.Strategy
			return []model.Result{{RoomID: "r1", UserID: "u1", Price: 100}}, nil
		},
	}

	rr := do(newRouter(svc), http.MethodPost, "/api/v1/auctions/a-1/results?strategy=preference", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got != model.StrategyPreference {
		t.Errorf("strategy = %q, want preference", got)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	metrics := kafkamiddleware.NewMetrics()
	tests := []struct {
		name       string
		path       string
		store      fakePinger
		wantStatus int
		wantBody   string
	}{
		{"health", "/health", fakePinger{}, http.StatusOK, `"status":"ok"`},
		{"ready", "/ready", fakePinger{}, http.StatusOK, `"messages_published":0`},
		{"not ready", "/ready", fakePinger{err: errors.New("no primary")}, http.StatusServiceUnavailable, `"database":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := httprouter.New()
			NewHealthHandler(tt.store, metrics, testLogger()).RegisterRoutes(router)

			rr := do(router, http.MethodGet, tt.path, "")
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body %s does not contain %s", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func newStreamServer(t *testing.T, svc *mockAuctionService) (*httptest.Server, *StreamHandler) {
	t.Helper()
	stream := NewStreamHandler(svc, testLogger())
	router := httprouter.New()
	stream.RegisterStreamRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, stream
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg StreamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStream_SendsInitialAndLaterSnapshots(t *testing.T) {
	svc := &mockAuctionService{}
	srv, _ := newStreamServer(t, svc)
	conn := dial(t, srv, "/api/v1/auctions/a-1/ws")

	first := readFrame(t, conn)
	if first.Type != MessageSnapshot || first.Snapshot.Auction.Version != 1 {
		t.Fatalf("first frame = %+v", first)
	}

	// Stale and duplicate versions are skipped.
	svc.push(model.NewSnapshot(&model.Auction{ID: "a-1", Version: 1}, nil))
	svc.push(model.NewSnapshot(&model.Auction{ID: "a-1", Version: 3}, []model.Event{{Type: model.EventRoundStarted, Round: 2}}))

	next := readFrame(t, conn)
	if next.Snapshot.Auction.Version != 3 || len(next.Snapshot.Events) != 1 {
		t.Errorf("next frame = %+v", next.Snapshot)
	}

	conn.Close()
	waitFor(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.unsubscribed
	})
}

func TestStream_TracksPresence(t *testing.T) {
	svc := &mockAuctionService{}
	srv, _ := newStreamServer(t, svc)
	conn := dial(t, srv, "/api/v1/auctions/a-1/ws?user_id=u1")

	frame := readFrame(t, conn)
	if frame.Snapshot.Auction.Version != 2 {
		t.Errorf("initial snapshot should come from the presence change, got version %d", frame.Snapshot.Auction.Version)
	}

	conn.Close()
	waitFor(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.presenceChanges) == 2
	})
	if !svc.presenceChanges[0] || svc.presenceChanges[1] {
		t.Errorf("presence changes = %v, want [true false]", svc.presenceChanges)
	}
}

func openSockets(h *StreamHandler, auctionID, userID string) int {
	h.presenceMu.Lock()
	e, ok := h.presence[presenceKey{auctionID: auctionID, userID: userID}]
	h.presenceMu.Unlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sockets
}

func TestStream_PresenceSurvivesSecondSocket(t *testing.T) {
	svc := &mockAuctionService{}
	srv, stream := newStreamServer(t, svc)

	first := dial(t, srv, "/api/v1/auctions/a-1/ws?user_id=u1")
	readFrame(t, first)
	second := dial(t, srv, "/api/v1/auctions/a-1/ws?user_id=u1")
	readFrame(t, second)
	waitFor(t, func() bool { return openSockets(stream, "a-1", "u1") == 2 })

	first.Close()
	waitFor(t, func() bool { return openSockets(stream, "a-1", "u1") == 1 })
	svc.mu.Lock()
	changes := append([]bool(nil), svc.presenceChanges...)
	svc.mu.Unlock()
	for _, connected := range changes {
		if !connected {
			t.Fatalf("presence changes = %v, user disconnected while a socket is open", changes)
		}
	}

	second.Close()
	waitFor(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		n := len(svc.presenceChanges)
		return n == 3 && !svc.presenceChanges[n-1]
	})
	waitFor(t, func() bool {
		stream.presenceMu.Lock()
		defer stream.presenceMu.Unlock()
		return len(stream.presence) == 0
	})
}

func TestStream_UnknownAuction(t *testing.T) {
	srv, _ := newStreamServer(t, &mockAuctionService{})

	resp, err := http.Get(srv.URL + "/api/v1/auctions/missing/ws")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStream_CloseSaysGoodbye(t *testing.T) {
	svc := &mockAuctionService{}
	srv, stream := newStreamServer(t, svc)
	conn := dial(t, srv, "/api/v1/auctions/a-1/ws")
	readFrame(t, conn)

	done := make(chan struct{})
	go func() {
		stream.Close()
		close(done)
	}()

	if msg := readFrame(t, conn); msg.Type != MessageClosing {
		t.Errorf("frame = %+v, want closing", msg)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return")
	}

	if got := stream.StreamPatterns(); len(got) != 1 || got[0] != streamPattern {
		t.Errorf("StreamPatterns() = %v", got)
	}
}
