package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"rentsplit/internal/auctions/service"
	httputil "rentsplit/pkg/http"
	"rentsplit/pkg/logger"
	"rentsplit/pkg/model"
)

type AuctionHandler struct {
	service service.AuctionService
	log     *logger.Logger
}

func NewAuctionHandler(service service.AuctionService, log *logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		service: service,
		log:     log,
	}
}

func (h *AuctionHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreateAuctionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	auction, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, auction); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *AuctionHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	auction, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, model.NewSnapshot(auction, nil)); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AuctionHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	auctions, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, auctions, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *AuctionHandler) Join(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.JoinRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Join", err)
		return
	}

	snapshot, err := h.service.Join(r.Context(), ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "Join", err)
		return
	}

	if err := httputil.WriteCreated(w, snapshot); err != nil {
		h.log.Error("failed to write created response", "handler", "Join", "operation", "WriteCreated", "error", err)
	}
}

func (h *AuctionHandler) SetPresence(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.PresenceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "SetPresence", err)
		return
	}

	snapshot, err := h.service.SetPresence(r.Context(), ps.ByName("id"), ps.ByName("userId"), &req)
	h.writeSnapshot(w, "SetPresence", snapshot, err)
}

func (h *AuctionHandler) Start(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	snapshot, err := h.service.Start(r.Context(), ps.ByName("id"))
	h.writeSnapshot(w, "Start", snapshot, err)
}

func (h *AuctionHandler) Select(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.SelectionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Select", err)
		return
	}

	snapshot, err := h.service.Select(r.Context(), ps.ByName("id"), ps.ByName("userId"), &req)
	h.writeSnapshot(w, "Select", snapshot, err)
}

func (h *AuctionHandler) Bid(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.BidRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Bid", err)
		return
	}

	snapshot, err := h.service.Bid(r.Context(), ps.ByName("id"), ps.ByName("roomId"), ps.ByName("userId"), &req)
	h.writeSnapshot(w, "Bid", snapshot, err)
}

func (h *AuctionHandler) SubmitValuations(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.ValuationsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "SubmitValuations", err)
		return
	}

	snapshot, err := h.service.SubmitValuations(r.Context(), ps.ByName("id"), ps.ByName("userId"), &req)
	h.writeSnapshot(w, "SubmitValuations", snapshot, err)
}

// ComputeResults takes the strategy from the query string; the request has
// no body.
func (h *AuctionHandler) ComputeResults(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req := model.ResultsRequest{Strategy: model.Strategy(r.URL.Query().Get("strategy"))}

	results, err := h.service.ComputeResults(r.Context(), ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "ComputeResults", err)
		return
	}

	if err := httputil.WriteSuccess(w, results); err != nil {
		h.log.Error("failed to write success response", "handler", "ComputeResults", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AuctionHandler) writeSnapshot(w http.ResponseWriter, handler string, snapshot model.AuctionSnapshot, err error) {
	if err != nil {
		h.writeError(w, handler, err)
		return
	}
	if err := httputil.WriteSuccess(w, snapshot); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *AuctionHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AuctionHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/auctions", h.Create)
	router.GET("/api/v1/auctions", h.GetAll)
	router.GET("/api/v1/auctions/:id", h.GetByID)
	router.POST("/api/v1/auctions/:id/users", h.Join)
	router.PUT("/api/v1/auctions/:id/users/:userId/presence", h.SetPresence)
	router.POST("/api/v1/auctions/:id/start", h.Start)
	router.PUT("/api/v1/auctions/:id/selections/:userId", h.Select)
	router.PUT("/api/v1/auctions/:id/rooms/:roomId/bids/:userId", h.Bid)
	router.PUT("/api/v1/auctions/:id/valuations/:userId", h.SubmitValuations)
	router.POST("/api/v1/auctions/:id/results", h.ComputeResults)
}
