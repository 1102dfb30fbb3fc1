package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Martin-Hayot/car-auction/internal/auction"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=handler.go -destination=mock_engine.go -package=rest

type EngineService interface {
	GetAuction(ctx context.Context, id string) (types.Auction, error)
	ListByStatus(ctx context.Context, status types.Status) ([]types.Auction, error)
	CreateListing(ctx context.Context, in auction.ListingInput) (types.Auction, error)
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (auction.BidResult, error)
	Purchase(ctx context.Context, id, buyerID string, details types.BuyerDetails) (types.Order, error)
	ResolveWinner(ctx context.Context, id string) (string, bool, error)
	EvaluateAuction(ctx context.Context, id string) (bool, error)
	EvaluateAllAuctions(ctx context.Context) (int, error)
	ReconcileWinners(ctx context.Context) (int, error)
	Approve(ctx context.Context, id string) (types.Auction, error)
	Reject(ctx context.Context, id string) error
	AdvanceOrder(ctx context.Context, id string, to types.OrderStatus) (types.Order, error)
	Stats(ctx context.Context) (map[types.Status]int, error)
}

type AuctionHandler struct {
	engine EngineService
}

func NewAuctionHandler(engine EngineService) *AuctionHandler {
	return &AuctionHandler{engine: engine}
}

// CreateListingHandler handles POST /api/auctions
func (h *AuctionHandler) CreateListingHandler(c *gin.Context) {
	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "CreateListingHandler", err)
		return
	}
	seller := currentUser(c)

	a, err := h.engine.CreateListing(c.Request.Context(), auction.ListingInput{
		SellerID:    seller.ID,
		Title:       req.Title,
		Description: req.Description,
		SaleType:    req.SaleType,
		StartPrice:  req.StartPrice,
		FixedPrice:  req.FixedPrice,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		respondError(c, "CreateListingHandler", err, "seller", seller.ID)
		return
	}

	JSONResponse(c, http.StatusCreated, a, "listing created, awaiting approval")
	log.Info("Listing created", "auction", a.ID, "seller", seller.ID, "saleType", a.SaleType)
}

// GetAuctionHandler handles GET /api/auctions/:id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	id := c.Param("id")
	a, err := h.engine.GetAuction(c.Request.Context(), id)
	if err != nil {
		respondError(c, "GetAuctionHandler", err, "auction", id)
		return
	}
	JSONResponse(c, http.StatusOK, a, "auction retrieved successfully")
}

// PlaceBidHandler handles POST /api/auctions/:id/bids
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	var req PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "PlaceBidHandler", err)
		return
	}
	if !req.Amount.IsPositive() {
		HandleBindError(c, "PlaceBidHandler", fmt.Errorf("amount must be positive"))
		return
	}
	id := c.Param("id")
	bidder := currentUser(c)

	result, err := h.engine.PlaceBid(c.Request.Context(), id, bidder.ID, req.Amount)
	if err != nil {
		respondError(c, "PlaceBidHandler", err, "auction", id, "bidder", bidder.ID)
		return
	}
	if !result.Accepted() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status":  http.StatusUnprocessableEntity,
			"message": result.Reason.Message(),
			"data":    result,
		})
		return
	}
	JSONResponse(c, http.StatusCreated, result, "bid placed successfully")
}

// PurchaseHandler handles POST /api/auctions/:id/purchase
func (h *AuctionHandler) PurchaseHandler(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "PurchaseHandler", err)
		return
	}
	id := c.Param("id")
	buyer := currentUser(c)

	order, err := h.engine.Purchase(c.Request.Context(), id, buyer.ID, types.BuyerDetails{
		FullName:       req.FullName,
		Email:          req.Email,
		MobilePhone:    req.MobilePhone,
		PersonalNumber: req.PersonalNumber,
		Address:        req.Address,
	})
	if err != nil {
		respondError(c, "PurchaseHandler", err, "auction", id, "buyer", buyer.ID)
		return
	}
	JSONResponse(c, http.StatusCreated, order, "purchase recorded, order pending")
}

// GetWinnerHandler handles GET /api/auctions/:id/winner
func (h *AuctionHandler) GetWinnerHandler(c *gin.Context) {
	id := c.Param("id")
	winner, ok, err := h.engine.ResolveWinner(c.Request.Context(), id)
	if err != nil {
		respondError(c, "GetWinnerHandler", err, "auction", id)
		return
	}
	if !ok {
		JSONError(c, http.StatusNotFound, fmt.Errorf("auction %s has no bids", id), "no winning bid found")
		return
	}
	JSONResponse(c, http.StatusOK, WinnerResponse{AuctionID: id, WinnerID: winner}, "winner resolved successfully")
}

// EvaluateHandler handles POST /api/auctions/:id/evaluate
func (h *AuctionHandler) EvaluateHandler(c *gin.Context) {
	id := c.Param("id")
	changed, err := h.engine.EvaluateAuction(c.Request.Context(), id)
	if err != nil {
		respondError(c, "EvaluateHandler", err, "auction", id)
		return
	}
	JSONResponse(c, http.StatusOK, EvaluateResponse{AuctionID: id, Changed: changed}, "auction evaluated")
}

// EvaluateAllHandler handles POST /api/admin/evaluate
func (h *AuctionHandler) EvaluateAllHandler(c *gin.Context) {
	n, err := h.engine.EvaluateAllAuctions(c.Request.Context())
	if err != nil {
		respondError(c, "EvaluateAllHandler", err)
		return
	}
	JSONResponse(c, http.StatusOK, CountResponse{Count: n}, "auctions evaluated")
}

// ReconcileWinnersHandler handles POST /api/admin/reconcile-winners
func (h *AuctionHandler) ReconcileWinnersHandler(c *gin.Context) {
	n, err := h.engine.ReconcileWinners(c.Request.Context())
	if err != nil {
		respondError(c, "ReconcileWinnersHandler", err)
		return
	}
	JSONResponse(c, http.StatusOK, CountResponse{Count: n}, "winners reconciled")
}

// ApproveHandler handles PUT /api/admin/auctions/:id/approve
func (h *AuctionHandler) ApproveHandler(c *gin.Context) {
	id := c.Param("id")
	a, err := h.engine.Approve(c.Request.Context(), id)
	if err != nil {
		respondError(c, "ApproveHandler", err, "auction", id)
		return
	}
	JSONResponse(c, http.StatusOK, a, "listing approved")
}

// RejectHandler handles PUT /api/admin/auctions/:id/reject
func (h *AuctionHandler) RejectHandler(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.Reject(c.Request.Context(), id); err != nil {
		respondError(c, "RejectHandler", err, "auction", id)
		return
	}
	JSONResponse(c, http.StatusOK, nil, "listing rejected")
}

// AdvanceOrderHandler handles PUT /api/admin/orders/:id/{confirm,complete,cancel}
func (h *AuctionHandler) AdvanceOrderHandler(to types.OrderStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		order, err := h.engine.AdvanceOrder(c.Request.Context(), id, to)
		if err != nil {
			respondError(c, "AdvanceOrderHandler", err, "order", id, "to", to)
			return
		}
		JSONResponse(c, http.StatusOK, order, "order "+string(to))
	}
}

// ListAuctionsHandler handles GET /api/auctions?status=
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	status := types.Status(c.DefaultQuery("status", string(types.StatusOngoingAuction)))
	if !status.Valid() {
		JSONError(c, http.StatusBadRequest, fmt.Errorf("unknown status %q", status), "unknown auction status")
		return
	}
	h.listByStatus(c, "ListAuctionsHandler", status)
}

// ListPendingHandler handles GET /api/admin/auctions/pending
func (h *AuctionHandler) ListPendingHandler(c *gin.Context) {
	h.listByStatus(c, "ListPendingHandler", types.StatusPendingApproval)
}

func (h *AuctionHandler) listByStatus(c *gin.Context, handlerName string, status types.Status) {
	auctions, err := h.engine.ListByStatus(c.Request.Context(), status)
	if err != nil {
		respondError(c, handlerName, err, "status", status)
		return
	}
	if auctions == nil {
		auctions = []types.Auction{}
	}
	JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
}

// StatisticsHandler handles GET /api/admin/statistics
func (h *AuctionHandler) StatisticsHandler(c *gin.Context) {
	stats, err := h.engine.Stats(c.Request.Context())
	if err != nil {
		respondError(c, "StatisticsHandler", err)
		return
	}
	JSONResponse(c, http.StatusOK, stats, "statistics retrieved successfully")
}
