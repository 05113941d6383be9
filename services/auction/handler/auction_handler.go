package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"auction-engine/internal/auctionerrors"
	auction "auction-engine/internal/auctionService"
	model "auction-engine/internal/models"
	"auction-engine/services/auction/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type LifecycleServiceInterface interface {
	CreateAuction(ctx context.Context, params auction.CreateAuctionParams) (model.Auction, error)
	UpdateAuction(ctx context.Context, auctionID string, update auction.AuctionUpdate) (model.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	StartAuction(ctx context.Context, auctionID string) error
	EndAuction(ctx context.Context, auctionID string) error
	VoidAuction(ctx context.Context, auctionID, reason string) error
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (model.Bid, error)
	ListBids(ctx context.Context, auctionID string) ([]model.Bid, error)
	WinningBid(ctx context.Context, auctionID string) (model.Bid, error)
	GetPayment(ctx context.Context, paymentID string) (model.Payment, error)
	GetPaymentByAuction(ctx context.Context, auctionID string) (model.Payment, error)
	ReportPayment(ctx context.Context, paymentID string, status model.PaymentStatus) (model.Payment, error)
}

type AuctionHandler struct {
	service LifecycleServiceInterface
}

func NewAuctionHandler(service LifecycleServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	a, err := h.service.CreateAuction(c.Request.Context(), auction.CreateAuctionParams{
		CreatedBy:   req.CreatedBy,
		Title:       req.Title,
		Description: req.Description,
		StartDate:   time.Unix(req.StartDate, 0).UTC(),
		EndDate:     time.Unix(req.EndDate, 0).UTC(),
		StartAmount: req.StartAmount,
		Images:      req.Images,
	})
	if err != nil {
		h.respondError(c, "CreateAuctionHandler", err, map[string]any{"created_by": req.CreatedBy})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewAuctionResponse(a), "auction scheduled successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction scheduled successfully", map[string]any{
		"auction_id": a.AuctionID,
		"created_by": a.CreatedBy,
		"start_date": a.StartDate.Unix(),
		"end_date":   a.EndDate.Unix(),
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	a, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		h.respondError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(a), "auction retrieved successfully")
}

// UpdateAuctionHandler handles PATCH /auctions/:auction_id
func (h *AuctionHandler) UpdateAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.UpdateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateAuctionHandler", err)
		return
	}

	update := auction.AuctionUpdate{
		Title:       req.Title,
		Description: req.Description,
		Images:      req.Images,
	}
	if req.StartDate != nil {
		t := time.Unix(*req.StartDate, 0).UTC()
		update.StartDate = &t
	}
	if req.EndDate != nil {
		t := time.Unix(*req.EndDate, 0).UTC()
		update.EndDate = &t
	}

	a, err := h.service.UpdateAuction(c.Request.Context(), auctionID, update)
	if err != nil {
		h.respondError(c, "UpdateAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(a), "auction updated successfully")
	helpers.LogSuccess("UpdateAuctionHandler", "auction updated successfully", map[string]any{"auction_id": auctionID})
}

// StartAuctionHandler handles POST /auctions/:auction_id/start
func (h *AuctionHandler) StartAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	if err := h.service.StartAuction(c.Request.Context(), auctionID); err != nil {
		h.respondError(c, "StartAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{"auction_id": auctionID, "status": string(model.StatusOpen)}, "auction started successfully")
	helpers.LogSuccess("StartAuctionHandler", "auction started successfully", map[string]any{"auction_id": auctionID})
}

// EndAuctionHandler handles POST /auctions/:auction_id/end
func (h *AuctionHandler) EndAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	if err := h.service.EndAuction(c.Request.Context(), auctionID); err != nil {
		h.respondError(c, "EndAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{"auction_id": auctionID}, "auction ended successfully")
	helpers.LogSuccess("EndAuctionHandler", "auction ended successfully", map[string]any{"auction_id": auctionID})
}

// VoidAuctionHandler handles POST /auctions/:auction_id/void
func (h *AuctionHandler) VoidAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.VoidAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "VoidAuctionHandler", err)
		return
	}

	if err := h.service.VoidAuction(c.Request.Context(), auctionID, req.Reason); err != nil {
		h.respondError(c, "VoidAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{"auction_id": auctionID, "status": string(model.StatusVoid)}, "auction voided successfully")
	helpers.LogSuccess("VoidAuctionHandler", "auction voided successfully", map[string]any{
		"auction_id": auctionID,
		"reason":     req.Reason,
	})
}

// PlaceBidHandler handles POST /bids
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	bid, err := h.service.PlaceBid(c.Request.Context(), req.AuctionID, req.BidderID, req.Amount)
	if err != nil {
		h.respondError(c, "PlaceBidHandler", err, map[string]any{
			"auction_id": req.AuctionID,
			"bidder_id":  req.BidderID,
			"amount":     req.Amount,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "bid recorded successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid recorded successfully", map[string]any{
		"auction_id": bid.AuctionID,
		"bid_id":     bid.BidID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount,
	})
}

// ListBidsHandler handles GET /auctions/:auction_id/bids
func (h *AuctionHandler) ListBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.ListBids(c.Request.Context(), auctionID)
	if err != nil {
		h.respondError(c, "ListBidsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, bid := range bids {
		resp = append(resp, helpers.NewBidResponse(bid))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("ListBidsHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(resp),
	})
}

// WinningBidHandler handles GET /auctions/:auction_id/winning
func (h *AuctionHandler) WinningBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bid, err := h.service.WinningBid(c.Request.Context(), auctionID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no winning bid found")
			utils.Info("WinningBidHandler: no winning bid found", map[string]any{"auction_id": auctionID})
			return
		}
		h.respondError(c, "WinningBidHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "winning bid retrieved successfully")
}

// GetPaymentHandler handles GET /payments/:payment_id
func (h *AuctionHandler) GetPaymentHandler(c *gin.Context) {
	paymentID := c.Param("payment_id")
	payment, err := h.service.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		h.respondError(c, "GetPaymentHandler", err, map[string]any{"payment_id": paymentID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.NewPaymentResponse(payment), "payment retrieved successfully")
}

// GetPaymentByAuctionHandler handles GET /auctions/:auction_id/payment
func (h *AuctionHandler) GetPaymentByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	payment, err := h.service.GetPaymentByAuction(c.Request.Context(), auctionID)
	if err != nil {
		h.respondError(c, "GetPaymentByAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.NewPaymentResponse(payment), "payment retrieved successfully")
}

// ReportPaymentHandler handles PUT /payments/:payment_id
func (h *AuctionHandler) ReportPaymentHandler(c *gin.Context) {
	paymentID := c.Param("payment_id")

	var req helpers.ReportPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "ReportPaymentHandler", err)
		return
	}

	payment, err := h.service.ReportPayment(c.Request.Context(), paymentID, model.PaymentStatus(req.Status))
	if err != nil {
		h.respondError(c, "ReportPaymentHandler", err, map[string]any{
			"payment_id": paymentID,
			"status":     req.Status,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewPaymentResponse(payment), "payment status updated successfully")
	helpers.LogSuccess("ReportPaymentHandler", "payment status updated successfully", map[string]any{
		"payment_id": payment.PaymentID,
		"auction_id": payment.AuctionID,
		"status":     string(payment.Status),
	})
}

// respondError maps a service error onto the wire and logs it with context
func (h *AuctionHandler) respondError(c *gin.Context, handlerName string, err error, ctx map[string]any) {
	status, message := helpers.MapErrorToHTTP(err)
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)

	ctx["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": "+message, ctx)
	} else {
		utils.Warn(handlerName+": "+message, ctx)
	}
}
