package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/threadline/checkout/internal/domain/order"
	"github.com/threadline/checkout/internal/domain/request"
)

type staffOrderPatchReq struct {
	Status   string `json:"status"`
	Shipment *struct {
		TrackingNumber    string     `json:"tracking_number"`
		CourierName       string     `json:"courier_name"`
		TrackingURL       string     `json:"tracking_url"`
		EstimatedDelivery *time.Time `json:"estimated_delivery"`
	} `json:"shipment"`
}

// staffUpdateOrder applies a status transition, shipment metadata, or both.
// The transition runs as a compare-and-set against the status the order had
// when this handler read it.
func (s *Server) staffUpdateOrder(c *gin.Context) {
	var req staffOrderPatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Status == "" && req.Shipment == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	ctx := c.Request.Context()
	o, err := s.orders.GetByID(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	if req.Shipment != nil {
		o, err = s.orders.SetShipment(ctx, o.ID, order.Shipment{
			TrackingNumber:    req.Shipment.TrackingNumber,
			CourierName:       req.Shipment.CourierName,
			TrackingURL:       req.Shipment.TrackingURL,
			EstimatedDelivery: req.Shipment.EstimatedDelivery,
		})
		if err != nil {
			writeError(c, err)
			return
		}
	}

	if req.Status != "" {
		next, ok := order.ParseStatus(req.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		o, err = s.orders.Transition(ctx, o.ID, o.Status, next)
		if err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, o)
}

type staffRequestPatchReq struct {
	Status string `json:"status"`
}

// staffUpdateRequest progresses a post-purchase request through the staff
// review states.
func (s *Server) staffUpdateRequest(c *gin.Context) {
	var req staffRequestPatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	next, ok := request.ParseStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	ctx := c.Request.Context()
	current, err := s.requests.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	updated, err := s.requests.Progress(ctx, current.ID, current.Status, next)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
