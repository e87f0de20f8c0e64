package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/threadline/checkout/internal/domain/address"
	"github.com/threadline/checkout/internal/domain/checkout"
	"github.com/threadline/checkout/internal/domain/pricing"
	"github.com/threadline/checkout/internal/domain/request"
)

// --- catalog ---

func (s *Server) listProducts(c *gin.Context) {
	products, err := s.catalog.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (s *Server) getProduct(c *gin.Context) {
	p, err := s.catalog.GetByHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// --- checkout draft ---

type beginDraftReq struct {
	Items []struct {
		ProductID string `json:"product_id"`
		Size      string `json:"size"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

func (s *Server) beginDraft(c *gin.Context) {
	var req beginDraftReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	selections := make([]checkout.Selection, len(req.Items))
	for i, it := range req.Items {
		selections[i] = checkout.Selection{ProductID: it.ProductID, Size: it.Size, Quantity: it.Quantity}
	}
	d, err := s.drafts.Begin(c.Request.Context(), customerID(c), selections)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (s *Server) getDraft(c *gin.Context) {
	d, err := s.drafts.Get(c.Request.Context(), customerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type setAddressReq struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Line1       string `json:"line1"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	MakeDefault bool   `json:"make_default"`
}

func (r *setAddressReq) address() address.Address {
	return address.Address{
		Name:       r.Name,
		Email:      r.Email,
		Phone:      r.Phone,
		Line1:      r.Line1,
		City:       r.City,
		State:      r.State,
		PostalCode: r.PostalCode,
	}
}

func (s *Server) setDraftAddress(c *gin.Context) {
	var req setAddressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	d, err := s.drafts.SetAddress(c.Request.Context(), customerID(c), req.address())
	if err != nil {
		writeError(c, err)
		return
	}
	// Persisting to the address book is best-effort: the draft already
	// carries the address it will ship to.
	if err := s.addresses.Save(c.Request.Context(), customerID(c), req.address(), req.MakeDefault); err != nil {
		zctx.From(c.Request.Context()).Warn("Address book save failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, d)
}

type setPaymentMethodReq struct {
	Method string `json:"method"`
}

func (s *Server) setDraftPaymentMethod(c *gin.Context) {
	var req setPaymentMethodReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	d, err := s.drafts.SetPaymentMethod(c.Request.Context(), customerID(c), pricing.PaymentMethod(req.Method))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type applyDiscountReq struct {
	Code string `json:"code"`
}

func (s *Server) applyDiscount(c *gin.Context) {
	var req applyDiscountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	d, err := s.drafts.ApplyDiscount(c.Request.Context(), customerID(c), req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) abandonDraft(c *gin.Context) {
	if err := s.drafts.Clear(c.Request.Context(), customerID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- orders ---

func (s *Server) placeOrder(c *gin.Context) {
	ctx := c.Request.Context()
	snap, err := s.drafts.Finalize(ctx, customerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	o, err := s.orders.PlaceCOD(ctx, *snap)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) listOrders(c *gin.Context) {
	list, err := s.orders.ListByCustomer(c.Request.Context(), customerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getOrder(c *gin.Context) {
	o, err := s.orders.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	// Customers only see their own orders; existence of others' is not
	// disclosed.
	if o.CustomerID != customerID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, o)
}

// --- gateway payments ---

func (s *Server) createGatewayIntent(c *gin.Context) {
	payload, err := s.payments.CreateIntent(c.Request.Context(), customerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payload)
}

type confirmPaymentReq struct {
	GatewayOrderID   string          `json:"gateway_order_id"`
	GatewayPaymentID string          `json:"gateway_payment_id"`
	Signature        string          `json:"signature"`
	Total            decimal.Decimal `json:"total"`
}

func (s *Server) confirmGatewayPayment(c *gin.Context) {
	var req confirmPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	o, err := s.payments.Confirm(c.Request.Context(), customerID(c),
		req.GatewayOrderID, req.GatewayPaymentID, req.Signature, req.Total)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) abandonGatewayIntent(c *gin.Context) {
	if err := s.payments.Abandon(c.Request.Context(), customerID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- post-purchase requests ---

type submitRequestReq struct {
	ItemIDs     []string `json:"item_ids"`
	Reason      string   `json:"reason"`
	Comments    string   `json:"comments"`
	Attachments []string `json:"attachments"`
	BankDetails *struct {
		AccountHolder string `json:"account_holder"`
		AccountNumber string `json:"account_number"`
		IFSC          string `json:"ifsc"`
		BankName      string `json:"bank_name"`
	} `json:"bank_details"`
}

func (s *Server) submitRequest(t request.Type) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitRequestReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		sub := request.Submission{
			Type:        t,
			ItemIDs:     req.ItemIDs,
			Reason:      request.Reason(req.Reason),
			Comments:    req.Comments,
			Attachments: req.Attachments,
		}
		if req.BankDetails != nil {
			sub.BankDetails = &request.BankDetails{
				AccountHolder: req.BankDetails.AccountHolder,
				AccountNumber: req.BankDetails.AccountNumber,
				IFSC:          req.BankDetails.IFSC,
				BankName:      req.BankDetails.BankName,
			}
		}
		r, err := s.requests.Submit(c.Request.Context(), customerID(c), c.Param("id"), sub)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

func (s *Server) listOrderRequests(c *gin.Context) {
	ctx := c.Request.Context()
	o, err := s.orders.GetByID(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if o.CustomerID != customerID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	list, err := s.requests.ListByOrder(ctx, o.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// --- address book ---

func (s *Server) listAddresses(c *gin.Context) {
	list, err := s.addresses.List(c.Request.Context(), customerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) saveAddress(c *gin.Context) {
	var req setAddressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := s.addresses.Save(c.Request.Context(), customerID(c), req.address(), req.MakeDefault); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}
