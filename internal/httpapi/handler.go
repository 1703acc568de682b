package httpapi

import (
	"net/http"

	"licensecore/pkg/db/pagination"
	"licensecore/pkg/errutil"
	"licensecore/pkg/middleware"
	"licensecore/services/fulfillment"
	"licensecore/services/order"
	"licensecore/services/pool"
	"licensecore/services/replacement"
	"licensecore/services/verification"
	"licensecore/services/warranty"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type Handler struct {
	orders       *order.Service
	fulfillment  *fulfillment.Service
	pool         *pool.Service
	warranties   *warranty.Service
	replacements *replacement.Service
	verification *verification.Service
}

type HandlerParams struct {
	fx.In
	Orders       *order.Service
	Fulfillment  *fulfillment.Service
	Pool         *pool.Service
	Warranties   *warranty.Service
	Replacements *replacement.Service
	Verification *verification.Service
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		orders:       p.Orders,
		fulfillment:  p.Fulfillment,
		pool:         p.Pool,
		warranties:   p.Warranties,
		replacements: p.Replacements,
		verification: p.Verification,
	}
}

type createOrderRequest struct {
	OrderID string `json:"order_id"`
	Channel string `json:"channel"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Items   []struct {
		ProductCode string `json:"product_code" binding:"required"`
		Quantity    int    `json:"quantity" binding:"required"`
	} `json:"items" binding:"required"`
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	items := make([]order.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.ItemInput{ProductCode: it.ProductCode, Quantity: it.Quantity})
	}

	// The body wins; the X-Sales-Channel header fills the gap for
	// upstream syncers that send it per request instead.
	channel := req.Channel
	if channel == "" {
		channel = middleware.GetChannel(c.Request.Context())
	}

	o, err := h.orders.Create(c.Request.Context(), req.OrderID, channel, req.Email, req.Phone, items)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, o)
}

type verifyPaymentRequest struct {
	OrderID    string `json:"order_id" binding:"required"`
	PaymentRef string `json:"payment_ref"`
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	result, err := h.fulfillment.HandlePaymentVerified(c.Request.Context(), req.OrderID, req.PaymentRef)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type warrantySubmitRequest struct {
	OrderID             string `json:"order_id" binding:"required"`
	ContactEmail        string `json:"contact_email"`
	ProofSellerFeedback string `json:"proof_seller_feedback"`
	ProofProductReview  string `json:"proof_product_review"`
}

func (h *Handler) SubmitWarranty(c *gin.Context) {
	var req warrantySubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	reg, err := h.warranties.Submit(c.Request.Context(), warranty.SubmitInput{
		OrderID:             req.OrderID,
		ContactEmail:        req.ContactEmail,
		ProofSellerFeedback: req.ProofSellerFeedback,
		ProofProductReview:  req.ProofProductReview,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, reg)
}

func (h *Handler) WarrantyStatus(c *gin.Context) {
	orderID := c.Query("orderId")
	if orderID == "" {
		c.Error(errutil.BadRequest("orderId query parameter is required", nil))
		return
	}

	res, err := h.warranties.Status(c.Request.Context(), orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, res)
}

type warrantyResubmitRequest struct {
	OrderID             string `json:"order_id" binding:"required"`
	ProofSellerFeedback string `json:"proof_seller_feedback"`
	ProofProductReview  string `json:"proof_product_review"`
}

func (h *Handler) ResubmitWarranty(c *gin.Context) {
	var req warrantyResubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	reg, err := h.warranties.Resubmit(c.Request.Context(), req.OrderID, req.ProofSellerFeedback, req.ProofProductReview)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, reg)
}

type warrantyAdminRequest struct {
	Action                string `json:"action" binding:"required"` // approve | reject | resubmit
	Reason                string `json:"reason"`
	Notes                 string `json:"notes"`
	MissingSellerFeedback bool   `json:"missing_seller_feedback"`
	MissingProductReview  bool   `json:"missing_product_review"`
}

func (h *Handler) AdminWarranty(c *gin.Context) {
	var req warrantyAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	id := c.Param("id")
	ctx := c.Request.Context()

	var (
		reg *warranty.Registration
		err error
	)
	switch req.Action {
	case "approve":
		reg, err = h.warranties.Approve(ctx, id, req.Notes)
	case "reject":
		reg, err = h.warranties.Reject(ctx, id, req.Reason, req.Notes)
	case "resubmit":
		reg, err = h.warranties.RequestResubmission(ctx, id, req.MissingSellerFeedback, req.MissingProductReview, req.Notes)
	default:
		err = errutil.BadRequest("unknown action", nil)
	}
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, reg)
}

type replacementCreateRequest struct {
	OrderID       string `json:"order_id" binding:"required"`
	CustomerEmail string `json:"customer_email"`
	ScreenshotURL string `json:"screenshot_url" binding:"required"`
}

func (h *Handler) CreateReplacement(c *gin.Context) {
	var req replacementCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	r, err := h.replacements.Create(c.Request.Context(), replacement.CreateInput{
		OrderID:       req.OrderID,
		CustomerEmail: req.CustomerEmail,
		ScreenshotURL: req.ScreenshotURL,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, r)
}

type replacementAdminRequest struct {
	Action     string `json:"action" binding:"required"` // approve | reject
	NewKeyID   string `json:"new_key_id"`
	Notes      string `json:"notes"`
	ReviewedBy string `json:"reviewed_by"`
}

func (h *Handler) AdminReplacement(c *gin.Context) {
	var req replacementAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	id := c.Param("id")
	ctx := c.Request.Context()

	var (
		r   *replacement.Request
		err error
	)
	switch req.Action {
	case "approve":
		r, err = h.replacements.Approve(ctx, id, req.NewKeyID, req.Notes, req.ReviewedBy)
	case "reject":
		r, err = h.replacements.Reject(ctx, id, req.Notes, req.ReviewedBy)
	default:
		err = errutil.BadRequest("unknown action", nil)
	}
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, r)
}

type instantReplacementRequest struct {
	OrderID        string `json:"order_id" binding:"required"`
	InstallationID string `json:"installation_id" binding:"required"`
}

func (h *Handler) InstantReplacement(c *gin.Context) {
	var req instantReplacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	r, material, err := h.replacements.InstantReplace(c.Request.Context(), req.OrderID, req.InstallationID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"request_id":      r.ID,
		"replacement_key": material,
	})
}

type verifyOrderRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

func (h *Handler) VerifyOrder(c *gin.Context) {
	var req verifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	snap, err := h.verification.Verify(c.Request.Context(), req.Identifier)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

type addKeysRequest struct {
	ProductCode string   `json:"product_code" binding:"required"`
	Keys        []string `json:"keys" binding:"required"`
}

func (h *Handler) AddKeys(c *gin.Context) {
	var req addKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	keys, err := h.pool.AddKeys(c.Request.Context(), req.ProductCode, req.Keys)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"added": len(keys)})
}

func (h *Handler) BlockKey(c *gin.Context) {
	if err := h.pool.BlockKey(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"blocked": true})
}

func (h *Handler) ListKeys(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.Error(errutil.BadRequest("invalid pagination parameters", err))
		return
	}

	keys, info, err := h.pool.List(c.Request.Context(), c.Query("product_code"), page)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": keys, "page_info": info})
}

func (h *Handler) Inventory(c *gin.Context) {
	productCode := c.Query("product_code")
	if productCode == "" {
		c.Error(errutil.BadRequest("product_code query parameter is required", nil))
		return
	}

	count, err := h.pool.CountAvailable(c.Request.Context(), productCode)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"product_code": productCode, "available": count})
}
