package warranty

import (
	"context"
	"io"
	"strings"
	"time"

	pkgasynq "licensecore/pkg/asynq"
	"licensecore/pkg/errutil"
	"licensecore/pkg/repository"
	"licensecore/services/catalog"
	"licensecore/services/notify"
	"licensecore/services/order"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	repo     repository.Repository[Registration]
	catalog  *catalog.Catalog
	orders   *order.Service
	proofs   ProofStore
	notifier notify.Notifier
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Catalog  *catalog.Catalog
	Orders   *order.Service
	Proofs   ProofStore
	Notifier notify.Notifier
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		repo:     repository.ProvideStore[Registration](p.DB),
		catalog:  p.Catalog,
		orders:   p.Orders,
		proofs:   p.Proofs,
		notifier: p.Notifier,
	}
}

type SubmitInput struct {
	OrderID             string
	ContactEmail        string
	ProofSellerFeedback string
	ProofProductReview  string
}

// Submit registers a warranty for an order. Website orders are
// verified immediately with no proofs; marketplace channels require
// both proof screenshots and start in PROCESSING. Resubmitting an
// order whose registration was sent back accepts the flagged proofs
// and returns it to PROCESSING; any other existing registration is
// returned as-is without mutation.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Registration, error) {
	in.OrderID = strings.TrimSpace(in.OrderID)
	if in.OrderID == "" {
		return nil, errutil.BadRequest("order id is required", nil)
	}

	o, err := s.orders.Get(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errutil.NotFound("order not found", nil)
	}

	existing, err := s.repo.FindOne(ctx, &Registration{OrderID: o.ID})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == StatusNeedsResubmission {
			return s.applyResubmission(ctx, existing, in.ProofSellerFeedback, in.ProofProductReview)
		}
		return existing, nil
	}

	behavior := s.catalog.ChannelBehavior(o.Channel)

	reg := &Registration{
		ID:           s.node.Generate().String(),
		OrderID:      o.ID,
		Channel:      o.Channel,
		ContactEmail: in.ContactEmail,
		Status:       StatusProcessing,
	}

	if behavior.AutoVerifyWarranty {
		now := time.Now()
		reg.Status = StatusVerified
		reg.VerifiedAt = &now
	} else if behavior.RequiresProofs {
		if in.ProofSellerFeedback == "" || in.ProofProductReview == "" {
			return nil, errutil.ValidationFailed("both proof screenshots are required", nil,
				errutil.WithDetails(
					errutil.Detail{Field: "proof_seller_feedback", Message: "required"},
					errutil.Detail{Field: "proof_product_review", Message: "required"},
				))
		}
		reg.ProofSellerFeedback = in.ProofSellerFeedback
		reg.ProofProductReview = in.ProofProductReview
	}

	if err := s.repo.Create(ctx, reg); err != nil {
		return nil, err
	}

	if reg.Status == StatusVerified {
		s.notifier.WarrantyDecided(ctx, pkgasynq.WarrantyDecisionPayload{
			WarrantyID: reg.ID,
			OrderID:    reg.OrderID,
			Email:      reg.ContactEmail,
			Status:     string(reg.Status),
		})
	}

	return reg, nil
}

// UploadProof stores one proof screenshot and returns its URL.
func (s *Service) UploadProof(ctx context.Context, orderID, kind string, r io.Reader, size int64, contentType string) (string, error) {
	name := orderID + "-" + kind + "-" + s.node.Generate().String()
	return s.proofs.Put(ctx, name, r, size, contentType)
}

type StatusResult struct {
	Found           bool       `json:"found"`
	Status          Status     `json:"status,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

// Status is the customer-facing warranty lookup.
func (s *Service) Status(ctx context.Context, orderID string) (*StatusResult, error) {
	reg, err := s.repo.FindOne(ctx, &Registration{OrderID: strings.TrimSpace(orderID)})
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return &StatusResult{Found: false}, nil
	}

	return &StatusResult{
		Found:           true,
		Status:          reg.Status,
		VerifiedAt:      reg.VerifiedAt,
		RejectionReason: reg.RejectionReason,
	}, nil
}

// ByOrder returns the registration for an order, nil when absent.
func (s *Service) ByOrder(ctx context.Context, orderID string) (*Registration, error) {
	return s.repo.FindOne(ctx, &Registration{OrderID: strings.TrimSpace(orderID)})
}

// Approve moves a PROCESSING registration to VERIFIED and clears the
// missing-proof flags. A registration waiting on resubmitted proofs
// must come back through the customer resubmit path first.
func (s *Service) Approve(ctx context.Context, id, notes string) (*Registration, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&Registration{}).
		Where("id = ? AND status = ?", id, StatusProcessing).
		Updates(map[string]any{
			"status":                  StatusVerified,
			"verified_at":             now,
			"missing_seller_feedback": false,
			"missing_product_review":  false,
			"admin_notes":             notes,
			"updated_at":              now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.alreadyProcessed(ctx, id)
	}

	return s.decided(ctx, id, "")
}

// Reject moves a PROCESSING registration to REJECTED. The reason is
// mandatory and surfaces in the customer status lookup.
func (s *Service) Reject(ctx context.Context, id, reason, notes string) (*Registration, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errutil.BadRequest("rejection reason is required", nil)
	}

	res := s.db.WithContext(ctx).Model(&Registration{}).
		Where("id = ? AND status = ?", id, StatusProcessing).
		Updates(map[string]any{
			"status":           StatusRejected,
			"rejection_reason": reason,
			"admin_notes":      notes,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.alreadyProcessed(ctx, id)
	}

	return s.decided(ctx, id, reason)
}

// RequestResubmission sends the registration back to the customer with
// the proofs that need replacing flagged.
func (s *Service) RequestResubmission(ctx context.Context, id string, missingSeller, missingReview bool, notes string) (*Registration, error) {
	if !missingSeller && !missingReview {
		return nil, errutil.BadRequest("at least one missing proof must be flagged", nil)
	}

	res := s.db.WithContext(ctx).Model(&Registration{}).
		Where("id = ? AND status = ?", id, StatusProcessing).
		Updates(map[string]any{
			"status":                  StatusNeedsResubmission,
			"missing_seller_feedback": missingSeller,
			"missing_product_review":  missingReview,
			"admin_notes":             notes,
			"reminder_count":          0,
			"updated_at":              time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.alreadyProcessed(ctx, id)
	}

	reg, err := s.decided(ctx, id, "")
	if err != nil {
		return nil, err
	}

	s.notifier.RemindResubmission(ctx, pkgasynq.ResubmissionReminderPayload{
		WarrantyID: reg.ID,
		OrderID:    reg.OrderID,
		Email:      reg.ContactEmail,
	})

	return reg, nil
}

// Resubmit lets the customer replace proofs after a resubmission
// request, returning the registration to PROCESSING.
func (s *Service) Resubmit(ctx context.Context, orderID, sellerFeedback, productReview string) (*Registration, error) {
	reg, err := s.ByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, errutil.NotFound("warranty registration not found", nil)
	}

	return s.applyResubmission(ctx, reg, sellerFeedback, productReview)
}

// applyResubmission attaches the proofs flagged as missing, leaves the
// others untouched, and moves the registration back to PROCESSING. The
// conditional update keys on NEEDS_RESUBMISSION so a registration
// resolved in the meantime fails as already processed.
func (s *Service) applyResubmission(ctx context.Context, reg *Registration, sellerFeedback, productReview string) (*Registration, error) {
	updates := map[string]any{
		"status":             StatusProcessing,
		"resubmission_count": gorm.Expr("resubmission_count + 1"),
		"updated_at":         time.Now(),
	}
	if reg.MissingSellerFeedback {
		if sellerFeedback == "" {
			return nil, errutil.ValidationFailed("seller feedback proof is required", nil)
		}
		updates["proof_seller_feedback"] = sellerFeedback
		updates["missing_seller_feedback"] = false
	}
	if reg.MissingProductReview {
		if productReview == "" {
			return nil, errutil.ValidationFailed("product review proof is required", nil)
		}
		updates["proof_product_review"] = productReview
		updates["missing_product_review"] = false
	}

	res := s.db.WithContext(ctx).Model(&Registration{}).
		Where("id = ? AND status = ?", reg.ID, StatusNeedsResubmission).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.alreadyProcessed(ctx, reg.ID)
	}

	return s.repo.FindOne(ctx, &Registration{ID: reg.ID})
}

func (s *Service) alreadyProcessed(ctx context.Context, id string) error {
	current, err := s.repo.FindOne(ctx, &Registration{ID: id})
	if err != nil {
		return err
	}
	if current == nil {
		return errutil.NotFound("warranty registration not found", nil)
	}
	return errutil.UnprocessableEntity("warranty already processed", nil,
		errutil.WithDetails(errutil.Detail{Field: "status", Message: string(current.Status)}))
}

func (s *Service) decided(ctx context.Context, id, reason string) (*Registration, error) {
	reg, err := s.repo.FindOne(ctx, &Registration{ID: id})
	if err != nil {
		return nil, err
	}

	s.notifier.WarrantyDecided(ctx, pkgasynq.WarrantyDecisionPayload{
		WarrantyID: reg.ID,
		OrderID:    reg.OrderID,
		Email:      reg.ContactEmail,
		Status:     string(reg.Status),
		Reason:     reason,
	})
	zap.L().Info("warranty transition",
		zap.String("warranty_id", reg.ID),
		zap.String("order_id", reg.OrderID),
		zap.String("status", string(reg.Status)),
	)

	return reg, nil
}
