package replacement

import (
	"context"
	"strings"
	"time"

	pkgasynq "licensecore/pkg/asynq"
	"licensecore/pkg/db/option"
	"licensecore/pkg/errutil"
	"licensecore/pkg/repository"
	"licensecore/services/notify"
	"licensecore/services/order"
	"licensecore/services/pool"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	repo     repository.Repository[Request]
	orders   *order.Service
	pool     *pool.Service
	notifier notify.Notifier
	auditor  *notify.Auditor
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Orders   *order.Service
	Pool     *pool.Service
	Notifier notify.Notifier
	Auditor  *notify.Auditor `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		repo:     repository.ProvideStore[Request](p.DB),
		orders:   p.Orders,
		pool:     p.Pool,
		notifier: p.Notifier,
		auditor:  p.Auditor,
	}
}

type CreateInput struct {
	OrderID       string
	CustomerEmail string
	ScreenshotURL string
}

// Create records a customer replacement request in PENDING. Earlier
// requests for the same order stay untouched as history.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Request, error) {
	in.OrderID = strings.TrimSpace(in.OrderID)
	if in.OrderID == "" || in.ScreenshotURL == "" {
		return nil, errutil.BadRequest("order id and screenshot are required", nil)
	}

	o, err := s.orders.Get(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errutil.NotFound("order not found", nil)
	}

	req := &Request{
		ID:            s.node.Generate().String(),
		OrderID:       o.ID,
		CustomerEmail: in.CustomerEmail,
		ScreenshotURL: in.ScreenshotURL,
		Status:        StatusPending,
	}

	items, err := s.orders.Items(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		req.ProductCode = items[0].ProductCode
	}

	keys, err := s.pool.ByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		req.OriginalKeyID = &keys[0].ID
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	return req, nil
}

// Approve grants a pending request with an admin-picked replacement
// key. Claiming the key, repointing the order's active key and marking
// the request approved happen in one transaction; a stale request or a
// taken key rolls everything back.
func (s *Service) Approve(ctx context.Context, id, newKeyID, notes, reviewedBy string) (*Request, error) {
	if newKeyID == "" {
		return nil, errutil.BadRequest("replacement key is required", nil)
	}

	req, err := s.repo.FindOne(ctx, &Request{ID: id})
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errutil.NotFound("replacement request not found", nil)
	}
	if req.Status != StatusPending {
		return nil, errutil.UnprocessableEntity("replacement request already processed", nil,
			errutil.WithDetails(errutil.Detail{Field: "status", Message: string(req.Status)}))
	}

	candidate, err := s.pool.Get(ctx, newKeyID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, errutil.NotFound("replacement key not found", nil)
	}
	if candidate.Status != pool.KeyStatusAvailable {
		return nil, errutil.Conflict("replacement key is not available", nil)
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.pool.ClaimSpecificTx(ctx, tx, newKeyID, req.OrderID); err != nil {
			return err
		}

		if err := s.orders.SetActiveKey(ctx, tx, req.OrderID, newKeyID); err != nil {
			return err
		}

		res := tx.Model(&Request{}).
			Where("id = ? AND status = ?", req.ID, StatusPending).
			Updates(map[string]any{
				"status":      StatusApproved,
				"new_key_id":  newKeyID,
				"admin_notes": notes,
				"reviewed_by": reviewedBy,
				"reviewed_at": now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.UnprocessableEntity("replacement request already processed", nil)
		}

		return nil
	}); err != nil {
		return nil, err
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, "replacement.approved", req.ID, reviewedBy, map[string]string{
			"order_id":   req.OrderID,
			"new_key_id": newKeyID,
		})
	}

	return s.decided(ctx, req.ID, candidate.KeyMaterial)
}

// Reject declines a pending request. Notes are mandatory so the
// customer learns why.
func (s *Service) Reject(ctx context.Context, id, notes, reviewedBy string) (*Request, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, errutil.BadRequest("admin notes are required to reject", nil)
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&Request{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]any{
			"status":      StatusRejected,
			"admin_notes": notes,
			"reviewed_by": reviewedBy,
			"reviewed_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := s.repo.FindOne(ctx, &Request{ID: id})
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, errutil.NotFound("replacement request not found", nil)
		}
		return nil, errutil.UnprocessableEntity("replacement request already processed", nil,
			errutil.WithDetails(errutil.Detail{Field: "status", Message: string(current.Status)}))
	}

	return s.decided(ctx, id, "")
}

// InstantReplace is the self-service path for blocked installation
// IDs: one per order, auto-approved, and the replacement must not
// share a base key with anything already assigned to the order.
func (s *Service) InstantReplace(ctx context.Context, orderID, installationID string) (*Request, string, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" || installationID == "" {
		return nil, "", errutil.BadRequest("order id and installation id are required", nil)
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	if o == nil {
		return nil, "", errutil.NotFound("order not found", nil)
	}

	used, err := s.repo.Count(ctx, &Request{OrderID: o.ID, Status: StatusApproved, IsInstant: true})
	if err != nil {
		return nil, "", err
	}
	if used > 0 {
		return nil, "", errutil.Forbidden("instant replacement already used for this order", nil)
	}

	currentKeys, err := s.pool.ByOrder(ctx, o.ID)
	if err != nil {
		return nil, "", err
	}

	items, err := s.orders.Items(ctx, o.ID)
	if err != nil {
		return nil, "", err
	}
	if len(items) == 0 {
		return nil, "", errutil.NotFound("order has no items", nil)
	}
	productCode := items[0].ProductCode

	available, err := s.pool.AvailableForProduct(ctx, productCode)
	if err != nil {
		return nil, "", err
	}

	currentBases := make(map[string]struct{}, len(currentKeys))
	for _, k := range currentKeys {
		currentBases[pool.BaseKey(k.KeyMaterial)] = struct{}{}
	}

	var selected *pool.LicenseKey
	for _, k := range available {
		if _, same := currentBases[pool.BaseKey(k.KeyMaterial)]; !same {
			selected = k
			break
		}
	}
	if selected == nil {
		return nil, "", errutil.NotFound("no replacement keys with a different base key available", nil)
	}

	req := &Request{
		ID:            s.node.Generate().String(),
		OrderID:       o.ID,
		CustomerEmail: o.BillingEmail,
		ProductCode:   productCode,
		NewKeyID:      &selected.ID,
		ScreenshotURL: "instant:blocked-installation-id/" + installationID,
		Status:        StatusApproved,
		IsInstant:     true,
		AdminNotes:    "AUTO-APPROVED: instant replacement for blocked installation id",
	}
	if len(currentKeys) > 0 {
		req.OriginalKeyID = &currentKeys[0].ID
	}
	now := time.Now()
	req.ReviewedAt = &now

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.pool.ClaimSpecificTx(ctx, tx, selected.ID, o.ID); err != nil {
			return err
		}

		if err := s.orders.SetActiveKey(ctx, tx, o.ID, selected.ID); err != nil {
			return err
		}

		return s.repo.WithTrx(tx).Create(ctx, req)
	}); err != nil {
		return nil, "", err
	}

	zap.L().Info("instant replacement granted",
		zap.String("order_id", o.ID),
		zap.String("new_key_id", selected.ID),
	)
	if s.auditor != nil {
		s.auditor.Record(ctx, "replacement.instant", req.ID, "customer", map[string]string{
			"order_id":        o.ID,
			"installation_id": installationID,
		})
	}

	s.notifier.ReplacementDecided(ctx, pkgasynq.ReplacementDecisionPayload{
		RequestID: req.ID,
		OrderID:   req.OrderID,
		Email:     req.CustomerEmail,
		Status:    string(req.Status),
		NewKey:    selected.KeyMaterial,
	})

	return req, selected.KeyMaterial, nil
}

// Active returns the newest request for an order, nil when none exist.
func (s *Service) Active(ctx context.Context, orderID string) (*Request, error) {
	reqs, err := s.History(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return reqs[0], nil
}

// History returns all requests for an order, newest first.
func (s *Service) History(ctx context.Context, orderID string) ([]*Request, error) {
	return s.repo.Find(ctx, &Request{OrderID: strings.TrimSpace(orderID)},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
	)
}

func (s *Service) decided(ctx context.Context, id, newKey string) (*Request, error) {
	req, err := s.repo.FindOne(ctx, &Request{ID: id})
	if err != nil {
		return nil, err
	}

	s.notifier.ReplacementDecided(ctx, pkgasynq.ReplacementDecisionPayload{
		RequestID: req.ID,
		OrderID:   req.OrderID,
		Email:     req.CustomerEmail,
		Status:    string(req.Status),
		NewKey:    newKey,
		Notes:     req.AdminNotes,
	})

	return req, nil
}
