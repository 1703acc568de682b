package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"licensecore/pkg/errutil"
	"licensecore/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	repo  repository.Repository[Order]
	items repository.Repository[OrderItem]
	codes repository.Repository[SecretCode]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		repo:  repository.ProvideStore[Order](p.DB),
		items: repository.ProvideStore[OrderItem](p.DB),
		codes: repository.ProvideStore[SecretCode](p.DB),
	}
}

type ItemInput struct {
	ProductCode string
	Quantity    int
}

// Create records a new order with its line items. Marketplace orders
// pass their marketplace order id; website orders pass "" and get a
// generated id.
func (s *Service) Create(ctx context.Context, id, channel, email, phone string, items []ItemInput) (*Order, error) {
	if len(items) == 0 {
		return nil, errutil.BadRequest("order has no items", nil)
	}

	if id == "" {
		id = s.node.Generate().String()
	}
	id = strings.TrimSpace(id)

	o := &Order{
		ID:           id,
		Status:       StatusCreated,
		Channel:      channel,
		BillingEmail: email,
		BillingPhone: phone,
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTrx(tx).Create(ctx, o); err != nil {
			return err
		}

		rows := make([]*OrderItem, 0, len(items))
		for _, in := range items {
			if in.Quantity <= 0 {
				return errutil.ValidationFailed("item quantity must be positive", nil)
			}
			rows = append(rows, &OrderItem{
				ID:          s.node.Generate().String(),
				OrderID:     o.ID,
				ProductCode: in.ProductCode,
				Quantity:    in.Quantity,
				Status:      ItemStatusPending,
			})
		}

		return s.items.WithTrx(tx).BatchCreate(ctx, rows)
	}); err != nil {
		return nil, err
	}

	return o, nil
}

// Get returns an order by id, nil when absent.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.repo.FindOne(ctx, &Order{ID: strings.TrimSpace(id)})
}

// GetBySecretCode resolves a surrogate code back to its order.
func (s *Service) GetBySecretCode(ctx context.Context, code string) (*Order, error) {
	sc, err := s.codes.FindOne(ctx, &SecretCode{Code: code})
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, nil
	}
	return s.Get(ctx, sc.OrderID)
}

func (s *Service) Items(ctx context.Context, orderID string) ([]*OrderItem, error) {
	return s.items.Find(ctx, &OrderItem{OrderID: orderID})
}

// MarkPaid advances created -> paid. Any other current status reports
// the order as already processed.
func (s *Service) MarkPaid(ctx context.Context, id, paymentRef string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", id, StatusCreated).
		Updates(map[string]any{
			"status":      StatusPaid,
			"payment_ref": paymentRef,
			"paid_at":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.UnprocessableEntity("order already processed", nil)
	}
	return nil
}

// MarkDelivered advances paid -> delivered.
func (s *Service) MarkDelivered(ctx context.Context, id string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", id, StatusPaid).
		Updates(map[string]any{
			"status":       StatusDelivered,
			"delivered_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.UnprocessableEntity("order already processed", nil)
	}
	return nil
}

// MintSecretCode records a surrogate code for an order item. A unique
// violation on the code column is reported as a conflict so the caller
// can retry with fresh randomness.
func (s *Service) MintSecretCode(ctx context.Context, orderID, orderItemID, code string) error {
	err := s.codes.Create(ctx, &SecretCode{
		ID:          s.node.Generate().String(),
		Code:        code,
		OrderID:     orderID,
		OrderItemID: orderItemID,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return errutil.Conflict("secret code already exists", err)
		}
		return err
	}
	return nil
}

// SetItemAssignment writes the allocated keys and codes onto an item.
func (s *Service) SetItemAssignment(ctx context.Context, itemID string, keyIDs, codes []string, status ItemStatus) error {
	return s.items.Update(ctx, itemID, map[string]any{
		"license_key_ids": pq.StringArray(keyIDs),
		"secret_codes":    pq.StringArray(codes),
		"status":          status,
		"updated_at":      time.Now(),
	})
}

// SetActiveKey repoints the order's active license key. Runs in the
// caller's transaction when tx is non-nil.
func (s *Service) SetActiveKey(ctx context.Context, tx *gorm.DB, orderID, keyID string) error {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTrx(tx)
	}
	return repo.Update(ctx, orderID, map[string]any{
		"active_license_key_id": keyID,
		"updated_at":            time.Now(),
	})
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry")
}
