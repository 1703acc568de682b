package pool

import (
	"context"
	"regexp"
	"time"

	"licensecore/pkg/claim"
	"licensecore/pkg/db/option"
	"licensecore/pkg/db/pagination"
	"licensecore/pkg/errutil"
	"licensecore/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// claimAttempts bounds how many times a single claim retries after
// losing the conditional update race.
const claimAttempts = 5

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[LicenseKey]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[LicenseKey](p.DB),
	}
}

// Allocate claims up to qty available keys for the given product.
// Claims already won are kept even when the pool runs dry mid-way; the
// shortfall is reported as a resource-exhausted error alongside the
// partial result.
func (s *Service) Allocate(ctx context.Context, productCode string, qty int, orderID, orderItemID string) ([]*LicenseKey, error) {
	if qty <= 0 {
		return nil, errutil.BadRequest("quantity must be positive", nil)
	}

	claimed := make([]*LicenseKey, 0, qty)
	for i := 0; i < qty; i++ {
		key, err := claim.Do(ctx, claimAttempts, func(ctx context.Context) (*LicenseKey, bool, error) {
			return s.claimOne(ctx, productCode, orderID, orderItemID)
		})
		if err != nil {
			zap.L().Warn("license pool shortfall",
				zap.String("product_code", productCode),
				zap.String("order_id", orderID),
				zap.Int("requested", qty),
				zap.Int("claimed", len(claimed)),
				zap.Error(err),
			)
			return claimed, errutil.ResourceExhausted("insufficient license inventory", err)
		}
		claimed = append(claimed, key)
	}

	return claimed, nil
}

// claimOne fetches one candidate and races for it with a conditional
// update. ok=false means another claimer got there first.
func (s *Service) claimOne(ctx context.Context, productCode, orderID, orderItemID string) (*LicenseKey, bool, error) {
	candidate, err := s.repo.FindOne(ctx,
		&LicenseKey{ProductCode: productCode, Status: KeyStatusAvailable},
		option.WithLimit(1),
	)
	if err != nil {
		return nil, false, err
	}
	if candidate == nil {
		return nil, false, errutil.NotFound("no available keys for product", nil)
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&LicenseKey{}).
		Where("id = ? AND status = ?", candidate.ID, KeyStatusAvailable).
		Updates(map[string]any{
			"status":        KeyStatusSold,
			"order_id":      orderID,
			"order_item_id": orderItemID,
			"redeemed_at":   now,
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}

	candidate.Status = KeyStatusSold
	candidate.OrderID = &orderID
	candidate.OrderItemID = &orderItemID
	candidate.RedeemedAt = &now

	return candidate, true, nil
}

// ClaimSpecific takes ownership of one named key. Used by replacement
// approval, where the admin already picked the candidate.
func (s *Service) ClaimSpecific(ctx context.Context, keyID, orderID string) (*LicenseKey, error) {
	return s.claimSpecific(ctx, s.db, keyID, orderID)
}

// ClaimSpecificTx is ClaimSpecific inside a caller-owned transaction.
func (s *Service) ClaimSpecificTx(ctx context.Context, tx *gorm.DB, keyID, orderID string) (*LicenseKey, error) {
	return s.claimSpecific(ctx, tx, keyID, orderID)
}

func (s *Service) claimSpecific(ctx context.Context, db *gorm.DB, keyID, orderID string) (*LicenseKey, error) {
	now := time.Now()
	res := db.WithContext(ctx).Model(&LicenseKey{}).
		Where("id = ? AND status = ?", keyID, KeyStatusAvailable).
		Updates(map[string]any{
			"status":      KeyStatusSold,
			"order_id":    orderID,
			"redeemed_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errutil.Conflict("license key is not available", nil)
	}

	key, err := s.repo.WithTrx(db).FindOne(ctx, &LicenseKey{ID: keyID})
	if err != nil {
		return nil, err
	}

	return key, nil
}

// AddKeys bulk-imports key material into the pool.
func (s *Service) AddKeys(ctx context.Context, productCode string, materials []string) ([]*LicenseKey, error) {
	if productCode == "" || len(materials) == 0 {
		return nil, errutil.BadRequest("product code and key material are required", nil)
	}

	keys := make([]*LicenseKey, 0, len(materials))
	for _, m := range materials {
		if m == "" {
			return nil, errutil.ValidationFailed("empty key material", nil)
		}
		keys = append(keys, &LicenseKey{
			ID:          s.node.Generate().String(),
			ProductCode: productCode,
			KeyMaterial: m,
			Status:      KeyStatusAvailable,
		})
	}

	if err := s.repo.BatchCreate(ctx, keys); err != nil {
		return nil, err
	}

	return keys, nil
}

// BlockKey pulls an available key out of circulation.
func (s *Service) BlockKey(ctx context.Context, keyID string) error {
	res := s.db.WithContext(ctx).Model(&LicenseKey{}).
		Where("id = ? AND status = ?", keyID, KeyStatusAvailable).
		Update("status", KeyStatusBlocked)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("license key is not available", nil)
	}
	return nil
}

func (s *Service) CountAvailable(ctx context.Context, productCode string) (int64, error) {
	return s.repo.Count(ctx, &LicenseKey{ProductCode: productCode, Status: KeyStatusAvailable})
}

// Get returns a key by ID, nil when absent.
func (s *Service) Get(ctx context.Context, keyID string) (*LicenseKey, error) {
	return s.repo.FindOne(ctx, &LicenseKey{ID: keyID})
}

// ByOrder lists the keys currently owned by an order.
func (s *Service) ByOrder(ctx context.Context, orderID string) ([]*LicenseKey, error) {
	return s.repo.Find(ctx, &LicenseKey{OrderID: &orderID})
}

// List pages through the pool with a keyset cursor on the snowflake id,
// which is time-ordered. productCode narrows the page when non-empty.
func (s *Service) List(ctx context.Context, productCode string, page pagination.Pagination) ([]*LicenseKey, *pagination.PageInfo, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 10
	}

	q := s.db.WithContext(ctx).Model(&LicenseKey{})
	if productCode != "" {
		q = q.Where("product_code = ?", productCode)
	}
	if page.Cursor != "" {
		cur, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, nil, errutil.ValidationFailed("invalid cursor", err)
		}
		q = q.Where("id > ?", cur.ID)
	}

	var keys []*LicenseKey
	if err := q.Order("id asc").Limit(limit + 1).Find(&keys).Error; err != nil {
		return nil, nil, err
	}

	info := pagination.BuildCursorPageInfo(keys, int32(limit), func(k *LicenseKey) string {
		c, _ := pagination.EncodeCursor(pagination.Cursor{ID: k.ID})
		return c
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}

	return keys, info, nil
}

// AvailableForProduct lists unclaimed keys for a product.
func (s *Service) AvailableForProduct(ctx context.Context, productCode string) ([]*LicenseKey, error) {
	return s.repo.Find(ctx, &LicenseKey{ProductCode: productCode, Status: KeyStatusAvailable})
}

var baseKeySuffix = regexp.MustCompile(`[-~!@#$%^&*()_+=\[\]{}|;:'",.<>?\\/]+$`)

// BaseKey strips the trailing punctuation suffix off key material so
// keys sharing a base can be recognized.
func BaseKey(material string) string {
	return baseKeySuffix.ReplaceAllString(material, "")
}
