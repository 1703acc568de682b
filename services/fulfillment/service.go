package fulfillment

import (
	"context"
	"errors"

	pkgasynq "licensecore/pkg/asynq"
	"licensecore/pkg/claim"
	"licensecore/pkg/errutil"
	"licensecore/services/catalog"
	"licensecore/services/notify"
	"licensecore/services/order"
	"licensecore/services/pool"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// codeAttempts bounds how many fresh random codes are tried before
// minting gives up.
const codeAttempts = 10

type Service struct {
	catalog  *catalog.Catalog
	orders   *order.Service
	pool     *pool.Service
	notifier notify.Notifier
	auditor  *notify.Auditor
}

type ServiceParams struct {
	fx.In
	Catalog  *catalog.Catalog
	Orders   *order.Service
	Pool     *pool.Service
	Notifier notify.Notifier
	Auditor  *notify.Auditor `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		catalog:  p.Catalog,
		orders:   p.Orders,
		pool:     p.Pool,
		notifier: p.Notifier,
		auditor:  p.Auditor,
	}
}

type ItemResult struct {
	ItemID      string   `json:"item_id"`
	ProductCode string   `json:"product_code"`
	Quantity    int      `json:"quantity"`
	KeyIDs      []string `json:"key_ids"`
	LicenseKeys []string `json:"license_keys"`
	SecretCodes []string `json:"secret_codes"`
	Shortfall   int      `json:"shortfall"`
}

type Result struct {
	OrderID          string       `json:"order_id"`
	AlreadyFulfilled bool         `json:"already_fulfilled"`
	Items            []ItemResult `json:"items"`
}

// HandlePaymentVerified fulfills an order after its payment cleared.
// Re-running it against a paid or delivered order returns the existing
// assignment without touching anything. Each line item expands combos
// into component products, claims one key per component per unit of
// quantity, and mints one surrogate secret code per unit.
func (s *Service) HandlePaymentVerified(ctx context.Context, orderID, paymentRef string) (*Result, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errutil.NotFound("order not found", nil)
	}

	if o.Status == order.StatusPaid || o.Status == order.StatusDelivered {
		return s.existingAssignment(ctx, o)
	}

	if err := s.orders.MarkPaid(ctx, o.ID, paymentRef); err != nil {
		// Lost the race against a concurrent verification of the same
		// payment. The winner's assignment is the answer.
		if errutil.Is(err, errutil.StatusUnprocessableEntity) {
			current, gerr := s.orders.Get(ctx, o.ID)
			if gerr != nil {
				return nil, gerr
			}
			return s.existingAssignment(ctx, current)
		}
		return nil, err
	}

	items, err := s.orders.Items(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	result := &Result{OrderID: o.ID, Items: make([]ItemResult, 0, len(items))}

	for _, item := range items {
		ir, err := s.fulfillItem(ctx, o, item)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, *ir)
	}

	if err := s.orders.MarkDelivered(ctx, o.ID); err != nil {
		return nil, err
	}

	s.notifyDelivered(ctx, o, result)
	if s.auditor != nil {
		s.auditor.Record(ctx, "order.fulfilled", o.ID, "system", result)
	}

	return result, nil
}

func (s *Service) fulfillItem(ctx context.Context, o *order.Order, item *order.OrderItem) (*ItemResult, error) {
	ir := &ItemResult{
		ItemID:      item.ID,
		ProductCode: item.ProductCode,
		Quantity:    item.Quantity,
	}

	components := s.catalog.Components(item.ProductCode)

	shortfall := 0
	if !s.catalog.IsPreactivated(item.ProductCode) {
		for _, component := range components {
			keys, err := s.pool.Allocate(ctx, component, item.Quantity, o.ID, item.ID)
			if err != nil && !errutil.Is(err, errutil.StatusResourceExhausted) {
				return nil, err
			}
			if err != nil {
				shortfall += item.Quantity - len(keys)
			}
			for _, k := range keys {
				ir.KeyIDs = append(ir.KeyIDs, k.ID)
				ir.LicenseKeys = append(ir.LicenseKeys, k.KeyMaterial)
			}
		}
	}

	for i := 0; i < item.Quantity; i++ {
		code, err := s.mintCode(ctx, o.ID, item.ID)
		if err != nil {
			return nil, err
		}
		ir.SecretCodes = append(ir.SecretCodes, code)
	}

	ir.Shortfall = shortfall

	status := order.ItemStatusFulfilled
	if shortfall > 0 {
		status = order.ItemStatusShortfall
	}
	if err := s.orders.SetItemAssignment(ctx, item.ID, ir.KeyIDs, ir.SecretCodes, status); err != nil {
		return nil, err
	}

	return ir, nil
}

// mintCode generates random codes until one inserts cleanly. A unique
// violation means the randomness collided with an existing code, so
// the attempt is retried with a new draw.
func (s *Service) mintCode(ctx context.Context, orderID, itemID string) (string, error) {
	code, err := claim.Do(ctx, codeAttempts, func(ctx context.Context) (string, bool, error) {
		candidate, err := GenerateSecretCode()
		if err != nil {
			return "", false, err
		}

		if err := s.orders.MintSecretCode(ctx, orderID, itemID, candidate); err != nil {
			if errutil.Is(err, errutil.StatusConflict) {
				return "", false, nil
			}
			return "", false, err
		}

		return candidate, true, nil
	})
	if errors.Is(err, claim.ErrExhausted) {
		return "", errutil.ResourceExhausted("secret code generation exhausted", err)
	}
	return code, err
}

func (s *Service) existingAssignment(ctx context.Context, o *order.Order) (*Result, error) {
	items, err := s.orders.Items(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	keys, err := s.pool.ByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	materialByID := make(map[string]string, len(keys))
	for _, k := range keys {
		materialByID[k.ID] = k.KeyMaterial
	}

	result := &Result{OrderID: o.ID, AlreadyFulfilled: true, Items: make([]ItemResult, 0, len(items))}
	for _, item := range items {
		ir := ItemResult{
			ItemID:      item.ID,
			ProductCode: item.ProductCode,
			Quantity:    item.Quantity,
			KeyIDs:      item.LicenseKeyIDs,
			SecretCodes: item.SecretCodes,
		}
		for _, id := range item.LicenseKeyIDs {
			if m, ok := materialByID[id]; ok {
				ir.LicenseKeys = append(ir.LicenseKeys, m)
			}
		}
		result.Items = append(result.Items, ir)
	}

	return result, nil
}

func (s *Service) notifyDelivered(ctx context.Context, o *order.Order, result *Result) {
	payload := pkgasynq.LicenseDeliveryPayload{
		OrderID: o.ID,
		Email:   o.BillingEmail,
	}
	for _, ir := range result.Items {
		payload.LicenseKeys = append(payload.LicenseKeys, ir.LicenseKeys...)
		payload.SecretCodes = append(payload.SecretCodes, ir.SecretCodes...)
		payload.ProductCodes = append(payload.ProductCodes, ir.ProductCode)
	}

	s.notifier.LicenseDelivered(ctx, payload)
	zap.L().Info("order fulfilled",
		zap.String("order_id", o.ID),
		zap.Int("items", len(result.Items)),
	)
}
