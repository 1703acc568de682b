package verification

import (
	"context"
	"regexp"
	"strings"

	"licensecore/pkg/errutil"
	"licensecore/services/catalog"
	"licensecore/services/order"
	"licensecore/services/pool"
	"licensecore/services/replacement"
	"licensecore/services/warranty"

	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

var (
	marketplaceOrderRe = regexp.MustCompile(`^\d{3}-\d{7}-\d{7}$`)
	secretCodeRe       = regexp.MustCompile(`^\d{14,17}$`)
)

type Service struct {
	catalog      *catalog.Catalog
	orders       *order.Service
	pool         *pool.Service
	warranties   *warranty.Service
	replacements *replacement.Service
}

type ServiceParams struct {
	fx.In
	Catalog      *catalog.Catalog
	Orders       *order.Service
	Pool         *pool.Service
	Warranties   *warranty.Service
	Replacements *replacement.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		catalog:      p.Catalog,
		orders:       p.Orders,
		pool:         p.Pool,
		warranties:   p.Warranties,
		replacements: p.Replacements,
	}
}

// Verify resolves an identifier to the full support snapshot. Unknown
// orders are an answer, not an error: the snapshot comes back with
// OrderFound=false. Only a malformed identifier is rejected.
func (s *Service) Verify(ctx context.Context, identifier string) (*Snapshot, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(identifier), " ", "")
	if clean == "" {
		return nil, errutil.BadRequest("identifier is required", nil)
	}

	var idType IdentifierType
	switch {
	case marketplaceOrderRe.MatchString(clean):
		idType = IdentifierMarketplaceOrder
	case secretCodeRe.MatchString(clean):
		idType = IdentifierSecretCode
	default:
		return nil, errutil.ValidationFailed("invalid format: expected a marketplace order id or a 14-17 digit secret code", nil)
	}

	var (
		o   *order.Order
		err error
	)
	if idType == IdentifierMarketplaceOrder {
		o, err = s.orders.Get(ctx, clean)
	} else {
		o, err = s.orders.GetBySecretCode(ctx, clean)
	}
	if err != nil {
		return nil, err
	}

	if o == nil {
		return &Snapshot{
			Valid:          false,
			OrderFound:     false,
			Identifier:     clean,
			IdentifierType: idType,
			LicenseKeys:    []KeyInfo{},
			SuggestedActions: []string{
				"❌ No order found for this identifier. Ask the customer to double-check it.",
			},
		}, nil
	}

	return s.assemble(ctx, clean, idType, o)
}

func (s *Service) assemble(ctx context.Context, identifier string, idType IdentifierType, o *order.Order) (*Snapshot, error) {
	var (
		items  []*order.OrderItem
		keys   []*pool.LicenseKey
		reg    *warranty.Registration
		active *replacement.Request
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = s.orders.Items(gctx, o.ID)
		return err
	})
	g.Go(func() (err error) {
		keys, err = s.pool.ByOrder(gctx, o.ID)
		return err
	})
	g.Go(func() (err error) {
		reg, err = s.warranties.ByOrder(gctx, o.ID)
		return err
	})
	g.Go(func() (err error) {
		active, err = s.replacements.Active(gctx, o.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	history, err := s.replacements.History(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	f := &facts{
		order:    o,
		items:    items,
		keys:     keys,
		warranty: reg,
		active:   active,
	}

	summary := &OrderSummary{
		OrderID:     o.ID,
		Status:      string(o.Status),
		Channel:     o.Channel,
		PaidAt:      o.PaidAt,
		DeliveredAt: o.DeliveredAt,
	}

	combos := make([]ComboInfo, 0)
	preactivated := false
	for _, item := range items {
		summary.ProductCodes = append(summary.ProductCodes, item.ProductCode)
		summary.DisplayNames = append(summary.DisplayNames, s.catalog.DisplayName(item.ProductCode))

		if item.ProductCode == "" {
			f.missingCode = true
			continue
		}
		if s.catalog.IsCombo(item.ProductCode) {
			name := s.catalog.DisplayName(item.ProductCode)
			combos = append(combos, ComboInfo{
				ProductCode: item.ProductCode,
				DisplayName: name,
				Components:  s.catalog.Components(item.ProductCode),
			})
			f.comboNames = append(f.comboNames, name)
		}
		if s.catalog.IsPreactivated(item.ProductCode) {
			preactivated = true
		}
	}
	f.preactivated = preactivated

	keyInfos := make([]KeyInfo, 0, len(keys))
	for _, k := range keys {
		keyInfos = append(keyInfos, KeyInfo{
			KeyID:       k.ID,
			ProductCode: k.ProductCode,
			Redeemed:    k.RedeemedAt != nil,
			RedeemedAt:  k.RedeemedAt,
			IsActive:    o.ActiveLicenseKeyID != nil && *o.ActiveLicenseKeyID == k.ID,
		})
	}

	snap := &Snapshot{
		Valid:           true,
		OrderFound:      true,
		Identifier:      identifier,
		IdentifierType:  idType,
		Order:           summary,
		LicenseKeys:     keyInfos,
		Combos:          combos,
		Preactivated:    preactivated,
		PhoneActivation: o.PhoneActivationUsed,
	}

	if reg != nil {
		snap.Warranty = &WarrantyInfo{
			Registered:      true,
			Status:          string(reg.Status),
			VerifiedAt:      reg.VerifiedAt,
			RejectionReason: reg.RejectionReason,
		}
	} else {
		snap.Warranty = &WarrantyInfo{Registered: false}
	}

	if active != nil {
		snap.Replacement = &ReplacementInfo{
			HasRequest:   true,
			Status:       string(active.Status),
			IsInstant:    active.IsInstant,
			HistoryCount: len(history),
		}
	} else {
		snap.Replacement = &ReplacementInfo{HasRequest: false}
	}

	snap.SuggestedActions = suggestedActions(f)

	return snap, nil
}
