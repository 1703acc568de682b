package verification

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"licensecore/pkg/errutil"
	"licensecore/services/catalog"
	"licensecore/services/fulfillment"
	"licensecore/services/notify"
	"licensecore/services/order"
	"licensecore/services/pool"
	"licensecore/services/replacement"
	"licensecore/services/testutil"
	"licensecore/services/warranty"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	db           *gorm.DB
	svc          *Service
	orders       *order.Service
	pool         *pool.Service
	warranties   *warranty.Service
	replacements *replacement.Service
	fulfillment  *fulfillment.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&order.Order{},
		&order.OrderItem{},
		&order.SecretCode{},
		&pool.LicenseKey{},
		&warranty.Registration{},
		&replacement.Request{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cat := catalog.New()
	orders := order.NewService(order.ServiceParams{DB: db, Node: node})
	keys := pool.NewService(pool.ServiceParams{DB: db, Node: node})
	warranties := warranty.NewService(warranty.ServiceParams{
		DB:       db,
		Node:     node,
		Catalog:  cat,
		Orders:   orders,
		Proofs:   warranty.NewMemoryStore(),
		Notifier: notify.Nop{},
	})
	replacements := replacement.NewService(replacement.ServiceParams{
		DB:       db,
		Node:     node,
		Orders:   orders,
		Pool:     keys,
		Notifier: notify.Nop{},
	})
	ff := fulfillment.NewService(fulfillment.ServiceParams{
		Catalog:  cat,
		Orders:   orders,
		Pool:     keys,
		Notifier: notify.Nop{},
	})

	svc := NewService(ServiceParams{
		Catalog:      cat,
		Orders:       orders,
		Pool:         keys,
		Warranties:   warranties,
		Replacements: replacements,
	})

	return &fixture{
		db:           db,
		svc:          svc,
		orders:       orders,
		pool:         keys,
		warranties:   warranties,
		replacements: replacements,
		fulfillment:  ff,
	}
}

// fulfilledOrder seeds keys, creates the order and runs it through
// payment verification. Returns the order id and its secret codes.
func (f *fixture) fulfilledOrder(t *testing.T, orderID, productCode string, qty int) (string, []string) {
	t.Helper()
	ctx := context.Background()

	for _, component := range catalog.New().Components(productCode) {
		materials := make([]string, 0, qty)
		for i := 0; i < qty; i++ {
			materials = append(materials, fmt.Sprintf("%s-KEY-%05d", component, i))
		}
		_, err := f.pool.AddKeys(ctx, component, materials)
		require.NoError(t, err)
	}

	o, err := f.orders.Create(ctx, orderID, catalog.ChannelAmazonFBA, "buyer@example.com", "",
		[]order.ItemInput{{ProductCode: productCode, Quantity: qty}})
	require.NoError(t, err)

	result, err := f.fulfillment.HandlePaymentVerified(ctx, o.ID, "pay-1")
	require.NoError(t, err)

	return o.ID, result.Items[0].SecretCodes
}

func TestVerifyFormatGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Verify(ctx, "  ")
	require.Error(t, err)
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))

	_, err = f.svc.Verify(ctx, "not-an-identifier")
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))

	// Too short for a secret code.
	_, err = f.svc.Verify(ctx, "1234567890")
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestVerifyUnknownOrder(t *testing.T) {
	f := newFixture(t)

	snap, err := f.svc.Verify(context.Background(), "111-1234567-1234567")
	require.NoError(t, err)
	require.False(t, snap.Valid)
	require.False(t, snap.OrderFound)
	require.Equal(t, IdentifierMarketplaceOrder, snap.IdentifierType)
	require.Len(t, snap.SuggestedActions, 1)
	require.Contains(t, snap.SuggestedActions[0], "No order found")
}

func TestVerifyByMarketplaceOrderID(t *testing.T) {
	f := newFixture(t)
	orderID, _ := f.fulfilledOrder(t, "171-1234567-1234567", "WIN11PRO", 1)

	// Embedded spaces are stripped before matching.
	snap, err := f.svc.Verify(context.Background(), " 171-1234567-1234567 ")
	require.NoError(t, err)
	require.True(t, snap.Valid)
	require.True(t, snap.OrderFound)
	require.Equal(t, orderID, snap.Order.OrderID)
	require.Equal(t, string(order.StatusDelivered), snap.Order.Status)
	require.Len(t, snap.LicenseKeys, 1)
	require.True(t, snap.LicenseKeys[0].Redeemed)
}

func TestVerifyBySecretCode(t *testing.T) {
	f := newFixture(t)
	orderID, codes := f.fulfilledOrder(t, "171-1234567-1234567", "WIN11PRO", 1)
	require.NotEmpty(t, codes)

	snap, err := f.svc.Verify(context.Background(), codes[0])
	require.NoError(t, err)
	require.True(t, snap.OrderFound)
	require.Equal(t, IdentifierSecretCode, snap.IdentifierType)
	require.Equal(t, orderID, snap.Order.OrderID)
}

func TestVerifyUnfulfilledOrderNotRedeemed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Order exists but has not been through payment verification, so no
	// keys are attached yet.
	o, err := f.orders.Create(ctx, "171-7654321-7654321", catalog.ChannelAmazonFBA, "buyer@example.com", "",
		[]order.ItemInput{{ProductCode: "WIN11PRO", Quantity: 1}})
	require.NoError(t, err)

	snap, err := f.svc.Verify(ctx, o.ID)
	require.NoError(t, err)
	require.True(t, snap.OrderFound)
	require.Empty(t, snap.LicenseKeys)

	var notRedeemed string
	for _, a := range snap.SuggestedActions {
		if strings.Contains(a, "No license key redeemed yet") {
			notRedeemed = a
		}
	}
	require.NotEmpty(t, notRedeemed)
}

func TestVerifyFraudDominates(t *testing.T) {
	f := newFixture(t)
	orderID, _ := f.fulfilledOrder(t, "171-1234567-1234567", "WIN11PRO", 1)

	err := f.db.Model(&order.Order{}).Where("id = ?", orderID).
		Updates(map[string]any{
			"is_fraud":     true,
			"fraud_reason": "chargeback",
			"is_returned":  true,
		}).Error
	require.NoError(t, err)

	snap, err := f.svc.Verify(context.Background(), orderID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(snap.SuggestedActions), 2)
	require.Contains(t, snap.SuggestedActions[0], "fraud")
	require.Contains(t, snap.SuggestedActions[0], "chargeback")
	require.Contains(t, snap.SuggestedActions[1], "returned or refunded")
}

func TestVerifyComboNote(t *testing.T) {
	f := newFixture(t)
	orderID, _ := f.fulfilledOrder(t, "171-1234567-1234567", "OFFICE21PP-WIN11PRO", 1)

	snap, err := f.svc.Verify(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, snap.Combos, 1)
	require.Equal(t, []string{"OFFICE21PP", "WIN11PRO"}, snap.Combos[0].Components)
	require.Len(t, snap.LicenseKeys, 2)

	var comboNote string
	for _, a := range snap.SuggestedActions {
		if strings.Contains(a, "Combo order") {
			comboNote = a
		}
	}
	require.NotEmpty(t, comboNote)
	require.Contains(t, comboNote, "one key per component")
}

func TestVerifyPreactivated(t *testing.T) {
	f := newFixture(t)
	orderID, _ := f.fulfilledOrder(t, "171-1234567-1234567", "OFFICE365-PREACT", 1)

	snap, err := f.svc.Verify(context.Background(), orderID)
	require.NoError(t, err)
	require.True(t, snap.Preactivated)
	require.Empty(t, snap.LicenseKeys)

	for _, a := range snap.SuggestedActions {
		require.NotContains(t, a, "🔑")
	}
	require.Contains(t, snap.SuggestedActions[len(snap.SuggestedActions)-1], "no license key is required")
}

func TestVerifyWarrantyAndReplacementSections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, _ := f.fulfilledOrder(t, "171-1234567-1234567", "WIN11PRO", 1)

	snap, err := f.svc.Verify(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, snap.Warranty)
	require.False(t, snap.Warranty.Registered)
	require.NotNil(t, snap.Replacement)
	require.False(t, snap.Replacement.HasRequest)

	_, err = f.warranties.Submit(ctx, warranty.SubmitInput{
		OrderID:             orderID,
		ProofSellerFeedback: "https://proofs/seller.png",
		ProofProductReview:  "https://proofs/review.png",
	})
	require.NoError(t, err)

	_, err = f.replacements.Create(ctx, replacement.CreateInput{
		OrderID:       orderID,
		ScreenshotURL: "https://proofs/error.png",
	})
	require.NoError(t, err)

	snap, err = f.svc.Verify(ctx, orderID)
	require.NoError(t, err)
	require.True(t, snap.Warranty.Registered)
	require.Equal(t, string(warranty.StatusProcessing), snap.Warranty.Status)
	require.True(t, snap.Replacement.HasRequest)
	require.Equal(t, string(replacement.StatusPending), snap.Replacement.Status)
	require.Equal(t, 1, snap.Replacement.HistoryCount)

	var pendingNote string
	for _, a := range snap.SuggestedActions {
		if strings.Contains(a, "pending review") {
			pendingNote = a
		}
	}
	require.NotEmpty(t, pendingNote)
}
