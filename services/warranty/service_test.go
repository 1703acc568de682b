package warranty

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"licensecore/pkg/errutil"
	"licensecore/services/catalog"
	"licensecore/services/notify"
	"licensecore/services/order"
	"licensecore/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	svc    *Service
	orders *order.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&order.Order{},
		&order.OrderItem{},
		&order.SecretCode{},
		&Registration{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	orders := order.NewService(order.ServiceParams{DB: db, Node: node})

	svc := NewService(ServiceParams{
		DB:       db,
		Node:     node,
		Catalog:  catalog.New(),
		Orders:   orders,
		Proofs:   NewMemoryStore(),
		Notifier: notify.Nop{},
	})

	return &fixture{svc: svc, orders: orders}
}

func (f *fixture) createOrder(t *testing.T, id, channel string) *order.Order {
	t.Helper()

	o, err := f.orders.Create(context.Background(), id, channel, "buyer@example.com", "",
		[]order.ItemInput{{ProductCode: "WIN11PRO", Quantity: 1}})
	require.NoError(t, err)
	return o
}

func TestSubmitWebsiteAutoVerifies(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, "", catalog.ChannelWebsitePayment)

	reg, err := f.svc.Submit(context.Background(), SubmitInput{OrderID: o.ID, ContactEmail: "buyer@example.com"})
	require.NoError(t, err)
	require.Equal(t, StatusVerified, reg.Status)
	require.NotNil(t, reg.VerifiedAt)
	require.Empty(t, reg.ProofSellerFeedback)
}

func TestSubmitMarketplaceRequiresBothProofs(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, "171-1234567-1234567", catalog.ChannelAmazonFBA)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		OrderID:             o.ID,
		ProofSellerFeedback: "https://proofs/seller.png",
	})
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))

	reg, err := f.svc.Submit(context.Background(), SubmitInput{
		OrderID:             o.ID,
		ProofSellerFeedback: "https://proofs/seller.png",
		ProofProductReview:  "https://proofs/review.png",
	})
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, reg.Status)
	require.Nil(t, reg.VerifiedAt)
}

func TestSubmitExistingReturnsCurrent(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, "", catalog.ChannelWebsitePayment)

	first, err := f.svc.Submit(context.Background(), SubmitInput{OrderID: o.ID})
	require.NoError(t, err)
	require.Equal(t, StatusVerified, first.Status)

	// A second submission is answered with the existing registration,
	// not a duplicate row and not an error.
	again, err := f.svc.Submit(context.Background(), SubmitInput{OrderID: o.ID})
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, StatusVerified, again.Status)
}

func TestSubmitDispatchesResubmission(t *testing.T) {
	f := newFixture(t)
	reg := submitProcessing(t, f)
	ctx := context.Background()

	_, err := f.svc.RequestResubmission(ctx, reg.ID, true, false, "seller proof is cropped")
	require.NoError(t, err)

	// Submitting again without the flagged proof is rejected.
	_, err = f.svc.Submit(ctx, SubmitInput{OrderID: reg.OrderID})
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))

	back, err := f.svc.Submit(ctx, SubmitInput{
		OrderID:             reg.OrderID,
		ProofSellerFeedback: "https://proofs/seller-v2.png",
	})
	require.NoError(t, err)
	require.Equal(t, reg.ID, back.ID)
	require.Equal(t, StatusProcessing, back.Status)
	require.False(t, back.MissingSellerFeedback)
	require.Equal(t, 1, back.ResubmissionCount)
	require.Equal(t, "https://proofs/seller-v2.png", back.ProofSellerFeedback)
	// The proof that was never flagged stays untouched.
	require.Equal(t, "https://proofs/review.png", back.ProofProductReview)
}

func TestSubmitUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), SubmitInput{OrderID: "missing"})
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func submitProcessing(t *testing.T, f *fixture) *Registration {
	t.Helper()

	o := f.createOrder(t, "171-1234567-1234567", catalog.ChannelAmazonFBA)
	reg, err := f.svc.Submit(context.Background(), SubmitInput{
		OrderID:             o.ID,
		ContactEmail:        "buyer@example.com",
		ProofSellerFeedback: "https://proofs/seller.png",
		ProofProductReview:  "https://proofs/review.png",
	})
	require.NoError(t, err)
	return reg
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	reg := submitProcessing(t, f)

	approved, err := f.svc.Approve(context.Background(), reg.ID, "all good")
	require.NoError(t, err)
	require.Equal(t, StatusVerified, approved.Status)
	require.NotNil(t, approved.VerifiedAt)
	require.False(t, approved.MissingSellerFeedback)
	require.False(t, approved.MissingProductReview)

	// Approving twice is a stale action.
	_, err = f.svc.Approve(context.Background(), reg.ID, "again")
	require.Error(t, err)
	require.Equal(t, errutil.StatusUnprocessableEntity, errutil.StatusOf(err))
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	reg := submitProcessing(t, f)

	_, err := f.svc.Reject(context.Background(), reg.ID, "", "notes")
	require.Error(t, err)
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))

	rejected, err := f.svc.Reject(context.Background(), reg.ID, "screenshots unreadable", "notes")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "screenshots unreadable", rejected.RejectionReason)
}

func TestResubmissionRoundTrip(t *testing.T) {
	f := newFixture(t)
	reg := submitProcessing(t, f)
	ctx := context.Background()

	flagged, err := f.svc.RequestResubmission(ctx, reg.ID, true, false, "seller proof is cropped")
	require.NoError(t, err)
	require.Equal(t, StatusNeedsResubmission, flagged.Status)
	require.True(t, flagged.MissingSellerFeedback)
	require.Zero(t, flagged.ReminderCount)

	// Customer must replace the flagged proof.
	_, err = f.svc.Resubmit(ctx, reg.OrderID, "", "")
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))

	back, err := f.svc.Resubmit(ctx, reg.OrderID, "https://proofs/seller-v2.png", "")
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, back.Status)
	require.False(t, back.MissingSellerFeedback)
	require.Equal(t, 1, back.ResubmissionCount)
	require.Equal(t, "https://proofs/seller-v2.png", back.ProofSellerFeedback)
}

func TestAdminDecisionRequiresProcessing(t *testing.T) {
	f := newFixture(t)
	reg := submitProcessing(t, f)
	ctx := context.Background()

	_, err := f.svc.RequestResubmission(ctx, reg.ID, false, true, "")
	require.NoError(t, err)

	// A registration waiting on the customer cannot be decided.
	_, err = f.svc.Approve(ctx, reg.ID, "")
	require.Error(t, err)
	require.Equal(t, errutil.StatusUnprocessableEntity, errutil.StatusOf(err))

	_, err = f.svc.Reject(ctx, reg.ID, "fake screenshot", "")
	require.Error(t, err)
	require.Equal(t, errutil.StatusUnprocessableEntity, errutil.StatusOf(err))

	_, err = f.svc.Resubmit(ctx, reg.OrderID, "", "https://proofs/review-v2.png")
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, reg.ID, "resubmitted proof is fine")
	require.NoError(t, err)
	require.Equal(t, StatusVerified, approved.Status)
}

func TestRequestResubmissionNeedsFlag(t *testing.T) {
	f := newFixture(t)
	reg := submitProcessing(t, f)

	_, err := f.svc.RequestResubmission(context.Background(), reg.ID, false, false, "")
	require.Error(t, err)
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))
}

func TestStatusLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missing, err := f.svc.Status(ctx, "unknown-order")
	require.NoError(t, err)
	require.False(t, missing.Found)

	reg := submitProcessing(t, f)
	_, err = f.svc.Reject(ctx, reg.ID, "fake screenshot", "")
	require.NoError(t, err)

	res, err := f.svc.Status(ctx, reg.OrderID)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, StatusRejected, res.Status)
	require.Equal(t, "fake screenshot", res.RejectionReason)
}
