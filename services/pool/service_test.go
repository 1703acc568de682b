package pool

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"licensecore/pkg/db/pagination"
	"licensecore/pkg/errutil"
	"licensecore/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &LicenseKey{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func seedKeys(t *testing.T, svc *Service, productCode string, n int) []*LicenseKey {
	t.Helper()

	materials := make([]string, 0, n)
	for i := 0; i < n; i++ {
		materials = append(materials, fmt.Sprintf("%s-KEY-%05d", productCode, i))
	}

	keys, err := svc.AddKeys(context.Background(), productCode, materials)
	require.NoError(t, err)
	return keys
}

func TestAllocateClaimsRequestedQuantity(t *testing.T) {
	svc := newTestService(t)
	seedKeys(t, svc, "WIN11PRO", 5)

	keys, err := svc.Allocate(context.Background(), "WIN11PRO", 3, "order-1", "item-1")
	require.NoError(t, err)
	require.Len(t, keys, 3)

	for _, k := range keys {
		require.Equal(t, KeyStatusSold, k.Status)
		require.NotNil(t, k.OrderID)
		require.Equal(t, "order-1", *k.OrderID)
		require.NotNil(t, k.RedeemedAt)
	}

	available, err := svc.CountAvailable(context.Background(), "WIN11PRO")
	require.NoError(t, err)
	require.EqualValues(t, 2, available)
}

func TestAllocateShortfallKeepsPartialClaims(t *testing.T) {
	svc := newTestService(t)
	seedKeys(t, svc, "WIN11PRO", 2)

	keys, err := svc.Allocate(context.Background(), "WIN11PRO", 5, "order-1", "item-1")
	require.Error(t, err)
	require.Equal(t, errutil.StatusResourceExhausted, errutil.StatusOf(err))
	require.Len(t, keys, 2)

	// The partial claims stay claimed.
	available, err := svc.CountAvailable(context.Background(), "WIN11PRO")
	require.NoError(t, err)
	require.EqualValues(t, 0, available)
}

func TestAllocateEmptyPool(t *testing.T) {
	svc := newTestService(t)

	keys, err := svc.Allocate(context.Background(), "WIN11PRO", 1, "order-1", "item-1")
	require.Error(t, err)
	require.Equal(t, errutil.StatusResourceExhausted, errutil.StatusOf(err))
	require.Empty(t, keys)
}

func TestAllocateConcurrentClaimsAreExclusive(t *testing.T) {
	svc := newTestService(t)
	seedKeys(t, svc, "WIN11PRO", 10)

	const claimers = 20

	var wg sync.WaitGroup
	results := make(chan *LicenseKey, claimers)
	for i := 0; i < claimers; i++ {
		orderID := fmt.Sprintf("order-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys, err := svc.Allocate(context.Background(), "WIN11PRO", 1, orderID, "item")
			if err == nil && len(keys) == 1 {
				results <- keys[0]
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	won := 0
	for k := range results {
		require.False(t, seen[k.ID], "key %s claimed twice", k.ID)
		seen[k.ID] = true
		won++
	}
	require.Greater(t, won, 0)

	// Every sold key is accounted for by exactly one winner.
	available, err := svc.CountAvailable(context.Background(), "WIN11PRO")
	require.NoError(t, err)
	require.EqualValues(t, 10-won, available)
}

func TestClaimSpecific(t *testing.T) {
	svc := newTestService(t)
	keys := seedKeys(t, svc, "WIN11PRO", 1)

	claimed, err := svc.ClaimSpecific(context.Background(), keys[0].ID, "order-1")
	require.NoError(t, err)
	require.Equal(t, KeyStatusSold, claimed.Status)

	// Second claim loses.
	_, err = svc.ClaimSpecific(context.Background(), keys[0].ID, "order-2")
	require.Error(t, err)
	require.Equal(t, errutil.StatusConflict, errutil.StatusOf(err))
}

func TestBlockKey(t *testing.T) {
	svc := newTestService(t)
	keys := seedKeys(t, svc, "WIN11PRO", 1)

	require.NoError(t, svc.BlockKey(context.Background(), keys[0].ID))

	// Blocked keys are not claimable.
	_, err := svc.ClaimSpecific(context.Background(), keys[0].ID, "order-1")
	require.Error(t, err)

	err = svc.BlockKey(context.Background(), keys[0].ID)
	require.Error(t, err)
	require.Equal(t, errutil.StatusConflict, errutil.StatusOf(err))
}

func TestAddKeysValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AddKeys(context.Background(), "", []string{"k"})
	require.Error(t, err)

	_, err = svc.AddKeys(context.Background(), "WIN11PRO", nil)
	require.Error(t, err)

	_, err = svc.AddKeys(context.Background(), "WIN11PRO", []string{""})
	require.Error(t, err)
}

func TestListPagination(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedKeys(t, svc, "WIN11PRO", 7)

	first, info, err := svc.List(ctx, "WIN11PRO", pagination.Pagination{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.True(t, info.HasMore)
	require.NotEmpty(t, info.NextCursor)

	second, info, err := svc.List(ctx, "WIN11PRO", pagination.Pagination{Cursor: info.NextCursor, Limit: 3})
	require.NoError(t, err)
	require.Len(t, second, 3)
	require.True(t, info.HasMore)

	third, info, err := svc.List(ctx, "WIN11PRO", pagination.Pagination{Cursor: info.NextCursor, Limit: 3})
	require.NoError(t, err)
	require.Len(t, third, 1)
	require.False(t, info.HasMore)

	seen := make(map[string]bool)
	for _, k := range append(append(first, second...), third...) {
		require.False(t, seen[k.ID], "key %s paged twice", k.ID)
		seen[k.ID] = true
	}
}

func TestListRejectsBadCursor(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.List(context.Background(), "WIN11PRO", pagination.Pagination{Cursor: "%%%"})
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestBaseKey(t *testing.T) {
	require.Equal(t, "ABCDE-12345", BaseKey("ABCDE-12345---"))
	require.Equal(t, "ABCDE-12345", BaseKey("ABCDE-12345"))
	require.Equal(t, "XXXXX-YYYYY", BaseKey("XXXXX-YYYYY-!@#"))
}
