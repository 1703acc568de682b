package apikey

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"licensecore/pkg/errutil"
	"licensecore/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &APIKey{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func TestCreateAndValidate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	plaintext, key, err := svc.CreateKey(ctx, []string{"verify", "admin"}, "ops@example.com", nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(plaintext, "lck_live_"))
	require.Equal(t, APIKeyStatusActive, key.Status)

	// Only the hash is stored.
	require.NotContains(t, key.SecretHash, strings.Split(plaintext, ".")[1])

	scopes, err := svc.Validate(ctx, plaintext)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"verify", "admin"}, scopes)
}

func TestCreateKeyRequiresScopes(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.CreateKey(context.Background(), nil, "", nil)
	require.Error(t, err)
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))
}

func TestValidateRejections(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	plaintext, key, err := svc.CreateKey(ctx, []string{"verify"}, "", nil)
	require.NoError(t, err)

	cases := map[string]string{
		"no separator":  "lck_live_abcdef",
		"empty secret":  key.KeyID + ".",
		"unknown key":   "lck_live_ffffffffffffffff.secret",
		"wrong secret":  key.KeyID + ".wrong",
		"swapped parts": strings.Split(plaintext, ".")[1] + "." + key.KeyID,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Validate(ctx, raw)
			require.Error(t, err)
			require.Equal(t, errutil.StatusUnauthorized, errutil.StatusOf(err))
		})
	}
}

func TestValidateExpiredKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	plaintext, _, err := svc.CreateKey(ctx, []string{"verify"}, "", &past)
	require.NoError(t, err)

	_, err = svc.Validate(ctx, plaintext)
	require.Error(t, err)
	require.Equal(t, errutil.StatusUnauthorized, errutil.StatusOf(err))
}

func TestRevoke(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	plaintext, key, err := svc.CreateKey(ctx, []string{"verify"}, "", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, key.KeyID))

	_, err = svc.Validate(ctx, plaintext)
	require.Error(t, err)
	require.Equal(t, errutil.StatusUnauthorized, errutil.StatusOf(err))

	// Revoking twice finds no active key.
	err = svc.Revoke(ctx, key.KeyID)
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}
