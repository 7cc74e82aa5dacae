package auth

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vakspot/vakspot/internal/models"
	"github.com/vakspot/vakspot/internal/testutil"
)

func TestProvider_Authenticate(t *testing.T) {
	db := testutil.NewDB(t)
	provider, err := NewProvider(db, zerolog.Nop())
	require.NoError(t, err)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	pro := testutil.CreateUser(t, db, "Pro@VakSpot.nl", models.RolePro, hash)
	testutil.CreateUser(t, db, "nopass@vakspot.nl", models.RoleClient, "")

	ctx := context.Background()

	t.Run("correct credentials", func(t *testing.T) {
		p, err := provider.Authenticate(ctx, "pro@vakspot.nl", "correct horse")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, pro.ID, p.ID)
		assert.Equal(t, models.RolePro, p.Role)
	})

	t.Run("email is case insensitive", func(t *testing.T) {
		p, err := provider.Authenticate(ctx, "  PRO@vakspot.NL ", "correct horse")
		require.NoError(t, err)
		require.NotNil(t, p)
	})

	failures := map[string][2]string{
		"wrong password":    {"pro@vakspot.nl", "wrong horse"},
		"unknown email":     {"ghost@vakspot.nl", "correct horse"},
		"no password set":   {"nopass@vakspot.nl", ""},
		"no password match": {"nopass@vakspot.nl", "anything"},
	}
	for name, creds := range failures {
		t.Run(name, func(t *testing.T) {
			p, err := provider.Authenticate(ctx, creds[0], creds[1])
			assert.NoError(t, err)
			assert.Nil(t, p)
		})
	}
}
