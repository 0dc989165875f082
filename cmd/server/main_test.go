package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminguard/internal/identity/credentials"
	identitystore "adminguard/internal/identity/store"
	"adminguard/internal/platform/config"
	"adminguard/internal/platform/logger"
	"adminguard/pkg/platform/sentinel"
)

func TestBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	log := logger.NewWithWriter(&strings.Builder{}, "error")

	t.Run("provisions mfa from the configured secret", func(t *testing.T) {
		secret, err := credentials.NewTOTPSecret("adminguard", "root@example.com")
		require.NoError(t, err)
		store := identitystore.NewInMemoryStore()

		err = bootstrapAdmin(ctx, config.Bootstrap{
			Email: "root@example.com", Password: "bootstrap-pass", MFASecret: strings.ToLower(secret),
		}, store, log)
		require.NoError(t, err)

		root, err := store.GetIdentityByEmail(ctx, "root@example.com")
		require.NoError(t, err)
		assert.True(t, root.MFAEnabled)
		assert.Equal(t, secret, root.MFASecret)

		now := time.Now()
		code, err := credentials.GenerateTOTP(secret, now)
		require.NoError(t, err)
		assert.True(t, credentials.VerifyTOTP(root.MFASecret, code, now))
	})

	t.Run("without a secret the admin has no mfa", func(t *testing.T) {
		store := identitystore.NewInMemoryStore()
		require.NoError(t, bootstrapAdmin(ctx, config.Bootstrap{Email: "root@example.com", Password: "bootstrap-pass"}, store, log))

		root, err := store.GetIdentityByEmail(ctx, "root@example.com")
		require.NoError(t, err)
		assert.False(t, root.MFAEnabled)
	})

	t.Run("malformed secret stops startup", func(t *testing.T) {
		store := identitystore.NewInMemoryStore()
		err := bootstrapAdmin(ctx, config.Bootstrap{
			Email: "root@example.com", Password: "bootstrap-pass", MFASecret: "not base32!",
		}, store, log)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BOOTSTRAP_ADMIN_MFA_SECRET")

		_, err = store.GetIdentityByEmail(ctx, "root@example.com")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("existing admin is left alone", func(t *testing.T) {
		store := identitystore.NewInMemoryStore()
		cfg := config.Bootstrap{Email: "root@example.com", Password: "bootstrap-pass"}
		require.NoError(t, bootstrapAdmin(ctx, cfg, store, log))
		require.NoError(t, bootstrapAdmin(ctx, cfg, store, log))
	})

	t.Run("nothing configured", func(t *testing.T) {
		require.NoError(t, bootstrapAdmin(ctx, config.Bootstrap{}, identitystore.NewInMemoryStore(), log))
	})
}
