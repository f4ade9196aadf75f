package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/pkg/contracts/domain"
)

func TestAccountCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := NewAccountService(newFakeAccounts(), time.Minute, nil)

	created, err := svc.Create(ctx, "user-1", "  Funded Eval ", "usd")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Funded Eval", created.Name)
	assert.Equal(t, "USD", created.Currency)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestAccountCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewAccountService(newFakeAccounts(), time.Minute, nil)

	_, err := svc.Create(ctx, "user-1", "   ", "USD")
	assert.Error(t, err)

	_, err = svc.Create(ctx, "user-1", "Main", "dollars")
	assert.Error(t, err)
}

func TestAccountGetMissing(t *testing.T) {
	svc := NewAccountService(newFakeAccounts(), time.Minute, nil)
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountListServedFromCache(t *testing.T) {
	ctx := context.Background()
	store := newFakeAccounts("acct-1")
	svc := NewAccountService(store, time.Minute, nil)

	first, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Mutate the store behind the cache; the stale list is expected
	// until the TTL expires or a create invalidates it.
	store.accounts["acct-2"] = domain.Account{ID: "acct-2", UserID: "user-1", Name: "Second", Currency: "EUR"}
	cached, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	_, err = svc.Create(ctx, "user-1", "Third", "GBP")
	require.NoError(t, err)
	fresh, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, fresh, 3)
}
