package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kc-allan/at-insurance/internal/model"
)

func TestMemoryFarmerUniquePhone(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreateFarmer(ctx, model.Farmer{ID: "f1", Phone: "+254712345678", Name: "Wanjiru"}))
	err := store.CreateFarmer(ctx, model.Farmer{ID: "f2", Phone: "+254712345678", Name: "Otieno"})
	assert.ErrorIs(t, err, ErrDuplicate)

	farmer, err := store.GetFarmerByPhone(ctx, "+254712345678")
	require.NoError(t, err)
	assert.Equal(t, "f1", farmer.ID)

	_, err = store.GetFarmerByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryFarmerConcurrentRegister(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- store.CreateFarmer(ctx, model.Farmer{ID: string(rune('a' + i)), Phone: "+254700000001"})
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrDuplicate)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestMemoryListingsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, store.CreatePolicy(ctx, model.Policy{ID: id, FarmerID: "f1", CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, store.CreatePolicy(ctx, model.Policy{ID: "other", FarmerID: "f2", CreatedAt: base}))

	policies, err := store.ListPoliciesByFarmer(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, policies, 3)
	assert.Equal(t, "p3", policies[0].ID)
	assert.Equal(t, "p1", policies[2].ID)

	require.NoError(t, store.CreateClaim(ctx, model.Claim{ID: "c1", PolicyID: "p1", FarmerID: "f1"}))
	require.NoError(t, store.CreateClaim(ctx, model.Claim{ID: "c2", PolicyID: "p2", FarmerID: "f1"}))
	require.NoError(t, store.CreateClaim(ctx, model.Claim{ID: "c3", PolicyID: "p1", FarmerID: "f1"}))

	claims, err := store.ListClaimsByPolicy(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, "c3", claims[0].ID)

	claims, err = store.ListClaimsByFarmer(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, claims, 3)
}

func TestMemoryClaimImages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateClaim(ctx, model.Claim{ID: "c1"}))

	err := store.AddClaimImages(ctx, []model.ClaimImage{{ID: "i0", ClaimID: "missing"}})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.AddClaimImages(ctx, []model.ClaimImage{
		{ID: "i1", ClaimID: "c1", ImagePath: "a.jpg"},
		{ID: "i2", ClaimID: "c1", ImagePath: "b.png"},
	}))
	images, err := store.ListClaimImages(ctx, []string{"c1"})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "a.jpg", images[0].ImagePath)
	assert.Equal(t, "b.png", images[1].ImagePath)
}

func TestMemoryOTPSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.PutOTPSession(ctx, model.OTPSession{Phone: "+254712345678", CodeHash: "h1", CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute)}))
	attempts, err := store.IncrementOTPAttempts(ctx, "+254712345678")
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)

	// Upsert replaces the code and resets attempts.
	require.NoError(t, store.PutOTPSession(ctx, model.OTPSession{Phone: "+254712345678", CodeHash: "h2", CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute)}))
	session, err := store.GetOTPSession(ctx, "+254712345678")
	require.NoError(t, err)
	assert.Equal(t, "h2", session.CodeHash)
	assert.Zero(t, session.Attempts)

	deleted, err := store.DeleteOTPSession(ctx, "+254712345678", "h1")
	require.NoError(t, err)
	assert.False(t, deleted, "a replaced code must not consume the new session")
	deleted, err = store.DeleteOTPSession(ctx, "+254712345678", "h2")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = store.DeleteOTPSession(ctx, "+254712345678", "h2")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = store.IncrementOTPAttempts(ctx, "+254712345678")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDeleteExpiredOTPSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.PutOTPSession(ctx, model.OTPSession{Phone: "+254700000001", ExpiresAt: now.Add(-time.Second)}))
	require.NoError(t, store.PutOTPSession(ctx, model.OTPSession{Phone: "+254700000002", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, store.PutOTPSession(ctx, model.OTPSession{Phone: "+254700000003", ExpiresAt: now.Add(-time.Hour)}))

	// Cutoff ten minutes back: only sessions expired before it are dropped.
	removed, err := store.DeleteExpiredOTPSessions(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = store.GetOTPSession(ctx, "+254700000003")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetOTPSession(ctx, "+254700000001")
	assert.NoError(t, err, "recently expired sessions stay until the cutoff passes them")
	_, err = store.GetOTPSession(ctx, "+254700000002")
	assert.NoError(t, err)
}
