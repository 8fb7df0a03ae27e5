package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kc-allan/at-insurance/internal/db"
	"github.com/kc-allan/at-insurance/internal/model"
)

func openTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("db connect error: %v", err)
	}
	if _, err := db.Migrate(ctx, db.OpenSQL(pool), zap.NewNop()); err != nil {
		pool.Close()
		t.Fatalf("migrate error: %v", err)
	}
	return pool
}

func TestPostgresStoreRecords(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	ctx := context.Background()
	store := NewPostgresStore(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)
	phone := fmt.Sprintf("+2547%08d", now.UnixNano()%100000000)

	farmer := model.Farmer{ID: uuid.NewString(), Name: "Achieng", Phone: phone, County: "Kisumu", JoinDate: now, CreatedAt: now, UpdatedAt: now}
	if err := store.CreateFarmer(ctx, farmer); err != nil {
		t.Fatalf("create farmer error: %v", err)
	}
	dup := farmer
	dup.ID = uuid.NewString()
	if err := store.CreateFarmer(ctx, dup); err != ErrDuplicate {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	got, err := store.GetFarmerByPhone(ctx, phone)
	if err != nil || got.ID != farmer.ID {
		t.Fatalf("expected farmer by phone, got %v", err)
	}
	if _, err := store.GetFarmerByID(ctx, "not-a-uuid"); err != ErrNotFound {
		t.Fatalf("expected not found for malformed id, got %v", err)
	}

	policy := model.Policy{
		ID: uuid.NewString(), FarmerID: farmer.ID, Type: model.PolicyTypeCrop, Product: "Maize",
		Coverage: "2 acres", Premium: 1000, Status: model.PolicyStatusActive,
		ValidFrom: now, ValidTo: now.Add(365 * 24 * time.Hour), CreatedAt: now,
	}
	if err := store.CreatePolicy(ctx, policy); err != nil {
		t.Fatalf("create policy error: %v", err)
	}
	policies, err := store.ListPoliciesByFarmer(ctx, farmer.ID)
	if err != nil || len(policies) != 1 || policies[0].Premium != 1000 {
		t.Fatalf("unexpected policies: %v %v", policies, err)
	}

	claim := model.Claim{
		ID: uuid.NewString(), PolicyID: policy.ID, FarmerID: farmer.ID, Reason: model.ClaimReasonDrought,
		Description: "Crops dried out in the long dry spell", Status: model.ClaimStatusPending,
		DateSubmitted: now, CreatedAt: now,
	}
	if err := store.CreateClaim(ctx, claim); err != nil {
		t.Fatalf("create claim error: %v", err)
	}
	images := []model.ClaimImage{
		{ID: uuid.NewString(), ClaimID: claim.ID, ImagePath: "uploads/claim_images/a.jpg", CreatedAt: now},
		{ID: uuid.NewString(), ClaimID: claim.ID, ImagePath: "uploads/claim_images/b.jpg", CreatedAt: now},
	}
	if err := store.AddClaimImages(ctx, images); err != nil {
		t.Fatalf("add images error: %v", err)
	}
	listed, err := store.ListClaimImages(ctx, []string{claim.ID})
	if err != nil || len(listed) != 2 || listed[0].ImagePath != images[0].ImagePath {
		t.Fatalf("unexpected images: %v %v", listed, err)
	}
}

func TestPostgresStoreOTP(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	ctx := context.Background()
	store := NewPostgresStore(pool)
	now := time.Now().UTC()
	phone := "+254799999999"

	if err := store.PutOTPSession(ctx, model.OTPSession{Phone: phone, CodeHash: "h", CreatedAt: now, ExpiresAt: now.Add(-time.Second)}); err != nil {
		t.Fatalf("put otp error: %v", err)
	}
	if attempts, err := store.IncrementOTPAttempts(ctx, phone); err != nil || attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d %v", attempts, err)
	}
	if deleted, err := store.DeleteOTPSession(ctx, phone, "other"); err != nil || deleted {
		t.Fatalf("expected hash mismatch to keep the session, got %v %v", deleted, err)
	}
	removed, err := store.DeleteExpiredOTPSessions(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if _, err := store.GetOTPSession(ctx, phone); err != nil {
		t.Fatalf("expected session inside retention to survive, got %d %v", removed, err)
	}
	removed, err = store.DeleteExpiredOTPSessions(ctx, now)
	if err != nil || removed < 1 {
		t.Fatalf("expected expired session swept, got %d %v", removed, err)
	}
	if deleted, err := store.DeleteOTPSession(ctx, phone, "h"); err != nil || deleted {
		t.Fatalf("expected session already gone, got %v %v", deleted, err)
	}
}
