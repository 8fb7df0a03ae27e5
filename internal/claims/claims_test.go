package claims

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kc-allan/at-insurance/internal/apperr"
	"github.com/kc-allan/at-insurance/internal/evidence"
	"github.com/kc-allan/at-insurance/internal/model"
	"github.com/kc-allan/at-insurance/internal/repository"
)

type memoryImages struct {
	saved []string
	err   error
}

func (m *memoryImages) Save(_ context.Context, claimID string, file evidence.File) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	path := "uploads/claim_images/" + claimID + "-" + file.Name
	m.saved = append(m.saved, path)
	return path, nil
}

type fixture struct {
	manager *Manager
	store   *repository.MemoryStore
	images  *memoryImages
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for _, p := range []model.Policy{
		{ID: "policy-a", FarmerID: "farmer-a", Type: model.PolicyTypeCrop, CreatedAt: now},
		{ID: "policy-b", FarmerID: "farmer-b", Type: model.PolicyTypeLivestock, CreatedAt: now},
	} {
		require.NoError(t, store.CreatePolicy(ctx, p))
	}
	images := &memoryImages{}
	manager := NewManager(store, store, images, evidence.Limits{MaxFiles: 5, MaxBytes: 5 << 20}, zap.NewNop())
	manager.now = func() time.Time { return now }
	return &fixture{manager: manager, store: store, images: images}
}

const description = "Drought destroyed most of the maize crop"

func TestCreateClaim(t *testing.T) {
	f := newFixture(t)
	claim, err := f.manager.Create(context.Background(), "farmer-a", CreateRequest{
		PolicyID: "policy-a", Reason: model.ClaimReasonDrought, Description: description,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, claim.ID)
	assert.Equal(t, model.ClaimStatusPending, claim.Status)
	assert.Zero(t, claim.Amount)
	assert.Equal(t, "farmer-a", claim.FarmerID)
	assert.False(t, claim.DateSubmitted.IsZero())
}

func TestCreateClaimForeignPolicyNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Create(context.Background(), "farmer-a", CreateRequest{
		PolicyID: "policy-b", Reason: model.ClaimReasonFlood, Description: description,
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.manager.Create(context.Background(), "farmer-a", CreateRequest{
		PolicyID: "policy-x", Reason: model.ClaimReasonFlood, Description: description,
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateClaimValidation(t *testing.T) {
	f := newFixture(t)
	cases := []CreateRequest{
		{PolicyID: "policy-a", Reason: "hail", Description: description},
		{PolicyID: "policy-a", Reason: model.ClaimReasonPest, Description: "too short"},
		{PolicyID: "policy-a", Reason: model.ClaimReasonPest, Description: strings.Repeat("x", 1001)},
		{PolicyID: "", Reason: model.ClaimReasonPest, Description: description},
	}
	for _, req := range cases {
		_, err := f.manager.Create(context.Background(), "farmer-a", req)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "%+v", req)
	}

	_, err := f.manager.Create(context.Background(), "farmer-a", CreateRequest{
		PolicyID: "policy-a", Reason: model.ClaimReasonPest, Description: strings.Repeat("x", 1000),
	})
	assert.NoError(t, err)
}

func TestAddImagesAndFind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	claim, err := f.manager.Create(ctx, "farmer-a", CreateRequest{PolicyID: "policy-a", Reason: model.ClaimReasonPest, Description: description})
	require.NoError(t, err)

	_, err = f.manager.AddImages(ctx, "missing", []string{"a.jpg"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	images, err := f.manager.AddImages(ctx, claim.ID, []string{"a.jpg", "b.jpg", "a.jpg"})
	require.NoError(t, err)
	assert.Len(t, images, 3)

	found, err := f.manager.FindOne(ctx, claim.ID)
	require.NoError(t, err)
	require.Len(t, found.Images, 3)
	assert.Equal(t, "a.jpg", found.Images[0].ImagePath)
	assert.Equal(t, "b.jpg", found.Images[1].ImagePath)

	_, err = f.manager.FindOne(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestFindOrdering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, err := f.manager.Create(ctx, "farmer-a", CreateRequest{PolicyID: "policy-a", Reason: model.ClaimReasonPest, Description: description})
	require.NoError(t, err)
	second, err := f.manager.Create(ctx, "farmer-a", CreateRequest{PolicyID: "policy-a", Reason: model.ClaimReasonDisease, Description: description})
	require.NoError(t, err)

	byFarmer, err := f.manager.FindByFarmer(ctx, "farmer-a")
	require.NoError(t, err)
	require.Len(t, byFarmer, 2)
	assert.Equal(t, second.ID, byFarmer[0].ID)
	assert.Equal(t, first.ID, byFarmer[1].ID)
	assert.NotNil(t, byFarmer[0].Images)

	byPolicy, err := f.manager.FindByPolicy(ctx, "policy-a")
	require.NoError(t, err)
	assert.Len(t, byPolicy, 2)

	none, err := f.manager.FindByFarmer(ctx, "farmer-b")
	require.NoError(t, err)
	assert.Empty(t, none)
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

func pngFile(name string) evidence.File {
	return evidence.File{Name: name, Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes)}
}

func TestSubmitWithImages(t *testing.T) {
	f := newFixture(t)
	claim, err := f.manager.Submit(context.Background(), "farmer-a",
		CreateRequest{PolicyID: "policy-a", Reason: model.ClaimReasonFlood, Description: description},
		[]evidence.File{pngFile("one.png"), pngFile("two.png")},
	)
	require.NoError(t, err)
	require.Len(t, claim.Images, 2)
	assert.Equal(t, f.images.saved, []string{claim.Images[0].ImagePath, claim.Images[1].ImagePath})

	stored, err := f.manager.FindOne(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Images, 2)
}

func TestSubmitRejectsBadUploadBeforeWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bad := evidence.File{Name: "doc.pdf", Size: 10, Body: bytes.NewReader([]byte("%PDF-1.4.."))}
	_, err := f.manager.Submit(ctx, "farmer-a",
		CreateRequest{PolicyID: "policy-a", Reason: model.ClaimReasonFlood, Description: description},
		[]evidence.File{bad},
	)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	claims, err := f.manager.FindByFarmer(ctx, "farmer-a")
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestSubmitStorageFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.images.err = errors.New("disk full")
	_, err := f.manager.Submit(ctx, "farmer-a",
		CreateRequest{PolicyID: "policy-a", Reason: model.ClaimReasonFlood, Description: description},
		[]evidence.File{pngFile("one.png")},
	)
	assert.True(t, apperr.Is(err, apperr.KindInternal))

	claims, err := f.manager.FindByFarmer(ctx, "farmer-a")
	require.NoError(t, err)
	assert.Empty(t, claims, "a failed upload must not leave a claim behind")
}

func TestSubmitForeignPolicyStoresNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Submit(context.Background(), "farmer-b",
		CreateRequest{PolicyID: "policy-a", Reason: model.ClaimReasonFlood, Description: description},
		[]evidence.File{pngFile("one.png")},
	)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Empty(t, f.images.saved)
}
