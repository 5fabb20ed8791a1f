package resolver

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore is an in-memory LocationStore
type fakeStore struct {
	locations []domain.Location
	creates   int
	updates   int
}

func (f *fakeStore) ListByClient(_ context.Context, clientID uuid.UUID) ([]domain.Location, error) {
	var out []domain.Location
	for _, loc := range f.locations {
		if loc.ClientID == clientID {
			out = append(out, loc)
		}
	}
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, location *domain.Location) error {
	location.ID = uuid.New()
	f.locations = append(f.locations, *location)
	f.creates++
	return nil
}

func (f *fakeStore) Update(_ context.Context, location *domain.Location) error {
	for i := range f.locations {
		if f.locations[i].ID == location.ID {
			f.locations[i] = *location
		}
	}
	f.updates++
	return nil
}

func newTestSession(t *testing.T, store *fakeStore, clientID uuid.UUID) *Session {
	t.Helper()
	r := New(store, zap.NewNop())
	session, err := r.Session(context.Background(), clientID)
	require.NoError(t, err)
	return session
}

func loc(clientID uuid.UUID, name, storeCode string) domain.Location {
	l := domain.Location{ClientID: clientID, Name: name, StoreCode: storeCode}
	l.ID = uuid.New()
	return l
}

func TestResolveExactPlatformKey(t *testing.T) {
	clientID := uuid.New()
	l := loc(clientID, "Downtown", "NV001")
	l.DoorDashMerchantKey = "MK-77"
	store := &fakeStore{locations: []domain.Location{l}}
	s := newTestSession(t, store, clientID)

	got, err := s.Resolve(context.Background(), Ref{
		Platform: domain.PlatformDoorDash,
		Name:     "Some Store",
		Key:      "mk-77",
	})
	require.NoError(t, err)
	assert.Equal(t, l.ID, got)
	assert.Equal(t, 0, s.Unmapped())
}

func TestResolveDoorDashExceptionTable(t *testing.T) {
	clientID := uuid.New()
	l := loc(clientID, "The District", "NV008")
	store := &fakeStore{locations: []domain.Location{l}}
	s := newTestSession(t, store, clientID)

	got, err := s.Resolve(context.Background(), Ref{
		Platform: domain.PlatformDoorDash,
		Name:     "Capriotti's Sandwich Shop (The District)",
	})
	require.NoError(t, err)
	assert.Equal(t, l.ID, got)
}

func TestResolveDoorDashNumericSuffix(t *testing.T) {
	// Key "8" matches store code "NV008" with leading zeros stripped
	clientID := uuid.New()
	l := loc(clientID, "Flamingo", "NV008")
	store := &fakeStore{locations: []domain.Location{l}}
	s := newTestSession(t, store, clientID)

	got, err := s.Resolve(context.Background(), Ref{
		Platform: domain.PlatformDoorDash,
		Key:      "8",
	})
	require.NoError(t, err)
	assert.Equal(t, l.ID, got)
}

func TestNumericSuffixGatedToDoorDash(t *testing.T) {
	// The same numeric key on Grubhub must not hit the suffix fallback through
	// the doordash path; it goes through the grubhub store-number strategy only
	clientID := uuid.New()
	l := loc(clientID, "Flamingo", "NV008")
	store := &fakeStore{locations: []domain.Location{l}}
	s := newTestSession(t, store, clientID)

	got, err := s.Resolve(context.Background(), Ref{
		Platform:    domain.PlatformGrubhub,
		StoreNumber: "8",
	})
	require.NoError(t, err)
	// store-number strategy also checks the code suffix, so this still matches
	assert.Equal(t, l.ID, got)
}

func TestResolveDoorDashDescriptiveName(t *testing.T) {
	clientID := uuid.New()
	l := loc(clientID, "W Sahara", "NV012 - W Sahara")
	store := &fakeStore{locations: []domain.Location{l}}
	s := newTestSession(t, store, clientID)

	got, err := s.Resolve(context.Background(), Ref{
		Platform: domain.PlatformDoorDash,
		Name:     "Capriotti's - w sahara",
	})
	require.NoError(t, err)
	assert.Equal(t, l.ID, got)
}

func TestResolveUberEatsParenCode(t *testing.T) {
	clientID := uuid.New()
	l := loc(clientID, "Des Moines", "IA069")
	store := &fakeStore{locations: []domain.Location{l}}
	s := newTestSession(t, store, clientID)

	got, err := s.Resolve(context.Background(), Ref{
		Platform: domain.PlatformUberEats,
		Name:     "Capriotti's Sandwich Shop (IA069)",
	})
	require.NoError(t, err)
	assert.Equal(t, l.ID, got)
}

func TestResolveGrubhubByAddress(t *testing.T) {
	clientID := uuid.New()
	l := loc(clientID, "Main St", "NV001")
	l.Address = "123 North Main Street, Suite 4"
	store := &fakeStore{locations: []domain.Location{l}}
	s := newTestSession(t, store, clientID)

	got, err := s.Resolve(context.Background(), Ref{
		Platform: domain.PlatformGrubhub,
		Name:     "Capriotti's Sandwich Shop",
		Address:  "123 N Main St Ste 4",
	})
	require.NoError(t, err)
	assert.Equal(t, l.ID, got)
}

func TestResolveGrubhubConstantNameDoesNotFalseMerge(t *testing.T) {
	// Grubhub's display name is the same for every location; with no address
	// or store number the reference must fall to the bucket, not fuzzy-match
	clientID := uuid.New()
	a := loc(clientID, "Capriotti's Sandwich Shop", "NV001")
	b := loc(clientID, "Capriotti's Sandwich Shop", "NV002")
	store := &fakeStore{locations: []domain.Location{a, b}}
	s := newTestSession(t, store, clientID)

	ref := Ref{Platform: domain.PlatformGrubhub, Name: "Capriotti's Sandwich Shop"}
	first, err := s.Resolve(context.Background(), ref)
	require.NoError(t, err)
	second, err := s.Resolve(context.Background(), ref)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, first)
	assert.NotEqual(t, b.ID, first)
	// repeated resolution reuses the same bucket; only one create
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.creates)
	assert.Equal(t, 2, s.Unmapped())
}

func TestResolveUnmatchedUsesExistingBucket(t *testing.T) {
	clientID := uuid.New()
	bucket := loc(clientID, domain.UnmappedBucketName, "")
	bucket.Tag = domain.LocationTagUnmappedBucket
	store := &fakeStore{locations: []domain.Location{bucket}}
	s := newTestSession(t, store, clientID)

	got, err := s.Resolve(context.Background(), Ref{
		Platform: domain.PlatformUberEats,
		Name:     "Totally Unknown Store",
	})
	require.NoError(t, err)
	assert.Equal(t, bucket.ID, got)
	assert.Equal(t, 0, store.creates)
}

func TestResolveUpdatesAliasesSetOnce(t *testing.T) {
	clientID := uuid.New()
	l := loc(clientID, "Downtown", "NV001")
	l.DoorDashMerchantKey = "MK-77"
	store := &fakeStore{locations: []domain.Location{l}}
	s := newTestSession(t, store, clientID)

	_, err := s.Resolve(context.Background(), Ref{
		Platform: domain.PlatformDoorDash,
		Name:     "Downtown DD",
		Key:      "MK-77",
	})
	require.NoError(t, err)
	assert.Equal(t, "Downtown DD", store.locations[0].DoorDashName)
	require.Equal(t, 1, store.updates)

	// a different display name for the same key must not overwrite the alias
	_, err = s.Resolve(context.Background(), Ref{
		Platform: domain.PlatformDoorDash,
		Name:     "Downtown Renamed",
		Key:      "MK-77",
	})
	require.NoError(t, err)
	assert.Equal(t, "Downtown DD", store.locations[0].DoorDashName)
	assert.Equal(t, 1, store.updates)
}

func TestCodeInParentheses(t *testing.T) {
	assert.Equal(t, "NV008", codeInParentheses("Capriotti's (NV008)"))
	assert.Equal(t, "IA069", codeInParentheses("Store (old) (IA069)"))
	assert.Equal(t, "", codeInParentheses("No code here"))
	assert.Equal(t, "", codeInParentheses("Parens (but words)"))
}

func TestNumericSuffix(t *testing.T) {
	assert.Equal(t, "008", numericSuffix("NV008"))
	assert.Equal(t, "", numericSuffix("NV008-A"))
	assert.Equal(t, "123", numericSuffix("123"))
	assert.Equal(t, "", numericSuffix(""))
}
