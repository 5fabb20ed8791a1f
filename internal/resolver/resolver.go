package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"go.uber.org/zap"
)

// LocationStore is the slice of the location repository the resolver needs.
// Production wires the gorm repository; tests may wire anything satisfying it.
type LocationStore interface {
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Location, error)
	Create(ctx context.Context, location *domain.Location) error
	Update(ctx context.Context, location *domain.Location) error
}

// Ref is a platform-supplied store reference extracted from one export row
type Ref struct {
	Platform    domain.Platform
	Name        string
	Key         string
	Address     string
	StoreNumber string
}

// doorDashExceptions maps anomalous DoorDash store names that do not follow
// the platform's key convention to the canonical store code they belong to.
// Matched by literal lowercase equality. Grown from observed real-world data;
// additions require operator confirmation.
var doorDashExceptions = map[string]string{
	"capriotti's sandwich shop (the district)": "NV008",
	"capriotti's sandwich shop - w sahara":     "NV012",
	"capriotti's sandwich shop - summerlin":    "NV019",
	"capriottis - dean martin dr":              "NV027",
}

// Resolver maps platform store references onto canonical locations
type Resolver struct {
	store  LocationStore
	logger *zap.Logger
}

func New(store LocationStore, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Session caches one client's locations for the duration of a single ingestion
// pass so repeated resolves are deterministic and cheap. Alias updates are
// applied set-once-if-empty through the session; the session never creates
// canonical locations, only the unmapped bucket.
type Session struct {
	r         *Resolver
	clientID  uuid.UUID
	locations []domain.Location
	bucket    *domain.Location
	unmapped  int
}

// Session loads the client's locations and begins a resolution pass
func (r *Resolver) Session(ctx context.Context, clientID uuid.UUID) (*Session, error) {
	locations, err := r.store.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load locations: %w", err)
	}
	s := &Session{r: r, clientID: clientID, locations: locations}
	for i := range s.locations {
		if s.locations[i].IsUnmappedBucket() {
			s.bucket = &s.locations[i]
			break
		}
	}
	return s, nil
}

// Unmapped returns how many references fell through to the bucket this pass
func (s *Session) Unmapped() int {
	return s.unmapped
}

// Resolve maps a platform store reference to a canonical location id. It never
// fails for unmatched input: the client's unmapped bucket (created on first
// need) is the terminal fallback. Resolving the same reference repeatedly
// yields the same id and never creates duplicate locations.
func (s *Session) Resolve(ctx context.Context, ref Ref) (uuid.UUID, error) {
	if loc := s.match(ref); loc != nil {
		if err := s.updateAliases(ctx, loc, ref); err != nil {
			return uuid.Nil, err
		}
		return loc.ID, nil
	}

	s.unmapped++
	s.r.logger.Warn("unresolved store reference routed to unmapped bucket",
		zap.String("client_id", s.clientID.String()),
		zap.String("platform", string(ref.Platform)),
		zap.String("name", ref.Name),
		zap.String("key", ref.Key),
		zap.String("address", ref.Address),
	)

	bucket, err := s.ensureBucket(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return bucket.ID, nil
}

// match walks the ordered strategy chain; first hit wins. Later strategies are
// lower confidence and are deliberately not followed by fuzzy auto-creation.
func (s *Session) match(ref Ref) *domain.Location {
	// 1. Hard-coded exception table (DoorDash only)
	if ref.Platform == domain.PlatformDoorDash && ref.Name != "" {
		if code, ok := doorDashExceptions[strings.ToLower(ref.Name)]; ok {
			if loc := s.byStoreCode(code); loc != nil {
				return loc
			}
		}
	}

	// 2. Exact platform-key match
	if ref.Key != "" {
		for i := range s.locations {
			if key := platformKey(&s.locations[i], ref.Platform); key != "" && strings.EqualFold(key, ref.Key) {
				return &s.locations[i]
			}
		}
	}

	// 3. Numeric-suffix fallback: a purely numeric key matches the numeric
	// suffix of the stored key with leading zeros stripped ("8" vs "NV008").
	// Added to patch observed DoorDash mismatches; kept gated to that platform.
	if ref.Platform == domain.PlatformDoorDash && isNumeric(ref.Key) {
		want := stripLeadingZeros(ref.Key)
		for i := range s.locations {
			loc := &s.locations[i]
			for _, stored := range []string{platformKey(loc, ref.Platform), loc.StoreCode} {
				if suffix := numericSuffix(stored); suffix != "" && stripLeadingZeros(suffix) == want {
					return loc
				}
			}
		}
	}

	// 4. Descriptive-name fallback: substring containment against the
	// descriptive portion of the stored code/name. Also a DoorDash patch;
	// Grubhub's constant display name would false-merge under it.
	if ref.Platform == domain.PlatformDoorDash && ref.Name != "" {
		name := strings.ToLower(ref.Name)
		for i := range s.locations {
			loc := &s.locations[i]
			if loc.IsUnmappedBucket() {
				continue
			}
			desc := strings.ToLower(descriptivePortion(loc))
			if desc != "" && (strings.Contains(name, desc) || strings.Contains(desc, name)) {
				return loc
			}
		}
	}

	// 5. Code-in-parentheses extraction (Uber Eats): "Name (IA069)" carries the
	// store label in parentheses
	if ref.Platform == domain.PlatformUberEats {
		if code := codeInParentheses(ref.Name); code != "" {
			for i := range s.locations {
				loc := &s.locations[i]
				if strings.EqualFold(loc.UberEatsLabel, code) || strings.EqualFold(loc.StoreCode, code) {
					return loc
				}
			}
		}
	}

	if ref.Platform == domain.PlatformGrubhub {
		// 6. Address-normalized match: Grubhub's display name is constant
		// across locations, so address is the primary discriminator
		if ref.Address != "" {
			want := NormalizeAddress(ref.Address)
			for i := range s.locations {
				loc := &s.locations[i]
				if loc.Address != "" && NormalizeAddress(loc.Address) == want {
					return loc
				}
			}
		}

		// 7. Store-number fallback, leading-zero-insensitive
		if isNumeric(ref.StoreNumber) {
			want := stripLeadingZeros(ref.StoreNumber)
			for i := range s.locations {
				loc := &s.locations[i]
				if strings.EqualFold(loc.GrubhubStoreNumber, ref.StoreNumber) {
					return loc
				}
				if suffix := numericSuffix(loc.StoreCode); suffix != "" && stripLeadingZeros(suffix) == want {
					return loc
				}
			}
		}
	}

	return nil
}

// byStoreCode finds a cached location by store code, case-insensitively
func (s *Session) byStoreCode(code string) *domain.Location {
	for i := range s.locations {
		if strings.EqualFold(s.locations[i].StoreCode, code) {
			return &s.locations[i]
		}
	}
	return nil
}

// updateAliases records the platform's display name and matching key on the
// matched location, set-once-if-empty. A populated alias is never overwritten
// by a different matched name; that prevents alias drift across exports.
func (s *Session) updateAliases(ctx context.Context, loc *domain.Location, ref Ref) error {
	changed := false

	switch ref.Platform {
	case domain.PlatformUberEats:
		if loc.UberEatsName == "" && ref.Name != "" {
			loc.UberEatsName = ref.Name
			changed = true
		}
		if loc.UberEatsLabel == "" {
			if code := codeInParentheses(ref.Name); code != "" {
				loc.UberEatsLabel = code
				changed = true
			} else if ref.Key != "" {
				loc.UberEatsLabel = ref.Key
				changed = true
			}
		}
	case domain.PlatformDoorDash:
		if loc.DoorDashName == "" && ref.Name != "" {
			loc.DoorDashName = ref.Name
			changed = true
		}
		if loc.DoorDashMerchantKey == "" && ref.Key != "" {
			loc.DoorDashMerchantKey = ref.Key
			changed = true
		}
	case domain.PlatformGrubhub:
		if loc.GrubhubName == "" && ref.Name != "" {
			loc.GrubhubName = ref.Name
			changed = true
		}
		if loc.GrubhubStoreNumber == "" && ref.StoreNumber != "" {
			loc.GrubhubStoreNumber = ref.StoreNumber
			changed = true
		}
	}

	if !changed {
		return nil
	}
	if err := s.r.store.Update(ctx, loc); err != nil {
		return fmt.Errorf("failed to update location aliases: %w", err)
	}
	return nil
}

// ensureBucket returns the client's single unmapped-bucket location, creating
// it on first need
func (s *Session) ensureBucket(ctx context.Context) (*domain.Location, error) {
	if s.bucket != nil {
		return s.bucket, nil
	}
	bucket := &domain.Location{
		ClientID: s.clientID,
		Name:     domain.UnmappedBucketName,
		Tag:      domain.LocationTagUnmappedBucket,
	}
	if err := s.r.store.Create(ctx, bucket); err != nil {
		return nil, fmt.Errorf("failed to create unmapped bucket: %w", err)
	}
	s.locations = append(s.locations, *bucket)
	s.bucket = &s.locations[len(s.locations)-1]
	return s.bucket, nil
}

// platformKey returns the stored matching key for the given platform
func platformKey(loc *domain.Location, platform domain.Platform) string {
	switch platform {
	case domain.PlatformUberEats:
		return loc.UberEatsLabel
	case domain.PlatformDoorDash:
		return loc.DoorDashMerchantKey
	case domain.PlatformGrubhub:
		return loc.GrubhubStoreNumber
	}
	return ""
}

var parenCodeRe = regexp.MustCompile(`\(([A-Za-z]{0,4}\d+[A-Za-z0-9-]*)\)`)

// codeInParentheses extracts a store code embedded in parentheses in a display
// name, e.g. "Capriotti's (NV008)" -> "NV008"
func codeInParentheses(name string) string {
	matches := parenCodeRe.FindAllStringSubmatch(name, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}

// descriptivePortion returns the free-text part of a location's code/name used
// by the descriptive-name fallback. Store codes like "NV008 - Flamingo Rd"
// carry the descriptive portion after the dash; otherwise the canonical name
// serves.
func descriptivePortion(loc *domain.Location) string {
	if i := strings.Index(loc.StoreCode, "-"); i >= 0 {
		if desc := strings.TrimSpace(loc.StoreCode[i+1:]); desc != "" {
			return desc
		}
	}
	return strings.TrimSpace(loc.Name)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func stripLeadingZeros(s string) string {
	return strings.TrimLeft(s, "0")
}

// numericSuffix returns the trailing digit run of a store code, e.g.
// "NV008" -> "008"
func numericSuffix(s string) string {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return s[i:]
}
