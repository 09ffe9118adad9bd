package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	pkglog "github.com/djrq/queue-service/pkg/log"

	"github.com/djrq/queue-service/internal/domain"
	"github.com/djrq/queue-service/internal/license"
	"github.com/djrq/queue-service/internal/store"
)

const minHandleLength = 3

var handlePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// RegistryConfig holds handle registry options.
type RegistryConfig struct {
	// CleanupOrphans deletes a tenant's previous forward record when it
	// registers a new handle. Off by default: historically old handles keep
	// resolving to their last-written record, and downstream clients may
	// rely on that grace period.
	CleanupOrphans bool
}

type registryService struct {
	store store.Store
	cfg   RegistryConfig
	now   func() time.Time
}

// NewRegistryService creates a RegistryService over the given backend store.
func NewRegistryService(s store.Store, cfg RegistryConfig) RegistryService {
	return &registryService{store: s, cfg: cfg, now: time.Now}
}

// normalizeHandle lowercases and trims; validation happens on the result.
func normalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

func validateHandle(handle string) error {
	if len(handle) < minHandleLength {
		return fmt.Errorf("%w: must be at least %d characters", domain.ErrInvalidHandle, minHandleLength)
	}
	if !handlePattern.MatchString(handle) {
		return fmt.Errorf("%w: only lowercase letters, numbers and underscores allowed", domain.ErrInvalidHandle)
	}
	return nil
}

func (s *registryService) Register(ctx context.Context, handle, licenseKey, displayName string) error {
	normalized := normalizeHandle(handle)
	if err := validateHandle(normalized); err != nil {
		return err
	}

	if displayName == "" {
		displayName = handle
	}

	tk := tenantKey(licenseKey)

	var previous string
	if s.cfg.CleanupOrphans {
		// Best effort: the reverse pointer read races with concurrent
		// registrations just like the rest of this two-write sequence.
		previous, _ = s.store.GetTenantHandle(ctx, tk)
	}

	// Forward then reverse; the pair is not atomic. Two tenants racing on
	// the same handle end with the last writer owning resolution while both
	// reverse pointers claim it.
	if err := s.store.SetHandleRecord(ctx, normalized, &domain.HandleRecord{
		LicenseKey:  license.Normalize(licenseKey),
		DisplayName: displayName,
		UpdatedAt:   s.now().UnixMilli(),
	}); err != nil {
		return err
	}
	if err := s.store.SetTenantHandle(ctx, tk, normalized); err != nil {
		return err
	}

	if s.cfg.CleanupOrphans && previous != "" && previous != normalized {
		if err := s.store.DeleteHandleRecord(ctx, previous); err != nil {
			pkglog.L().Warn().Err(err).Str(pkglog.FieldHandle, previous).Msg("orphaned handle cleanup failed")
		}
	}
	return nil
}

func (s *registryService) Resolve(ctx context.Context, handle string) (*domain.ResolvedHandle, error) {
	rec, err := s.store.GetHandleRecord(ctx, normalizeHandle(handle))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	displayName := rec.DisplayName
	if displayName == "" {
		displayName = handle
	}
	return &domain.ResolvedHandle{
		TenantKey:   license.PathKey(rec.LicenseKey),
		DisplayName: displayName,
	}, nil
}

func (s *registryService) IsAvailable(ctx context.Context, handle string) (bool, error) {
	rec, err := s.store.GetHandleRecord(ctx, normalizeHandle(handle))
	if err != nil {
		return false, err
	}
	return rec == nil, nil
}

func (s *registryService) CurrentHandle(ctx context.Context, licenseKey string) (string, error) {
	return s.store.GetTenantHandle(ctx, tenantKey(licenseKey))
}

var _ RegistryService = (*registryService)(nil)
