package service

import (
	"context"
	"errors"
	"testing"

	"github.com/djrq/queue-service/internal/domain"
	"github.com/djrq/queue-service/internal/store"
)

func TestRegisterResolveRoundTrip(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc := NewRegistryService(ms, RegistryConfig{})

	if err := svc.Register(ctx, "TestDJ123", "djrq-aaaa-bbbb-cccc", "DJ Test"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Lookup is case-insensitive; the stored handle is the lowercased form.
	resolved, err := svc.Resolve(ctx, "testdj123")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved == nil {
		t.Fatal("Resolve returned nil for a registered handle")
	}
	if resolved.TenantKey != testTenant {
		t.Errorf("tenant key = %q, want %q", resolved.TenantKey, testTenant)
	}
	if resolved.DisplayName != "DJ Test" {
		t.Errorf("display name = %q", resolved.DisplayName)
	}

	// The forward record keeps the dashed uppercase token.
	rec, _ := ms.GetHandleRecord(ctx, "testdj123")
	if rec == nil || rec.LicenseKey != testLicense {
		t.Errorf("forward record = %+v, want license %q", rec, testLicense)
	}

	current, err := svc.CurrentHandle(ctx, testLicense)
	if err != nil || current != "testdj123" {
		t.Errorf("CurrentHandle = %q, %v; want testdj123", current, err)
	}
}

func TestRegisterDefaultsDisplayName(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc := NewRegistryService(ms, RegistryConfig{})

	if err := svc.Register(ctx, "MixMaster", testLicense, ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	resolved, _ := svc.Resolve(ctx, "mixmaster")
	if resolved.DisplayName != "MixMaster" {
		t.Errorf("display name = %q, want the handle as given", resolved.DisplayName)
	}
}

func TestRegisterInvalidHandle(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc := NewRegistryService(ms, RegistryConfig{})

	tests := []struct {
		name   string
		handle string
	}{
		{"too short", "ab"},
		{"empty", ""},
		{"whitespace only", "   "},
		{"inner space", "dj cool"},
		{"symbol", "dj-cool!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Register(ctx, tt.handle, testLicense, "DJ")
			if !errors.Is(err, domain.ErrInvalidHandle) {
				t.Fatalf("Register(%q): %v, want ErrInvalidHandle", tt.handle, err)
			}
		})
	}

	// Rejected registrations write nothing.
	current, _ := svc.CurrentHandle(ctx, testLicense)
	if current != "" {
		t.Errorf("reverse pointer written for rejected handle: %q", current)
	}
}

func TestIsAvailable(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc := NewRegistryService(ms, RegistryConfig{})

	free, err := svc.IsAvailable(ctx, "somedj")
	if err != nil || !free {
		t.Fatalf("IsAvailable on empty registry = %v, %v", free, err)
	}

	svc.Register(ctx, "somedj", testLicense, "")

	free, err = svc.IsAvailable(ctx, "SomeDJ")
	if err != nil || free {
		t.Fatalf("IsAvailable after register = %v, %v; want taken", free, err)
	}
}

// Re-registering under a new handle leaves the old forward record in place by
// default: old handles keep resolving until someone claims them.
func TestReRegisterKeepsOldHandle(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc := NewRegistryService(ms, RegistryConfig{})

	svc.Register(ctx, "oldname", testLicense, "DJ")
	svc.Register(ctx, "newname", testLicense, "DJ")

	old, err := svc.Resolve(ctx, "oldname")
	if err != nil || old == nil {
		t.Fatalf("old handle stopped resolving: %v, %v", old, err)
	}
	current, _ := svc.CurrentHandle(ctx, testLicense)
	if current != "newname" {
		t.Errorf("CurrentHandle = %q, want newname", current)
	}
}

func TestReRegisterWithCleanup(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc := NewRegistryService(ms, RegistryConfig{CleanupOrphans: true})

	svc.Register(ctx, "oldname", testLicense, "DJ")
	svc.Register(ctx, "newname", testLicense, "DJ")

	old, err := svc.Resolve(ctx, "oldname")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if old != nil {
		t.Errorf("orphaned forward record survived cleanup: %+v", old)
	}
	fresh, _ := svc.Resolve(ctx, "newname")
	if fresh == nil || fresh.TenantKey != testTenant {
		t.Errorf("new handle must resolve after cleanup: %+v", fresh)
	}
}

func TestResolveUnregistered(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc := NewRegistryService(ms, RegistryConfig{})

	resolved, err := svc.Resolve(ctx, "ghost")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != nil {
		t.Errorf("unregistered handle resolved to %+v", resolved)
	}
}
