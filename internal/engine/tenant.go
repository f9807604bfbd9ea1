package engine

import "sync"

// TenantProvider returns the tenant whose queue the engine works on. An
// empty string means no tenant is active and passes are skipped.
type TenantProvider interface {
	ActiveTenant() string
}

// StaticTenant is a fixed tenant id.
type StaticTenant string

// ActiveTenant implements TenantProvider.
func (t StaticTenant) ActiveTenant() string { return string(t) }

// SwitchableTenant is a TenantProvider whose tenant can change at runtime,
// for example when the user switches organization. Safe for concurrent use.
type SwitchableTenant struct {
	mu     sync.RWMutex
	tenant string
}

// NewSwitchableTenant creates a provider starting at tenant.
func NewSwitchableTenant(tenant string) *SwitchableTenant {
	return &SwitchableTenant{tenant: tenant}
}

// ActiveTenant implements TenantProvider.
func (t *SwitchableTenant) ActiveTenant() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tenant
}

// Set switches the active tenant. A pass already running finishes on the
// tenant it started with.
func (t *SwitchableTenant) Set(tenant string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tenant = tenant
}
