// Package router implements the route-module auto-discovery framework
// from spec.md §4.7: each feature route lives in an internal/routes/*
// package that registers itself into this package's global Registry via
// an init()-time call to Register, mirroring the teacher's Router/
// HandlerDependencies aggregation in
// internal/customer/interfaces/http/routes.go but built from self-
// registering data (Module/Route values) instead of one hand-written
// setupRoutes tree, since Go has no runtime directory scan to discover
// route packages the way a dynamically-loaded module system would.
package router

import (
	"fmt"
	"net/http"
	"sync"
)

// Policy is the mandatory access-control declaration every route must
// carry (spec.md §4.6/§4.7). A route with no declared policy fails
// Registry.Validate at startup.
type Policy string

const (
	PolicyRequireAuth          Policy = "require_auth"
	PolicyRequirePlatformAdmin Policy = "require_platform_admin"
	PolicyRequireTenantAdmin   Policy = "require_tenant_admin"
	PolicyRequirePermission    Policy = "require_permission"
	PolicyOptionalAuth         Policy = "optional_auth"
	PolicyPublic               Policy = "public"
)

// Route is one HTTP method+path binding within a Module.
type Route struct {
	Method  string
	Path    string
	Policy  Policy
	// Permission is required, and must parse as an authz.Permission,
	// when Policy == PolicyRequirePermission.
	Permission string
	Handler    http.HandlerFunc
}

// Module groups a set of routes under a common path prefix, mirroring
// the teacher's per-bounded-context route file (customerRoutes,
// segmentRoutes, importRoutes).
type Module struct {
	Name   string
	Prefix string
	Routes []Route
}

// Registry accumulates modules registered via Register and validates,
// then mounts, them at startup.
type Registry struct {
	mu      sync.Mutex
	modules []Module
}

var global = &Registry{}

// Register adds m to the global registry. Route modules call this from
// an init() function so registration happens purely from importing the
// module package (imported from cmd/server/main.go).
func Register(m Module) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.modules = append(global.modules, m)
}

// Default returns the process-global registry route modules register
// into.
func Default() *Registry {
	return global
}

// Modules returns a snapshot of the registered modules.
func (r *Registry) Modules() []Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// Validate walks every registered module and fails fast if any route
// lacks a declared Policy, an assigned Handler, or (for
// PolicyRequirePermission) a Permission string — the startup check
// spec.md §8 requires.
func (r *Registry) Validate() error {
	for _, m := range r.Modules() {
		if m.Prefix == "" {
			return fmt.Errorf("router: module %q has no path prefix", m.Name)
		}
		for _, rt := range m.Routes {
			if rt.Handler == nil {
				return fmt.Errorf("router: %s %s%s has no handler", rt.Method, m.Prefix, rt.Path)
			}
			if rt.Policy == "" {
				return fmt.Errorf("router: %s %s%s has no declared policy", rt.Method, m.Prefix, rt.Path)
			}
			if rt.Policy == PolicyRequirePermission && rt.Permission == "" {
				return fmt.Errorf("router: %s %s%s declares require_permission with no permission string", rt.Method, m.Prefix, rt.Path)
			}
		}
	}
	return nil
}

// Summary returns a human-readable registration summary, logged at
// startup per spec.md §4.7.
func (r *Registry) Summary() string {
	modules := r.Modules()
	total := 0
	for _, m := range modules {
		total += len(m.Routes)
	}
	return fmt.Sprintf("%d route modules registered, %d routes total", len(modules), total)
}
