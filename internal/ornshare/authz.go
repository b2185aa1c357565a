// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package ornshare

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/cartographus/internal/config"
)

// builtinModel is the RBAC model for the ORN sharing boundary: two
// objects ("orn_read", "orn_contribute"), enforced as plain ACL rows
// keyed by role rather than per-resource path matching.
const builtinModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// builtinPolicy grants readers GET access and contributors POST access.
// Anonymous requests (when auth is not required) are mapped to the
// "reader" role by EnforcerConfig.DefaultRole.
const builtinPolicy = `
p, reader, orn, read
p, contributor, orn, read
p, contributor, orn, write
g, reader, reader
g, contributor, contributor
`

// EnforcerConfig configures the Casbin enforcer backing the sharing
// boundary's authorization decisions.
type EnforcerConfig struct {
	ModelPath    string
	PolicyPath   string
	DefaultRole  string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NewEnforcerConfig builds an EnforcerConfig from the community-facing
// Casbin settings, filling in sharing-boundary specific defaults the
// core config doesn't carry (there's only one deployment of this
// enforcer, so DefaultRole/CacheTTL aren't made user-configurable).
func NewEnforcerConfig(cfg config.CasbinConfig) *EnforcerConfig {
	return &EnforcerConfig{
		ModelPath:    cfg.ModelPath,
		PolicyPath:   cfg.PolicyPath,
		DefaultRole:  "reader",
		CacheEnabled: true,
		CacheTTL:     5 * time.Minute,
	}
}

// Enforcer wraps a Casbin enforcer with a short-lived decision cache,
// authorizing reads and community writes against the §6 ORN sharing
// boundary.
type Enforcer struct {
	config   *EnforcerConfig
	enforcer *casbin.SyncedEnforcer
	cache    *enforcementCache
}

// NewEnforcer builds an Enforcer. Without ModelPath/PolicyPath it falls
// back to the built-in reader/contributor model and policy, which is
// sufficient for a single-role "trusted contributor" deployment.
func NewEnforcer(cfg *EnforcerConfig) (*Enforcer, error) {
	if cfg == nil {
		cfg = &EnforcerConfig{DefaultRole: "reader", CacheEnabled: true, CacheTTL: 5 * time.Minute}
	}

	var m model.Model
	var err error
	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(builtinModel)
	}
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		adapter := fileadapter.NewAdapter(cfg.PolicyPath)
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadBuiltinPolicy(enforcer, builtinPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	e := &Enforcer{config: cfg, enforcer: enforcer}
	if cfg.CacheEnabled {
		e.cache = newEnforcementCache(cfg.CacheTTL)
	}
	return e, nil
}

func loadBuiltinPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 3 {
			continue
		}
		ptype, rule := parts[0], parts[1:]
		var err error
		switch ptype {
		case "p":
			_, err = enforcer.AddPolicy(rule[0], rule[1], rule[2])
		case "g":
			_, err = enforcer.AddGroupingPolicy(rule[0], rule[1])
		}
		if err != nil {
			return fmt.Errorf("load builtin policy row %v: %w", rule, err)
		}
	}
	return nil
}

// Enforce reports whether subject may perform action on object,
// consulting the decision cache before the Casbin model.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	if e.cache != nil {
		if allowed, ok := e.cache.get(subject, object, action); ok {
			return allowed, nil
		}
	}
	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	if e.cache != nil {
		e.cache.set(subject, object, action, allowed)
	}
	return allowed, nil
}

// EnforceRole is like Enforce but checks role directly against the
// policy rather than resolving a subject's grouping first; used when
// the only identity available is the JWT's Role claim.
func (e *Enforcer) EnforceRole(role, object, action string) (bool, error) {
	if role == "" {
		role = e.config.DefaultRole
	}
	return e.Enforce(role, object, action)
}

// Close stops the enforcer's cache cleanup goroutine.
func (e *Enforcer) Close() {
	if e.cache != nil {
		e.cache.stop()
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// enforcementCache caches recent authorization decisions keyed by
// subject/object/action, avoiding a full Casbin policy match on every
// request to a boundary that's on the hot path for every read/write.
type enforcementCache struct {
	ttl      time.Duration
	mu       sync.RWMutex
	items    map[string]cacheItem
	stopChan chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	allowed   bool
	expiresAt time.Time
}

func newEnforcementCache(ttl time.Duration) *enforcementCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &enforcementCache{ttl: ttl, items: make(map[string]cacheItem), stopChan: make(chan struct{})}
	go c.cleanup()
	return c
}

func (c *enforcementCache) key(subject, object, action string) string {
	return subject + ":" + object + ":" + action
}

func (c *enforcementCache) get(subject, object, action string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[c.key(subject, object, action)]
	if !ok || time.Now().After(item.expiresAt) {
		return false, false
	}
	return item.allowed, true
}

func (c *enforcementCache) set(subject, object, action string, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[c.key(subject, object, action)] = cacheItem{allowed: allowed, expiresAt: time.Now().Add(c.ttl)}
}

func (c *enforcementCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *enforcementCache) stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}
