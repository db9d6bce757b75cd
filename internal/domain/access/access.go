// Package access evaluates zone access decisions for matched identities.
//
// Zones, schedules, and permission grants are held in an immutable ruleset
// behind an atomic pointer. Configuration reloads and grants build a new
// ruleset and swap it in whole, so a decision never observes a mix of old
// and new rules. The controller itself keeps no per-request state.
//
// Every ambiguous or failed state resolves to a denial. Nothing in this
// package can grant access by accident.
package access

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facegate/facegate/internal/domain/model"
	"github.com/facegate/facegate/pkg/metrics"
)

// Zone is a protected physical area.
type Zone struct {
	ID                string
	Name              string
	RequiredLevel     model.Level
	DoorControllerIDs []string
	Schedule          Schedule       // nil means no time restriction
	Location          *time.Location // zone-local time; nil means UTC
}

// Grant assigns a permission level to an identity in a zone.
type Grant struct {
	IdentityID string
	ZoneID     string
	Level      model.Level
}

type permKey struct {
	identityID string
	zoneID     string
}

// ruleset is the immutable unit of configuration swap.
type ruleset struct {
	zones       map[string]Zone
	permissions map[permKey]model.Level
}

// Controller evaluates access decisions against the current ruleset.
type Controller struct {
	rules atomic.Pointer[ruleset]
	// writeMu serializes rule mutations; readers never take it.
	writeMu sync.Mutex
	now     func() time.Time
}

// New constructs a controller with configuration options. It starts with an
// empty ruleset: every zone is unknown until ReplaceRules runs.
func New(opts ...Option) *Controller {
	c := &Controller{
		now: time.Now,
	}
	c.rules.Store(&ruleset{
		zones:       map[string]Zone{},
		permissions: map[permKey]model.Level{},
	})

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CheckAccess evaluates a decision for (identityID, zoneID). An empty
// identityID means the face was not identified. The checks run in a fixed
// order and the first failing one decides; every path terminates in a
// decision, never an error.
func (c *Controller) CheckAccess(ctx context.Context, identityID, zoneID string) model.AccessDecision {
	rules := c.rules.Load()
	now := c.now()

	decision := func(granted bool, reason model.Reason) model.AccessDecision {
		metrics.RecordDecision(string(reason), granted)
		return model.AccessDecision{
			Granted:    granted,
			IdentityID: identityID,
			ZoneID:     zoneID,
			Reason:     reason,
			Timestamp:  now,
		}
	}

	zone, ok := rules.zones[zoneID]
	if !ok {
		return decision(false, model.ReasonZoneUnknown)
	}

	if identityID == "" {
		return decision(false, model.ReasonUnidentified)
	}

	level := rules.permissions[permKey{identityID: identityID, zoneID: zoneID}]
	if level < zone.RequiredLevel {
		return decision(false, model.ReasonInsufficientLevel)
	}

	if zone.Schedule != nil {
		local := now.UTC()
		if zone.Location != nil {
			local = now.In(zone.Location)
		}
		if !zone.Schedule.Permits(local) {
			return decision(false, model.ReasonOutsideSchedule)
		}
	}

	return decision(true, model.ReasonMatchedSufficientLevel)
}

// ReplaceRules swaps in a complete new ruleset. Zones with RequiredLevel
// None are unrestricted by definition; they are kept as-is since None always
// satisfies the level check.
func (c *Controller) ReplaceRules(zones []Zone, grants []Grant) {
	next := &ruleset{
		zones:       make(map[string]Zone, len(zones)),
		permissions: make(map[permKey]model.Level, len(grants)),
	}
	for _, z := range zones {
		next.zones[z.ID] = z
	}
	for _, g := range grants {
		next.permissions[permKey{identityID: g.IdentityID, zoneID: g.ZoneID}] = g.Level
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.rules.Store(next)
}

// GrantPermission sets the level for one (identity, zone) pair via
// copy-on-write. At most one level exists per pair; a second grant replaces
// the first, it never implicitly upgrades.
func (c *Controller) GrantPermission(identityID, zoneID string, level model.Level) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	cur := c.rules.Load()
	next := &ruleset{
		zones:       cur.zones,
		permissions: make(map[permKey]model.Level, len(cur.permissions)+1),
	}
	for k, v := range cur.permissions {
		next.permissions[k] = v
	}
	next.permissions[permKey{identityID: identityID, zoneID: zoneID}] = level
	c.rules.Store(next)
}

// RevokePermissions removes every grant held by an identity, across all
// zones. Used when an identity is revoked from the gallery.
func (c *Controller) RevokePermissions(identityID string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	cur := c.rules.Load()
	next := &ruleset{
		zones:       cur.zones,
		permissions: make(map[permKey]model.Level, len(cur.permissions)),
	}
	for k, v := range cur.permissions {
		if k.identityID != identityID {
			next.permissions[k] = v
		}
	}
	c.rules.Store(next)
}

// ZoneKnown reports whether a zone exists in the current ruleset.
func (c *Controller) ZoneKnown(zoneID string) bool {
	_, ok := c.rules.Load().zones[zoneID]
	return ok
}

// ZoneCount returns the number of configured zones.
func (c *Controller) ZoneCount() int {
	return len(c.rules.Load().zones)
}
