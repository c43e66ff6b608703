/*
Package eligibility caches which members currently hold the active-member
(current-team) designation.

PURPOSE:
  Eligibility answers gate every command and every sweep, so they cannot
  hit the member directory each time. The cache holds a per-guild id set
  with a 30-minute TTL; the directory remains the authoritative truth.

SELF-HEALING:
  - Consulted while stale: the guild's set is rebuilt synchronously from
    the directory (non-bot members with the current-team role,
    case-insensitive) before answering.
  - Role-change notification: the set is patched in place (add/remove one
    id) without touching the TTL clock and without waiting for expiry.

PATCH VS REBUILD:
  A rebuild releases the lock while it enumerates the directory. Patches
  that arrive during that window are applied to the stale entry AND queued;
  the queue is merged into the freshly built set before it is published, so
  no patch is lost to the race. Rebuilds of one guild can overlap, so the
  in-flight marker is a count: every finisher merges the queue, and only
  the last one drains it.

All mutations persist the snapshot document synchronously after the
in-memory update.
*/
package eligibility

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/roles"
)

// DefaultTTL is how long a guild's cached set stays valid.
const DefaultTTL = 30 * time.Minute

// =============================================================================
// CACHE
// =============================================================================

type entry struct {
	IDs         map[core.MemberID]bool `json:"user_ids"`
	LastUpdated time.Time              `json:"last_updated"`
}

type patch struct {
	id    core.MemberID
	added bool
}

// Cache is the per-guild eligibility cache.
type Cache struct {
	mu         sync.Mutex
	docs       core.DocumentStore
	directory  core.Directory
	ttl        time.Duration
	clock      core.Clock
	entries    map[core.GuildID]*entry
	rebuilding map[core.GuildID]int // in-flight rebuilds per guild
	pending    map[core.GuildID][]patch
}

// NewCache loads the snapshot document. Absent means cold; a malformed
// snapshot surfaces a StorageError.
func NewCache(ctx context.Context, docs core.DocumentStore, directory core.Directory) (*Cache, error) {
	c := &Cache{
		docs:       docs,
		directory:  directory,
		ttl:        DefaultTTL,
		clock:      core.SystemClock{},
		entries:    make(map[core.GuildID]*entry),
		rebuilding: make(map[core.GuildID]int),
		pending:    make(map[core.GuildID][]patch),
	}
	body, err := docs.Load(ctx, core.DocEligibilityCache)
	if err != nil {
		return nil, &core.StorageError{Document: core.DocEligibilityCache, Op: "load", Err: err}
	}
	if body != nil {
		if err := json.Unmarshal(body, &c.entries); err != nil {
			return nil, &core.StorageError{Document: core.DocEligibilityCache, Op: "load", Err: err}
		}
	}
	return c, nil
}

// WithClock overrides the clock. Test hook.
func (c *Cache) WithClock(clock core.Clock) *Cache {
	c.clock = clock
	return c
}

// WithTTL overrides the cache validity window.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	c.ttl = ttl
	return c
}

func (c *Cache) validLocked(guild core.GuildID) bool {
	e, ok := c.entries[guild]
	if !ok {
		return false
	}
	return c.clock.Now().Sub(e.LastUpdated) < c.ttl
}

func (c *Cache) persistLocked(ctx context.Context) error {
	body, err := json.Marshal(c.entries)
	if err != nil {
		return &core.StorageError{Document: core.DocEligibilityCache, Op: "save", Err: err}
	}
	if err := c.docs.Save(ctx, core.DocEligibilityCache, body); err != nil {
		return &core.StorageError{Document: core.DocEligibilityCache, Op: "save", Err: err}
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// IsEligible reports whether the member holds the active-member
// designation. Bots are never eligible. A stale cache rebuilds before
// answering.
func (c *Cache) IsEligible(ctx context.Context, m core.Member) (bool, error) {
	if m.IsBot {
		return false, nil
	}

	c.mu.Lock()
	if c.validLocked(m.GuildID) {
		ok := c.entries[m.GuildID].IDs[m.ID]
		c.mu.Unlock()
		return ok, nil
	}
	c.mu.Unlock()

	ids, err := c.rebuild(ctx, m.GuildID)
	if err != nil {
		return false, err
	}
	return ids[m.ID], nil
}

// MemberIDs returns the eligible id set for a guild, rebuilding if stale.
func (c *Cache) MemberIDs(ctx context.Context, guild core.GuildID) (map[core.MemberID]bool, error) {
	c.mu.Lock()
	if c.validLocked(guild) {
		ids := copySet(c.entries[guild].IDs)
		c.mu.Unlock()
		return ids, nil
	}
	c.mu.Unlock()
	return c.rebuild(ctx, guild)
}

// EligibleMembers enumerates the guild and returns the members in the
// eligible set, in directory order.
func (c *Cache) EligibleMembers(ctx context.Context, guild core.GuildID) ([]core.Member, error) {
	ids, err := c.MemberIDs(ctx, guild)
	if err != nil {
		return nil, err
	}
	members, err := c.directory.Members(ctx, guild)
	if err != nil {
		return nil, err
	}
	var out []core.Member
	for _, m := range members {
		if ids[m.ID] {
			out = append(out, m)
		}
	}
	return out, nil
}

// Count returns the size of the guild's eligible set, rebuilding if stale.
func (c *Cache) Count(ctx context.Context, guild core.GuildID) (int, error) {
	ids, err := c.MemberIDs(ctx, guild)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// ForceRefresh rebuilds a guild's set unconditionally.
func (c *Cache) ForceRefresh(ctx context.Context, guild core.GuildID) (int, error) {
	ids, err := c.rebuild(ctx, guild)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Patch applies a single-id add/remove from a role-change notification.
// The TTL clock is not touched. A patch landing during a rebuild is also
// queued so the rebuilt set includes it.
func (c *Cache) Patch(ctx context.Context, guild core.GuildID, id core.MemberID, added bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rebuilding[guild] > 0 {
		c.pending[guild] = append(c.pending[guild], patch{id: id, added: added})
	}
	if e, ok := c.entries[guild]; ok {
		if added {
			e.IDs[id] = true
		} else {
			delete(e.IDs, id)
		}
	}
	return c.persistLocked(ctx)
}

// ApplyRoleChange patches the cache when the current-team role toggled in
// a member update, and is a no-op otherwise.
func (c *Cache) ApplyRoleChange(ctx context.Context, change core.RoleChange) error {
	before := roles.HasCurrentTeam(change.Before)
	after := roles.HasCurrentTeam(change.After)
	switch {
	case after && !before:
		log.Printf("[Eligibility] adding %s to cache for guild %s", change.ID, change.GuildID)
		return c.Patch(ctx, change.GuildID, change.ID, true)
	case before && !after:
		log.Printf("[Eligibility] removing %s from cache for guild %s", change.ID, change.GuildID)
		return c.Patch(ctx, change.GuildID, change.ID, false)
	}
	return nil
}

// rebuild enumerates the directory outside the lock, then merges any
// patches that arrived meanwhile before publishing the fresh set. The
// queue is only drained by the last of any overlapping rebuilds; earlier
// finishers merge it but leave it for the rebuilds still in flight.
func (c *Cache) rebuild(ctx context.Context, guild core.GuildID) (map[core.MemberID]bool, error) {
	c.mu.Lock()
	c.rebuilding[guild]++
	c.mu.Unlock()

	members, err := c.directory.Members(ctx, guild)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebuilding[guild]--
	last := c.rebuilding[guild] == 0

	if err != nil {
		if last {
			c.pending[guild] = nil
		}
		return nil, err
	}

	ids := make(map[core.MemberID]bool)
	for _, m := range members {
		if m.IsBot {
			continue
		}
		if roles.HasCurrentTeam(m.Roles) {
			ids[m.ID] = true
		}
	}
	for _, p := range c.pending[guild] {
		if p.added {
			ids[p.id] = true
		} else {
			delete(ids, p.id)
		}
	}
	if last {
		c.pending[guild] = nil
	}

	c.entries[guild] = &entry{IDs: ids, LastUpdated: c.clock.Now()}
	if err := c.persistLocked(ctx); err != nil {
		return nil, err
	}
	log.Printf("[Eligibility] rebuilt cache for guild %s: %d members", guild, len(ids))
	return copySet(ids), nil
}

func copySet(in map[core.MemberID]bool) map[core.MemberID]bool {
	out := make(map[core.MemberID]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
