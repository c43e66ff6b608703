/*
member.go - Member snapshot and collaborator interfaces

PURPOSE:
  The engine never owns member data; the chat platform's member directory
  is the authoritative source. Member is a point-in-time snapshot taken at
  decision time. The interfaces here are everything the core needs from the
  platform: directory lookup, message posting, role mutation for probation
  escalation, status-channel resolution, and discussion-thread lifecycle.

DESIGN:
  Accept interfaces, return structs. All blocking collaborator calls take a
  context. Implementations live outside this module (the chat adapter);
  tests use fakes.
*/
package core

import (
	"context"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type GuildID string
type MemberID string

// =============================================================================
// MEMBER - point-in-time snapshot from the directory
// =============================================================================

// Member is a snapshot of a directory entry. Roles is the complete set of
// role names held at the moment the snapshot was taken; it is the sole
// input to every policy decision.
type Member struct {
	GuildID     GuildID
	ID          MemberID
	DisplayName string
	IsBot       bool
	Roles       []string
}

// RoleChange carries the before/after role-name sets of a member update.
// Drives the eligibility cache patches.
type RoleChange struct {
	GuildID GuildID
	ID      MemberID
	Before  []string
	After   []string
}

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Directory enumerates and resolves guild members.
type Directory interface {
	// Guilds lists every guild the process serves.
	Guilds(ctx context.Context) ([]GuildID, error)

	// Members enumerates all members of a guild.
	Members(ctx context.Context, guild GuildID) ([]Member, error)

	// Resolve looks up a single member. Returns a *NotFoundError when the
	// member no longer exists.
	Resolve(ctx context.Context, guild GuildID, id MemberID) (Member, error)
}

// Notifier posts a message to a named channel (or thread). No
// acknowledgment beyond success/failure.
type Notifier interface {
	Post(ctx context.Context, channel string, message string) error
}

// RoleMutator grants and revokes named roles. Used only for probation
// escalation.
type RoleMutator interface {
	Grant(ctx context.Context, guild GuildID, id MemberID, role string) error
	Revoke(ctx context.Context, guild GuildID, id MemberID, role string) error
}

// ChannelResolver maps a classified (team category, year prefix) pair to a
// destination channel for status posts and reminders. Channel discovery and
// auto-creation live behind this interface, outside the engine.
type ChannelResolver interface {
	StatusChannel(ctx context.Context, guild GuildID, teamCategory, yearPrefix string) (string, error)
}

// Threads manages discussion threads for pending leave requests. Open
// returns a channel id usable with Notifier.Post; Close renames the thread
// with the outcome suffix, locks and archives it.
type Threads interface {
	Open(ctx context.Context, parentChannel, name string, participants []MemberID) (string, error)
	Close(ctx context.Context, thread, outcome, closedBy string) error
}

// Clock abstracts wall-clock time for the schedulable parts. Production
// uses SystemClock; tests pin the time.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
