/*
reminder.go - End-of-day submission reminder sweep

Once daily, for "today" in the IST frame: every eligible member who has
not submitted, is not on approved leave, and holds valid team/year roles
gets mentioned in a reminder posted to their team/year status channel.
One message per channel, at most 10 mentions plus an "and N others"
suffix.
*/
package warning

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/eligibility"
	"github.com/crewtrack/attendance-engine/roles"
	"github.com/crewtrack/attendance-engine/submission"
)

const maxMentionsPerReminder = 10

// Reminder posts the daily submit-your-status nudge.
type Reminder struct {
	Submissions *submission.Store
	Leaves      []LeaveSource
	Eligibility *eligibility.Cache
	Channels    core.ChannelResolver
	Notifier    core.Notifier

	sweepMu sync.Mutex
}

// SweepToday runs the reminder for today's IST civil date across every
// guild. Non-reentrant; per-guild failures are isolated.
func (r *Reminder) SweepToday(ctx context.Context, directory core.Directory) {
	if !r.sweepMu.TryLock() {
		log.Printf("[Reminder] previous sweep still running, skipping")
		return
	}
	defer r.sweepMu.Unlock()

	today := core.TodayIn(core.IST)
	log.Printf("[Reminder] running daily reminder for %s", core.FormatDay(today))

	guilds, err := directory.Guilds(ctx)
	if err != nil {
		log.Printf("[Reminder] listing guilds: %v", err)
		return
	}
	for _, guild := range guilds {
		if err := r.sweepGuild(ctx, guild, today); err != nil {
			log.Printf("[Reminder] sweep failed for guild %s: %v", guild, err)
		}
	}
}

func (r *Reminder) sweepGuild(ctx context.Context, guild core.GuildID, today time.Time) error {
	members, err := r.Eligibility.EligibleMembers(ctx, guild)
	if err != nil {
		return err
	}
	nonSubmitters := r.Submissions.UsersWithoutSubmission(members, today)

	// Group members needing a nudge by their status channel.
	channelMembers := make(map[string][]core.Member)
	for _, member := range nonSubmitters {
		if r.onLeave(member.ID, today) {
			log.Printf("[Reminder] skipped %s: on approved leave", member.DisplayName)
			continue
		}
		p, err := roles.Validate(member.Roles)
		if err != nil {
			continue
		}
		channel, err := r.Channels.StatusChannel(ctx, guild, p.TeamCategory, p.YearPrefix)
		if err != nil {
			log.Printf("[Reminder] no status channel for %s: %v", member.DisplayName, err)
			continue
		}
		channelMembers[channel] = append(channelMembers[channel], member)
	}

	sent := 0
	for channel, group := range channelMembers {
		if err := r.Notifier.Post(ctx, channel, reminderText(group)); err != nil {
			log.Printf("[Reminder] posting to %s: %v", channel, err)
			continue
		}
		sent += len(group)
	}
	log.Printf("[Reminder] guild %s: reminded %d members", guild, sent)
	return nil
}

func (r *Reminder) onLeave(id core.MemberID, date time.Time) bool {
	for _, src := range r.Leaves {
		if src.CoversDate(id, date) {
			return true
		}
	}
	return false
}

func reminderText(members []core.Member) string {
	mentions := make([]string, 0, maxMentionsPerReminder)
	for i, m := range members {
		if i == maxMentionsPerReminder {
			break
		}
		mentions = append(mentions, m.DisplayName)
	}
	text := "Reminder: " + strings.Join(mentions, ", ")
	if remaining := len(members) - maxMentionsPerReminder; remaining > 0 {
		text += fmt.Sprintf(" and %d others", remaining)
	}
	return text + " - Submit your daily status update! Deadline is 11:59 PM."
}
