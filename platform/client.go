/*
Package platform is the HTTP client for the chat adapter's internal API.

PURPOSE:
  The engine never speaks the chat protocol itself. A separate adapter
  process owns the gateway connection and exposes a small internal HTTP
  API for the directory, messaging, role and thread operations the engine
  needs. Client implements every collaborator interface in core against
  that API.

ADAPTER API (all JSON):
  GET  /guilds                                       -> {"guilds": [...]}
  GET  /guilds/{guild}/members                       -> {"members": [...]}
  GET  /guilds/{guild}/members/{id}                  -> member
  GET  /guilds/{guild}/channels/status?team=&year=   -> {"channel": "..."}
  POST /channels/{channel}/messages                  {"content": "..."}
  POST /guilds/{guild}/members/{id}/roles            {"role": "..."}
  DELETE /guilds/{guild}/members/{id}/roles          {"role": "..."}
  POST /channels/{channel}/threads                   {"name": ..., "participants": [...]}
  POST /threads/{thread}/close                       {"outcome": ..., "closed_by": ...}

A 404 from a member lookup maps to core.NotFoundError so the approval
guards can tell a vanished requester from an adapter outage.
*/
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/crewtrack/attendance-engine/core"
)

// Client talks to the chat adapter. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

var (
	_ core.Directory       = (*Client)(nil)
	_ core.Notifier        = (*Client)(nil)
	_ core.RoleMutator     = (*Client)(nil)
	_ core.ChannelResolver = (*Client)(nil)
	_ core.Threads         = (*Client)(nil)
)

// NewClient creates a client for the adapter at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// memberJSON is the adapter's wire shape for a member.
type memberJSON struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	IsBot       bool     `json:"is_bot"`
	Roles       []string `json:"roles"`
}

func (m memberJSON) toMember(guild core.GuildID) core.Member {
	return core.Member{
		GuildID:     guild,
		ID:          core.MemberID(m.ID),
		DisplayName: m.DisplayName,
		IsBot:       m.IsBot,
		Roles:       m.Roles,
	}
}

// Guilds lists every guild the adapter serves.
func (c *Client) Guilds(ctx context.Context) ([]core.GuildID, error) {
	var out struct {
		Guilds []string `json:"guilds"`
	}
	if err := c.do(ctx, http.MethodGet, "/guilds", nil, &out); err != nil {
		return nil, err
	}
	guilds := make([]core.GuildID, len(out.Guilds))
	for i, g := range out.Guilds {
		guilds[i] = core.GuildID(g)
	}
	return guilds, nil
}

// Members enumerates all members of a guild.
func (c *Client) Members(ctx context.Context, guild core.GuildID) ([]core.Member, error) {
	var out struct {
		Members []memberJSON `json:"members"`
	}
	path := fmt.Sprintf("/guilds/%s/members", url.PathEscape(string(guild)))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	members := make([]core.Member, len(out.Members))
	for i, m := range out.Members {
		members[i] = m.toMember(guild)
	}
	return members, nil
}

// Resolve looks up a single member.
func (c *Client) Resolve(ctx context.Context, guild core.GuildID, id core.MemberID) (core.Member, error) {
	var out memberJSON
	path := fmt.Sprintf("/guilds/%s/members/%s", url.PathEscape(string(guild)), url.PathEscape(string(id)))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		if se, ok := err.(*statusError); ok && se.code == http.StatusNotFound {
			return core.Member{}, &core.NotFoundError{Kind: "member", ID: string(id)}
		}
		return core.Member{}, err
	}
	return out.toMember(guild), nil
}

// Post sends a message to a channel or thread.
func (c *Client) Post(ctx context.Context, channel, message string) error {
	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channel))
	return c.do(ctx, http.MethodPost, path, map[string]string{"content": message}, nil)
}

// Grant adds a role to a member.
func (c *Client) Grant(ctx context.Context, guild core.GuildID, id core.MemberID, role string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles", url.PathEscape(string(guild)), url.PathEscape(string(id)))
	return c.do(ctx, http.MethodPost, path, map[string]string{"role": role}, nil)
}

// Revoke removes a role from a member.
func (c *Client) Revoke(ctx context.Context, guild core.GuildID, id core.MemberID, role string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles", url.PathEscape(string(guild)), url.PathEscape(string(id)))
	return c.do(ctx, http.MethodDelete, path, map[string]string{"role": role}, nil)
}

// StatusChannel resolves the status channel for a team/year pair.
func (c *Client) StatusChannel(ctx context.Context, guild core.GuildID, teamCategory, yearPrefix string) (string, error) {
	var out struct {
		Channel string `json:"channel"`
	}
	path := fmt.Sprintf("/guilds/%s/channels/status?team=%s&year=%s",
		url.PathEscape(string(guild)), url.QueryEscape(teamCategory), url.QueryEscape(yearPrefix))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.Channel, nil
}

// Open creates a discussion thread under a parent channel.
func (c *Client) Open(ctx context.Context, parentChannel, name string, participants []core.MemberID) (string, error) {
	body := struct {
		Name         string          `json:"name"`
		Participants []core.MemberID `json:"participants"`
	}{Name: name, Participants: participants}

	var out struct {
		Thread string `json:"thread"`
	}
	path := fmt.Sprintf("/channels/%s/threads", url.PathEscape(parentChannel))
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	return out.Thread, nil
}

// Close renames, locks and archives a thread with the decision outcome.
func (c *Client) Close(ctx context.Context, thread, outcome, closedBy string) error {
	path := fmt.Sprintf("/threads/%s/close", url.PathEscape(thread))
	return c.do(ctx, http.MethodPost, path, map[string]string{"outcome": outcome, "closed_by": closedBy}, nil)
}

// =============================================================================
// TRANSPORT
// =============================================================================

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("adapter returned %d: %s", e.code, e.body)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding adapter request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("adapter request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{code: resp.StatusCode, body: string(b)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding adapter response: %w", err)
		}
	}
	return nil
}
