// Package featureflags evaluates runtime switches configured through the
// FEATURE_FLAGS setting.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flags the application consults.
const (
	// CommentModeration holds new comments for approval.
	CommentModeration = "comment_moderation"
	// LiveEvents pushes admin events to websocket dashboards.
	LiveEvents = "live_events"
	// ViewDedupe counts at most one post view per IP per hour.
	ViewDedupe = "view_dedupe"
)

var defaults = map[string]string{
	CommentModeration: "off",
	LiveEvents:        "on",
	ViewDedupe:        "on",
}

var descriptions = map[string]string{
	CommentModeration: "New comments wait for an admin to approve them.",
	LiveEvents:        "Post, comment and mail events stream to the admin websocket.",
	ViewDedupe:        "A visitor IP counts once per post per hour.",
}

// Default returns the built-in value of a flag the blog consults.
func Default(name string) (string, bool) {
	v, ok := defaults[normalize(name)]
	return v, ok
}

// Describe returns what a known flag controls, or "".
func Describe(name string) string {
	return descriptions[normalize(name)]
}

// Manager evaluates flags defined in a key=value list such as
// "comment_moderation=on,live_events=25%".
type Manager struct {
	flags map[string]string
}

// NewManager parses raw on top of the built-in defaults. Malformed pairs
// are ignored.
func NewManager(raw string) *Manager {
	out := make(map[string]string, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// On reports whether a flag is switched on for the whole site. Percentage
// rollouts count as on only at 100%.
func (m *Manager) On(name string) bool {
	return m.Enabled(name, 0)
}

// Enabled returns whether a flag is enabled for a given user.
// Supported values are on/true/1, off/false/0 and N% (a deterministic
// rollout by user ID).
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	if userID == 0 {
		return false
	}
	return rolloutBucket(name, userID) < pct
}

// Names returns the configured flag names, sorted.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.flags))
	for name := range m.flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
