// Package loader reads, writes and generates ticket data sets.
package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/ticketsearch/pkg/types"
)

// LoadFile reads a JSON array of tickets from path
func LoadFile(path string) ([]types.Ticket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ticket file: %w", err)
	}
	defer func() { _ = f.Close() }()

	tickets, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tickets, nil
}

// Decode reads a JSON array of tickets. Unknown fields are ignored.
func Decode(r io.Reader) ([]types.Ticket, error) {
	var tickets []types.Ticket
	if err := json.NewDecoder(r).Decode(&tickets); err != nil {
		return nil, fmt.Errorf("failed to decode tickets: %w", err)
	}
	if tickets == nil {
		tickets = []types.Ticket{}
	}
	return tickets, nil
}

// WriteFile writes tickets as indented JSON, creating parent directories
func WriteFile(path string, tickets []types.Ticket) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(tickets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

var (
	systems    = []string{"macOS Sequoia", "Windows 11", "Okta", "AWS EC2", "Docker", "Kubernetes", "Slack", "Jira", "VPN", "Outlook"}
	issues     = []string{"Connection Timeout", "Crash on Startup", "403 Forbidden", "Slow Performance", "Login Loop", "Blue Screen", "Kernel Panic", "API Latency"}
	actions    = []string{"Restarted service", "Cleared cache", "Updated drivers", "Reinstalled app", "Checked firewall logs", "Reset password", "Rolled back update"}
	statuses   = []string{"Solved", "Open", "Investigating", "Pending"}
	priorities = []string{"Low", "Medium", "High", "Critical"}
	tagPool    = []string{"Network", "Security", "Hardware", "Software", "Cloud", "Access", "Database", "DevOps"}
)

const (
	minGeneratedID = 10000
	maxGeneratedID = 99999
)

// Generate builds n synthetic support tickets. The same seed yields the
// same tickets. IDs are unique while the T-NNNNN space lasts.
func Generate(n int, seed uint64) []types.Ticket {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	seen := make(map[int]bool, n)
	space := maxGeneratedID - minGeneratedID + 1

	tickets := make([]types.Ticket, 0, n)
	for len(tickets) < n {
		system := pick(r, systems)
		issue := pick(r, issues)
		action := pick(r, actions)

		id := minGeneratedID + r.IntN(space)
		if seen[id] && len(seen) < space {
			continue
		}
		seen[id] = true

		tags := make([]string, 0, 3)
		for _, i := range r.Perm(len(tagPool))[:1+r.IntN(3)] {
			tags = append(tags, tagPool[i])
		}

		tickets = append(tickets, types.Ticket{
			ID:    fmt.Sprintf("T-%d", id),
			Title: fmt.Sprintf("%s on %s", issue, system),
			Content: fmt.Sprintf("User reported %s when trying to access %s. Error code: %d. Resolution: %s resolved the issue.",
				strings.ToLower(issue), system, 100+r.IntN(900), action),
			Status:   pick(r, statuses),
			Priority: pick(r, priorities),
			Tags:     tags,
		})
	}
	return tickets
}

func pick(r *rand.Rand, items []string) string {
	return items[r.IntN(len(items))]
}

// DemoTickets returns the small set the API server can seed at startup
func DemoTickets() []types.Ticket {
	return []types.Ticket{
		{
			ID:      "T-1024",
			Title:   "VPN Connection Fails on macOS Sequoia",
			Content: "Users reporting AnyConnect timeouts after updating to macOS 15.0. Workaround involves disabling IPv6 in network settings.",
		},
		{
			ID:      "T-1025",
			Title:   "SSO Login Loop - Okta Integration",
			Content: "Authentication redirects indefinitely. Root cause identified as clock skew on the auth server. Sync NTP to fix.",
		},
		{
			ID:      "T-1021",
			Title:   "Docker Container OOM on Build Pipeline",
			Content: "CI jobs failing with exit code 137. Increased memory limit in values.yaml resolved the crash.",
		},
		{
			ID:      "T-1018",
			Title:   "Internal API Rate Limiting for Sales Dashboard",
			Content: "Sales dashboard returning 429s. Whitelisted the dashboard IP range in the gateway.",
		},
	}
}
