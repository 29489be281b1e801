package watcher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/msageha/vaultd/internal/model"
	"github.com/msageha/vaultd/internal/vault"
)

// feedNotification is one entry in the exported social feed file.
type feedNotification struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Time string `json:"time,omitempty"`
}

// notificationKinds maps feed text patterns to action types. More
// specific phrases come first so "connection request" wins over
// "sent you".
var notificationKinds = []struct {
	phrase string
	kind   string
}{
	{"connection request", "connection"},
	{"messaged you", "message"},
	{"sent you", "message"},
	{"commented on", "engagement"},
	{"liked your", "engagement"},
	{"mentioned you", "engagement"},
	{"endorsed you", "engagement"},
	{"invited you", "connection"},
}

// Feed polls a JSON export of social notifications. The export file is
// produced by an external browser-automation collaborator; this watcher
// only consumes it.
type Feed struct {
	store     *vault.Store
	feedPath  string
	log       zerolog.Logger
	processed map[string]bool
}

func NewFeed(store *vault.Store, feedPath string, log zerolog.Logger) *Feed {
	return &Feed{
		store:     store,
		feedPath:  feedPath,
		log:       log,
		processed: make(map[string]bool),
	}
}

func (f *Feed) Name() string { return "feed" }

// Init verifies the export file exists; without it the source is
// unreachable and the watcher declines to start.
func (f *Feed) Init() error {
	if _, err := os.Stat(f.feedPath); err != nil {
		return fmt.Errorf("feed export unavailable: %w", err)
	}
	return nil
}

// Poll reads the export and returns unseen notifications. A file that
// has gone missing since Init is "nothing new"; a file that no longer
// parses is a real poll error.
func (f *Feed) Poll() ([]Item, error) {
	data, err := os.ReadFile(f.feedPath)
	if err != nil {
		return nil, nil
	}

	var notifications []feedNotification
	if err := json.Unmarshal(data, &notifications); err != nil {
		return nil, fmt.Errorf("parse feed export: %w", err)
	}

	var items []Item
	for _, n := range notifications {
		if n.ID == "" || f.processed[n.ID] {
			continue
		}
		items = append(items, Item{
			ID:    n.ID,
			Kind:  classifyNotification(n.Text),
			Title: n.Text,
			Meta: map[string]string{
				"notified_at": n.Time,
			},
			Payload: n.Text,
		})
	}
	return items, nil
}

func classifyNotification(text string) string {
	lower := strings.ToLower(text)
	for _, nk := range notificationKinds {
		if strings.Contains(lower, nk.phrase) {
			return nk.kind
		}
	}
	return "engagement"
}

// Materialize writes a notification action file into Needs_Action.
func (f *Feed) Materialize(item Item) (string, error) {
	now := time.Now().UTC()
	timestamp := now.Format("20060102_150405")
	priority := ClassifyPriority(item.Title)

	path := filepath.Join(
		f.store.Dir(vault.NeedsAction),
		fmt.Sprintf("NOTIF_%s_%s.md", timestamp, SanitizeName(item.ID)),
	)

	content := vault.RenderFrontmatter([]vault.Field{
		{Key: "type", Value: item.Kind},
		{Key: "notification_id", Value: item.ID},
		{Key: "received", Value: now.Format(time.RFC3339)},
		{Key: "priority", Value: priority},
		{Key: "status", Value: model.StatusPending},
		{Key: "source", Value: "feed"},
	}, fmt.Sprintf(`## Notification

%s

## Suggested Actions
- [ ] Review the notification
- [ ] Draft a response if one is needed
- [ ] Submit for approval before posting
`, item.Payload))

	if err := vault.WriteFileAtomic(path, []byte(content)); err != nil {
		return "", fmt.Errorf("write notification action file: %w", err)
	}

	f.processed[item.ID] = true
	return path, nil
}

func (f *Feed) Close() error { return nil }
