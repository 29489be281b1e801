package watcher

import (
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/msageha/vaultd/internal/model"
	"github.com/msageha/vaultd/internal/vault"
)

// Maildir polls a local message spool for .eml files and materializes
// each new message as an email action item. Messages are deduplicated
// by Message-Id (falling back to the file name) and are left in place;
// the spool is owned by whatever delivers mail into it.
type Maildir struct {
	store     *vault.Store
	spoolDir  string
	log       zerolog.Logger
	processed map[string]bool
}

func NewMaildir(store *vault.Store, spoolDir string, log zerolog.Logger) *Maildir {
	return &Maildir{
		store:     store,
		spoolDir:  spoolDir,
		log:       log,
		processed: make(map[string]bool),
	}
}

func (m *Maildir) Name() string { return "maildir" }

// Init verifies the spool exists. A missing spool means the external
// dependency is unavailable: the watcher declines to start rather than
// spinning on a permanently failing poll.
func (m *Maildir) Init() error {
	info, err := os.Stat(m.spoolDir)
	if err != nil {
		return fmt.Errorf("mail spool unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mail spool %s is not a directory", m.spoolDir)
	}
	return nil
}

// Poll returns unprocessed messages from the spool. A spool that has
// vanished since Init is an ordinary transient condition. A message
// that does not parse is logged and marked processed by filename so it
// never blocks the messages behind it.
func (m *Maildir) Poll() ([]Item, error) {
	entries, err := os.ReadDir(m.spoolDir)
	if err != nil {
		return nil, nil
	}

	var items []Item
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".eml") {
			continue
		}
		if m.processed[name] {
			continue
		}

		path := filepath.Join(m.spoolDir, name)
		item, err := m.parseMessage(path, name)
		if err != nil {
			m.log.Warn().Err(err).Str("file", name).Msg("skipping unparseable message")
			m.processed[name] = true
			continue
		}
		if m.processed[item.ID] {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (m *Maildir) parseMessage(path, fallbackID string) (Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return Item{}, err
	}
	defer func() { _ = f.Close() }()

	msg, err := mail.ReadMessage(f)
	if err != nil {
		return Item{}, err
	}

	id := strings.Trim(msg.Header.Get("Message-Id"), "<>")
	if id == "" {
		id = fallbackID
	}
	subject := msg.Header.Get("Subject")
	if subject == "" {
		subject = "(no subject)"
	}

	body, err := io.ReadAll(io.LimitReader(msg.Body, 64*1024))
	if err != nil {
		return Item{}, err
	}

	return Item{
		ID:    id,
		Kind:  "email",
		Title: subject,
		Meta: map[string]string{
			"from":    msg.Header.Get("From"),
			"subject": subject,
			"date":    msg.Header.Get("Date"),
		},
		Payload: strings.TrimSpace(string(body)),
	}, nil
}

// Materialize writes an email action file into Needs_Action and marks
// the message processed.
func (m *Maildir) Materialize(item Item) (string, error) {
	now := time.Now().UTC()
	timestamp := now.Format("20060102_150405")
	priority := ClassifyPriority(item.Title)
	safeSubject := SanitizeName(item.Title)
	if len(safeSubject) > 48 {
		safeSubject = safeSubject[:48]
	}

	path := filepath.Join(
		m.store.Dir(vault.NeedsAction),
		fmt.Sprintf("EMAIL_%s_%s.md", timestamp, safeSubject),
	)

	content := vault.RenderFrontmatter([]vault.Field{
		{Key: "type", Value: "email"},
		{Key: "message_id", Value: item.ID},
		{Key: "from", Value: item.Meta["from"]},
		{Key: "subject", Value: item.Meta["subject"]},
		{Key: "received", Value: now.Format(time.RFC3339)},
		{Key: "priority", Value: priority},
		{Key: "status", Value: model.StatusPending},
		{Key: "source", Value: "maildir"},
	}, fmt.Sprintf(`## Email: %s

**From**: %s
**Priority**: %s

%s

## Suggested Actions
- [ ] Read and analyze email content
- [ ] Draft response if needed
- [ ] Submit for approval before sending
`, item.Meta["subject"], item.Meta["from"], priority, item.Payload))

	if err := vault.WriteFileAtomic(path, []byte(content)); err != nil {
		return "", fmt.Errorf("write email action file: %w", err)
	}

	m.processed[item.ID] = true
	return path, nil
}

func (m *Maildir) Close() error { return nil }
