package watcher

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/msageha/vaultd/internal/model"
	"github.com/msageha/vaultd/internal/vault"
)

const dropEventBuffer = 128

// DropFolder watches a local folder for new file drops and turns each
// into an action item: the file is copied into Needs_Action and a
// metadata sidecar .md describes it. Detection combines fsnotify events
// with a fallback scan on every poll, so files that arrive while the
// event watcher is down are still picked up.
type DropFolder struct {
	store     *vault.Store
	watchDir  string
	log       zerolog.Logger
	fsw       *fsnotify.Watcher
	pending   chan string
	processed map[string]bool
	done      chan struct{}
}

// NewDropFolder creates the watcher. watchDir defaults to the vault's
// Inbox when empty.
func NewDropFolder(store *vault.Store, watchDir string, log zerolog.Logger) *DropFolder {
	if watchDir == "" {
		watchDir = store.Dir(vault.Inbox)
	}
	return &DropFolder{
		store:     store,
		watchDir:  watchDir,
		log:       log,
		pending:   make(chan string, dropEventBuffer),
		processed: make(map[string]bool),
		done:      make(chan struct{}),
	}
}

func (d *DropFolder) Name() string { return "drop_folder" }

// Init creates the watch folder and starts the fsnotify event pump.
func (d *DropFolder) Init() error {
	if err := os.MkdirAll(d.watchDir, 0o755); err != nil {
		return fmt.Errorf("create watch folder: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(d.watchDir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", d.watchDir, err)
	}
	d.fsw = fsw

	go d.eventLoop()
	return nil
}

// eventLoop forwards fsnotify create/write events into the pending
// channel. A full channel drops the event; the fallback scan in Poll
// catches anything dropped here.
func (d *DropFolder) eventLoop() {
	defer close(d.done)
	for {
		select {
		case event, ok := <-d.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, ".") {
				continue
			}
			select {
			case d.pending <- event.Name:
			default:
			}
		case err, ok := <-d.fsw.Errors:
			if !ok {
				return
			}
			d.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// Poll drains queued events and scans the watch folder for anything the
// events missed. A vanished watch folder is "nothing new", not an error.
func (d *DropFolder) Poll() ([]Item, error) {
	var items []Item
	seen := map[string]bool{}

	collect := func(path string) {
		name := filepath.Base(path)
		if d.processed[name] || seen[name] {
			return
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return
		}
		seen[name] = true
		items = append(items, Item{
			ID:      name,
			Kind:    "file_drop",
			Title:   name,
			Meta:    map[string]string{"size": fmt.Sprintf("%d", info.Size())},
			Payload: path,
		})
	}

	for {
		select {
		case path := <-d.pending:
			collect(path)
			continue
		default:
		}
		break
	}

	entries, err := os.ReadDir(d.watchDir)
	if err != nil {
		return items, nil
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		collect(filepath.Join(d.watchDir, e.Name()))
	}

	return items, nil
}

// Materialize copies the dropped file into Needs_Action with a
// timestamped name and writes a frontmatter sidecar describing it.
// Returns the sidecar path. Unsafe filenames are rejected outright.
func (d *DropFolder) Materialize(item Item) (string, error) {
	src := item.Payload
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	safeStem := SanitizeName(stem)
	safeExt := SanitizeName(strings.TrimPrefix(ext, "."))
	if safeExt != "" && safeExt != "unnamed" {
		safeExt = "." + safeExt
	} else {
		safeExt = ""
	}

	timestamp := time.Now().UTC().Format("20060102_150405")
	destDir := d.store.Dir(vault.NeedsAction)
	destName := fmt.Sprintf("FILE_%s_%s%s", timestamp, safeStem, safeExt)
	destPath := filepath.Join(destDir, destName)

	// Sanitizing removes separators, but verify the joined path anyway.
	if filepath.Dir(filepath.Clean(destPath)) != filepath.Clean(destDir) {
		return "", fmt.Errorf("unsafe filename rejected: %s", base)
	}

	if err := copyFile(src, destPath); err != nil {
		return "", fmt.Errorf("copy drop %s: %w", base, err)
	}

	priority := ClassifyPriority(base)
	now := time.Now().UTC()

	sidecar := filepath.Join(destDir, fmt.Sprintf("FILE_%s_%s.md", timestamp, safeStem))
	content := vault.RenderFrontmatter([]vault.Field{
		{Key: "type", Value: "file_drop"},
		{Key: "original_name", Value: base},
		{Key: "size", Value: item.Meta["size"]},
		{Key: "received", Value: now.Format(time.RFC3339)},
		{Key: "priority", Value: priority},
		{Key: "status", Value: model.StatusPending},
		{Key: "source", Value: "inbox"},
	}, fmt.Sprintf(`## File Drop: %s

A new file was dropped into the watch folder for processing.

- **Original name**: %s
- **Priority**: %s
- **Copied to**: %s

## Suggested Actions
- [ ] Review file contents
- [ ] Categorize and process
- [ ] Move to /Done when complete
`, base, base, priority, destName))

	if err := vault.WriteFileAtomic(sidecar, []byte(content)); err != nil {
		return "", fmt.Errorf("write sidecar: %w", err)
	}

	d.processed[base] = true
	return sidecar, nil
}

// Close shuts down the fsnotify watcher and waits for its event pump to
// release the underlying OS resources.
func (d *DropFolder) Close() error {
	if d.fsw == nil {
		return nil
	}
	err := d.fsw.Close()
	select {
	case <-d.done:
	case <-time.After(5 * time.Second):
	}
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
