package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Placeholder is the reserved filename that keeps otherwise-empty state
// folders present in version control. List never returns it.
const Placeholder = ".gitkeep"

const archivePrefixFormat = "20060102_150405"

// Store maps workflow states to folders under a single vault root.
type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the vault root directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the folder path for a state.
func (s *Store) Dir(state State) string {
	return filepath.Join(s.root, string(state))
}

// Ensure creates every state folder. Idempotent; safe to call on every
// startup. Failure here is fatal to the caller: nothing else can run
// without the folder tree.
func (s *Store) Ensure() error {
	for _, state := range States() {
		if err := os.MkdirAll(s.Dir(state), 0o755); err != nil {
			return fmt.Errorf("create vault folder %s: %w", state, err)
		}
	}
	return nil
}

// List returns the sorted paths of regular files in a state folder
// whose names match the glob pattern. Hidden files and the placeholder
// are excluded. A folder that is missing or unreadable (for example,
// removed by a human mid-iteration) yields an empty result, never an
// error.
func (s *Store) List(state State, pattern string) []string {
	entries, err := os.ReadDir(s.Dir(state))
	if err != nil {
		return nil
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == Placeholder || strings.HasPrefix(name, ".") {
			continue
		}
		ok, err := doublestar.Match(pattern, name)
		if err != nil || !ok {
			continue
		}
		files = append(files, filepath.Join(s.Dir(state), name))
	}
	sort.Strings(files)
	return files
}

// Count returns the number of matching files in a state folder.
func (s *Store) Count(state State, pattern string) int {
	return len(s.List(state, pattern))
}

// MoveTo relocates a file into the given state folder with a UTC
// timestamp prefix, so repeated archiving of same-named files never
// collides and archive listings stay in arrival order. Returns the
// destination path. For engine-driven moves the target is always Done.
func (s *Store) MoveTo(state State, src string) (string, error) {
	prefix := time.Now().UTC().Format(archivePrefixFormat)
	dest := filepath.Join(s.Dir(state), prefix+"_"+filepath.Base(src))
	if err := os.Rename(src, dest); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", filepath.Base(src), state, err)
	}
	return dest, nil
}

// MoveToDone performs the terminal transition for an item.
func (s *Store) MoveToDone(src string) (string, error) {
	return s.MoveTo(Done, src)
}
