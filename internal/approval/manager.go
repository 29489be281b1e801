package approval

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/msageha/vaultd/internal/journal"
	"github.com/msageha/vaultd/internal/vault"
)

// Counts summarizes one ProcessDecisions pass.
type Counts struct {
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Manager owns the request → pending → approved/rejected → archived
// lifecycle. The engine never moves a file out of Pending_Approval
// itself; that transition belongs to the human.
type Manager struct {
	store   *vault.Store
	journal *journal.Writer
	log     zerolog.Logger
	ttl     time.Duration
}

// NewManager validates the policy sets and returns a Manager.
func NewManager(store *vault.Store, jw *journal.Writer, log zerolog.Logger, ttl time.Duration) (*Manager, error) {
	if err := ValidatePolicy(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{store: store, journal: jw, log: log, ttl: ttl}, nil
}

// CreateRequest writes a request file into Pending_Approval and returns
// its path. Actions in the auto-approve category never generate a
// request: the call journals the auto approval and returns an empty
// path.
func (m *Manager) CreateRequest(action, description string, details []Detail, priority string) (string, error) {
	if AutoApproved(action) {
		m.logJournal("action_auto_approved", map[string]any{
			"action":   action,
			"priority": priority,
		})
		return "", nil
	}

	req := NewRequest(action, description, details, priority, m.ttl)
	path := filepath.Join(m.store.Dir(vault.PendingApproval), req.Filename())
	if err := vault.WriteFileAtomic(path, []byte(req.Markdown())); err != nil {
		return "", fmt.Errorf("write approval request: %w", err)
	}

	m.logJournal("approval_request_created", map[string]any{
		"request_id": req.RequestID,
		"action":     action,
		"priority":   req.Priority,
		"file":       req.Filename(),
	})
	m.log.Info().Str("file", req.Filename()).Msg("approval request created")
	return path, nil
}

// PendingRequests lists request files still awaiting a decision.
func (m *Manager) PendingRequests() []string {
	return m.store.List(vault.PendingApproval, "*.md")
}

// ProcessDecisions drains the Approved and Rejected folders once:
// journals one decision entry per file with actor "human", archives
// each into Done, and returns the counts. Safe with either or both
// folders empty. A file that cannot be archived is left in place for
// the next pass.
func (m *Manager) ProcessDecisions() Counts {
	var counts Counts

	for _, item := range m.store.List(vault.Approved, "*.md") {
		name := filepath.Base(item)
		m.log.Info().Str("file", name).Msg("processing approved item")
		m.logJournal("approval_granted", map[string]any{
			"file":        name,
			"approved_by": journal.ActorHuman,
		})
		if _, err := m.store.MoveToDone(item); err != nil {
			m.log.Error().Err(err).Str("file", name).Msg("archive failed")
			continue
		}
		counts.Approved++
	}

	for _, item := range m.store.List(vault.Rejected, "*.md") {
		name := filepath.Base(item)
		m.log.Info().Str("file", name).Msg("processing rejected item")
		m.logJournal("approval_rejected", map[string]any{
			"file":        name,
			"rejected_by": journal.ActorHuman,
		})
		if _, err := m.store.MoveToDone(item); err != nil {
			m.log.Error().Err(err).Str("file", name).Msg("archive failed")
			continue
		}
		counts.Rejected++
	}

	return counts
}

// CheckExpired flags pending requests whose expiry timestamp has
// passed. Expiry is advisory: the request is journaled and surfaced for
// an operator, never moved or deleted. Discarding a pending human
// decision is not the engine's call. Returns the expired request paths.
func (m *Manager) CheckExpired() []string {
	now := time.Now().UTC()
	var expired []string

	for _, item := range m.PendingRequests() {
		content, err := os.ReadFile(item)
		if err != nil {
			m.log.Warn().Err(err).Str("file", filepath.Base(item)).Msg("cannot read pending request")
			continue
		}

		meta, _ := vault.ParseFrontmatter(string(content))
		expiresStr, ok := meta["expires"]
		if !ok {
			continue
		}
		expires, err := time.Parse(time.RFC3339, expiresStr)
		if err != nil {
			m.log.Warn().Err(err).Str("file", filepath.Base(item)).Msg("bad expires timestamp")
			continue
		}

		if now.After(expires) {
			expired = append(expired, item)
			m.logJournal("approval_expired", map[string]any{
				"file":    filepath.Base(item),
				"expires": expiresStr,
			})
		}
	}

	return expired
}

func (m *Manager) logJournal(actionType string, details map[string]any) {
	if err := m.journal.Append(journal.ActorApproval, actionType, details); err != nil {
		m.log.Error().Err(err).Msg("journal append failed")
	}
}
