// Package planner turns pending action items into structured Plan.md
// files in the Plans folder.
package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/msageha/vaultd/internal/approval"
	"github.com/msageha/vaultd/internal/journal"
	"github.com/msageha/vaultd/internal/model"
	"github.com/msageha/vaultd/internal/vault"
)

type Planner struct {
	store   *vault.Store
	journal *journal.Writer
	log     zerolog.Logger
}

func New(store *vault.Store, jw *journal.Writer, log zerolog.Logger) *Planner {
	return &Planner{store: store, journal: jw, log: log}
}

// CreatePlan writes a plan for one action file. Returns an empty path
// when the item is already planned.
func (p *Planner) CreatePlan(actionFile string) (string, error) {
	content, err := os.ReadFile(actionFile)
	if err != nil {
		return "", fmt.Errorf("read action file: %w", err)
	}

	meta, _ := vault.ParseFrontmatter(string(content))
	actionType := metaOr(meta, "type", "default")
	priority := metaOr(meta, "priority", model.PriorityMedium)
	status := metaOr(meta, "status", model.StatusPending)

	if status == model.StatusPlanned {
		return "", nil
	}

	tmpl := templateFor(actionType)
	needsApproval := approval.RequiresApproval(actionType) || priority == model.PriorityHigh
	now := time.Now().UTC()
	timestamp := now.Format("20060102_150405")

	base := filepath.Base(actionFile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	planName := fmt.Sprintf("PLAN_%s_%s.md", timestamp, stem)
	planPath := filepath.Join(p.store.Dir(vault.Plans), planName)

	steps := append([]string(nil), tmpl.Steps...)
	if needsApproval && !containsApprovalStep(steps) {
		// Insert the approval step just before the final wrap-up step.
		last := steps[len(steps)-1]
		steps = append(steps[:len(steps)-1], "Submit for approval (REQUIRES HUMAN APPROVAL)", last)
	}

	var stepsMd strings.Builder
	for _, step := range steps {
		fmt.Fprintf(&stepsMd, "- [ ] %s\n", step)
	}

	approvalNote := "Auto-approved - no human approval needed for this action type."
	if needsApproval {
		approvalNote = "**PENDING APPROVAL** - Move the approval request from /Pending_Approval to /Approved to proceed."
	}

	subject := meta["subject"]
	if subject == "" {
		subject = metaOr(meta, "original_name", stem)
	}
	sender := meta["from"]
	if sender == "" {
		sender = metaOr(meta, "source", "system")
	}

	planContent := vault.RenderFrontmatter([]vault.Field{
		{Key: "type", Value: "plan"},
		{Key: "plan_id", Value: planName},
		{Key: "source_file", Value: base},
		{Key: "action_type", Value: actionType},
		{Key: "priority", Value: priority},
		{Key: "created", Value: now.Format(time.RFC3339)},
		{Key: "status", Value: model.StatusPending},
		{Key: "requires_approval", Value: fmt.Sprintf("%t", needsApproval)},
	}, fmt.Sprintf(`# %s

**Source**: %s
**Type**: %s
**Priority**: %s
**From**: %s
**Subject**: %s

## Objective
Process the %s item: %s

## Steps
%s
## Approval Status
%s
`, tmpl.Title, base, actionType, priority, sender, subject, actionType, subject, stepsMd.String(), approvalNote))

	if err := vault.WriteFileAtomic(planPath, []byte(planContent)); err != nil {
		return "", fmt.Errorf("write plan: %w", err)
	}

	p.logJournal("plan_created", map[string]any{
		"plan_file":          planName,
		"source_file":        base,
		"source_action_type": actionType,
		"priority":           priority,
		"requires_approval":  needsApproval,
	})
	p.log.Info().Str("plan", planName).Bool("requires_approval", needsApproval).Msg("plan created")
	return planPath, nil
}

// CreatePlansForPending creates plans for every pending item in
// Needs_Action. Per-item failures are journaled and do not stop the
// pass. Returns the created plan paths.
func (p *Planner) CreatePlansForPending() []string {
	var created []string
	for _, item := range p.store.List(vault.NeedsAction, "*.md") {
		plan, err := p.CreatePlan(item)
		if err != nil {
			p.log.Error().Err(err).Str("file", filepath.Base(item)).Msg("plan creation failed")
			p.logJournal("plan_error", map[string]any{
				"source_file": filepath.Base(item),
				"error":       err.Error(),
			})
			continue
		}
		if plan != "" {
			created = append(created, plan)
		}
	}
	return created
}

// Pending returns the plan files currently in the Plans folder.
func (p *Planner) Pending() []string {
	return p.store.List(vault.Plans, "*.md")
}

func (p *Planner) logJournal(actionType string, details map[string]any) {
	if err := p.journal.Append(journal.ActorPlanner, actionType, details); err != nil {
		p.log.Error().Err(err).Msg("journal append failed")
	}
}

func containsApprovalStep(steps []string) bool {
	for _, s := range steps {
		if strings.Contains(s, "Submit for approval") {
			return true
		}
	}
	return false
}

func metaOr(meta map[string]string, key, fallback string) string {
	if v, ok := meta[key]; ok && v != "" {
		return v
	}
	return fallback
}
