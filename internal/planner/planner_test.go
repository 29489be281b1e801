package planner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/vaultd/internal/journal"
	"github.com/msageha/vaultd/internal/vault"
)

func newPlannerFixture(t *testing.T) (*Planner, *vault.Store, *journal.Writer) {
	t.Helper()
	store := vault.New(t.TempDir())
	require.NoError(t, store.Ensure())
	jw, err := journal.NewWriter(store.Dir(vault.Logs), zerolog.Nop())
	require.NoError(t, err)
	return New(store, jw, zerolog.Nop()), store, jw
}

func writeActionFile(t *testing.T, store *vault.Store, name string, fields []vault.Field) string {
	t.Helper()
	path := filepath.Join(store.Dir(vault.NeedsAction), name)
	require.NoError(t, vault.WriteFileAtomic(path, []byte(vault.RenderFrontmatter(fields, "Body\n"))))
	return path
}

func TestCreatePlanForEmailRequiresApproval(t *testing.T) {
	p, store, jw := newPlannerFixture(t)

	action := writeActionFile(t, store, "EMAIL_20260310_120000_invoice.md", []vault.Field{
		{Key: "type", Value: "email"},
		{Key: "priority", Value: "medium"},
		{Key: "status", Value: "pending"},
		{Key: "subject", Value: "Invoice overdue"},
		{Key: "from", Value: "billing@example.com"},
	})

	planPath, err := p.CreatePlan(action)
	require.NoError(t, err)
	require.NotEmpty(t, planPath)
	assert.Equal(t, store.Dir(vault.Plans), filepath.Dir(planPath))

	data, err := os.ReadFile(planPath)
	require.NoError(t, err)
	content := string(data)

	meta, body := vault.ParseFrontmatter(content)
	assert.Equal(t, "plan", meta["type"])
	assert.Equal(t, "email", meta["action_type"])
	assert.Equal(t, "true", meta["requires_approval"])
	assert.Equal(t, "EMAIL_20260310_120000_invoice.md", meta["source_file"])

	// The email template carries its own approval step; no duplicate is
	// inserted.
	assert.Contains(t, body, "Submit for approval")
	assert.NotContains(t, body, "REQUIRES HUMAN APPROVAL)")
	assert.Contains(t, body, "Invoice overdue")
	assert.Contains(t, body, "billing@example.com")
	assert.Contains(t, body, "PENDING APPROVAL")

	entries := jw.ReadDay(time.Now().UTC())
	require.Len(t, entries, 1)
	assert.Equal(t, "plan_created", entries[0].ActionType)
	assert.Equal(t, journal.ActorPlanner, entries[0].Actor)
	assert.Equal(t, true, entries[0].Details["requires_approval"])
}

func TestCreatePlanHighPriorityAlwaysRequiresApproval(t *testing.T) {
	p, store, _ := newPlannerFixture(t)

	// file_drop is not in the always-require set, but high priority
	// forces the approval gate anyway.
	action := writeActionFile(t, store, "FILE_urgent_report.md", []vault.Field{
		{Key: "type", Value: "file_drop"},
		{Key: "priority", Value: "high"},
		{Key: "status", Value: "pending"},
	})

	planPath, err := p.CreatePlan(action)
	require.NoError(t, err)

	data, err := os.ReadFile(planPath)
	require.NoError(t, err)
	meta, body := vault.ParseFrontmatter(string(data))
	assert.Equal(t, "true", meta["requires_approval"])
	assert.Contains(t, body, "PENDING APPROVAL")

	// The template has no approval step of its own, so one is inserted
	// before the final wrap-up step.
	approvalIdx := strings.Index(body, "Submit for approval (REQUIRES HUMAN APPROVAL)")
	require.Greater(t, approvalIdx, 0)
	assert.Less(t, approvalIdx, strings.LastIndex(body, "- [ ]"))
}

func TestCreatePlanLowPriorityFileDropAutoProceeds(t *testing.T) {
	p, store, _ := newPlannerFixture(t)

	action := writeActionFile(t, store, "FILE_notes.md", []vault.Field{
		{Key: "type", Value: "file_drop"},
		{Key: "priority", Value: "low"},
		{Key: "status", Value: "pending"},
	})

	planPath, err := p.CreatePlan(action)
	require.NoError(t, err)

	data, err := os.ReadFile(planPath)
	require.NoError(t, err)
	meta, body := vault.ParseFrontmatter(string(data))
	assert.Equal(t, "false", meta["requires_approval"])
	assert.NotContains(t, body, "Submit for approval")
	assert.Contains(t, body, "Auto-approved")
}

func TestCreatePlanSkipsAlreadyPlanned(t *testing.T) {
	p, store, jw := newPlannerFixture(t)

	action := writeActionFile(t, store, "EMAIL_done.md", []vault.Field{
		{Key: "type", Value: "email"},
		{Key: "status", Value: "planned"},
	})

	planPath, err := p.CreatePlan(action)
	require.NoError(t, err)
	assert.Empty(t, planPath)
	assert.Empty(t, p.Pending())
	assert.Empty(t, jw.ReadDay(time.Now().UTC()))
}

func TestCreatePlanUnknownTypeUsesDefaultTemplate(t *testing.T) {
	p, _, _ := newPlannerFixture(t)
	store := p.store

	action := writeActionFile(t, store, "ITEM_misc.md", []vault.Field{
		{Key: "type", Value: "carrier_pigeon"},
	})

	planPath, err := p.CreatePlan(action)
	require.NoError(t, err)

	data, err := os.ReadFile(planPath)
	require.NoError(t, err)
	meta, _ := vault.ParseFrontmatter(string(data))
	assert.Equal(t, "carrier_pigeon", meta["action_type"])
	// Missing priority defaults to medium.
	assert.Equal(t, "medium", meta["priority"])
}

func TestCreatePlansForPending(t *testing.T) {
	p, store, jw := newPlannerFixture(t)

	writeActionFile(t, store, "EMAIL_a.md", []vault.Field{
		{Key: "type", Value: "email"},
		{Key: "status", Value: "pending"},
	})
	writeActionFile(t, store, "FILE_b.md", []vault.Field{
		{Key: "type", Value: "file_drop"},
		{Key: "status", Value: "pending"},
	})
	writeActionFile(t, store, "EMAIL_planned.md", []vault.Field{
		{Key: "type", Value: "email"},
		{Key: "status", Value: "planned"},
	})

	created := p.CreatePlansForPending()
	require.Len(t, created, 2)
	assert.Len(t, p.Pending(), 2)

	entries := jw.ReadDay(time.Now().UTC())
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "plan_created", e.ActionType)
	}
}
