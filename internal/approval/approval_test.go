package approval

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

func newManagerFixture(t *testing.T, ttl time.Duration) (*Manager, *vault.Store, *journal.Writer) {
	t.Helper()
	store := vault.New(t.TempDir())
	require.NoError(t, store.Ensure())
	jw, err := journal.NewWriter(store.Dir(vault.Logs), zerolog.Nop())
	require.NoError(t, err)
	mgr, err := NewManager(store, jw, zerolog.Nop(), ttl)
	require.NoError(t, err)
	return mgr, store, jw
}

func TestPolicySetsAreDisjoint(t *testing.T) {
	require.NoError(t, ValidatePolicy())

	for action := range alwaysRequireApproval {
		assert.False(t, AutoApproved(action), "action %s in both sets", action)
	}
}

func TestPolicyCategories(t *testing.T) {
	assert.True(t, RequiresApproval("payment"))
	assert.True(t, RequiresApproval("email_send"))
	assert.True(t, RequiresApproval("file_delete"))
	assert.False(t, RequiresApproval("file_organize"))
	assert.False(t, RequiresApproval("unknown_action"))

	assert.True(t, AutoApproved("file_organize"))
	assert.True(t, AutoApproved("plan_create"))
	assert.False(t, AutoApproved("payment"))
	assert.False(t, AutoApproved("unknown_action"))
}

func TestCreateRequestWritesPendingFile(t *testing.T) {
	mgr, store, jw := newManagerFixture(t, 24*time.Hour)

	path, err := mgr.CreateRequest("email_send", "Send the weekly summary", []Detail{
		{Key: "recipient", Value: "team@example.com"},
		{Key: "subject", Value: "Weekly summary"},
	}, "high")
	require.NoError(t, err)
	require.NotEmpty(t, path)
	assert.Equal(t, store.Dir(vault.PendingApproval), filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	meta, body := vault.ParseFrontmatter(content)
	assert.Equal(t, "approval_request", meta["type"])
	assert.Equal(t, "email_send", meta["action"])
	assert.Equal(t, "high", meta["priority"])
	assert.Equal(t, "pending", meta["status"])
	assert.Equal(t, "team@example.com", meta["detail_recipient"])
	assert.True(t, strings.HasSuffix(meta["request_id"], "_email_send"))

	created, err := time.Parse(time.RFC3339, meta["created"])
	require.NoError(t, err)
	expires, err := time.Parse(time.RFC3339, meta["expires"])
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, expires.Sub(created))

	assert.Contains(t, body, "Approval Required: Email Send")
	assert.Contains(t, body, "Move this file to the `/Approved` folder")
	assert.Contains(t, body, "Move this file to the `/Rejected` folder")

	require.Len(t, mgr.PendingRequests(), 1)

	entries := jw.ReadDay(time.Now().UTC())
	require.Len(t, entries, 1)
	assert.Equal(t, "approval_request_created", entries[0].ActionType)
	assert.Equal(t, journal.ActorApproval, entries[0].Actor)
}

func TestCreateRequestAutoApproved(t *testing.T) {
	mgr, store, jw := newManagerFixture(t, time.Hour)

	path, err := mgr.CreateRequest("file_organize", "Sort the inbox", nil, "low")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, 0, store.Count(vault.PendingApproval, "*.md"))

	entries := jw.ReadDay(time.Now().UTC())
	require.Len(t, entries, 1)
	assert.Equal(t, "action_auto_approved", entries[0].ActionType)
}

func TestCreateRequestInvalidPriorityFallsBack(t *testing.T) {
	mgr, _, _ := newManagerFixture(t, time.Hour)

	path, err := mgr.CreateRequest("payment", "Pay invoice", nil, "extreme")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	meta, _ := vault.ParseFrontmatter(string(data))
	assert.Equal(t, "medium", meta["priority"])
}

func TestProcessDecisionsLifecycle(t *testing.T) {
	mgr, store, jw := newManagerFixture(t, 24*time.Hour)

	approvedPath, err := mgr.CreateRequest("email_send", "Send mail", nil, "high")
	require.NoError(t, err)
	rejectedPath, err := mgr.CreateRequest("payment", "Pay invoice", nil, "high")
	require.NoError(t, err)

	// The human decides by moving the files.
	require.NoError(t, os.Rename(approvedPath,
		filepath.Join(store.Dir(vault.Approved), filepath.Base(approvedPath))))
	require.NoError(t, os.Rename(rejectedPath,
		filepath.Join(store.Dir(vault.Rejected), filepath.Base(rejectedPath))))

	counts := mgr.ProcessDecisions()
	assert.Equal(t, Counts{Approved: 1, Rejected: 1}, counts)

	assert.Equal(t, 0, store.Count(vault.Approved, "*.md"))
	assert.Equal(t, 0, store.Count(vault.Rejected, "*.md"))
	assert.Equal(t, 0, store.Count(vault.PendingApproval, "*.md"))
	assert.Equal(t, 2, store.Count(vault.Done, "*.md"))

	var granted, rejected bool
	for _, e := range jw.ReadDay(time.Now().UTC()) {
		switch e.ActionType {
		case "approval_granted":
			granted = true
			assert.Equal(t, journal.ActorHuman, e.Details["approved_by"])
		case "approval_rejected":
			rejected = true
		}
	}
	assert.True(t, granted)
	assert.True(t, rejected)
}

func TestProcessDecisionsEmptyFolders(t *testing.T) {
	mgr, _, _ := newManagerFixture(t, time.Hour)
	assert.Equal(t, Counts{}, mgr.ProcessDecisions())
}

func TestCheckExpiredIsAdvisory(t *testing.T) {
	mgr, store, jw := newManagerFixture(t, time.Hour)

	// A request whose expiry is already in the past.
	expired := NewRequest("payment", "Old request", nil, "medium", -2*time.Hour)
	expiredPath := filepath.Join(store.Dir(vault.PendingApproval), expired.Filename())
	require.NoError(t, vault.WriteFileAtomic(expiredPath, []byte(expired.Markdown())))

	fresh, err := mgr.CreateRequest("email_send", "Fresh request", nil, "medium")
	require.NoError(t, err)

	got := mgr.CheckExpired()
	require.Len(t, got, 1)
	assert.Equal(t, expiredPath, got[0])

	// Advisory only: both files stay in Pending_Approval.
	assert.FileExists(t, expiredPath)
	assert.FileExists(t, fresh)
	assert.Equal(t, 2, store.Count(vault.PendingApproval, "*.md"))

	var flagged bool
	for _, e := range jw.ReadDay(time.Now().UTC()) {
		if e.ActionType == "approval_expired" {
			flagged = true
			assert.Equal(t, expired.Filename(), e.Details["file"])
		}
	}
	assert.True(t, flagged)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Email Send", titleCase("email_send"))
	assert.Equal(t, "Payment", titleCase("payment"))
	assert.Equal(t, "External Api Call", titleCase("external_api_call"))
}
