package approval

import (
	"fmt"
	"strings"
	"time"

	"github.com/msageha/vaultd/internal/model"
	"github.com/msageha/vaultd/internal/vault"
)

// Detail is one ordered key/value pair shown to the approver.
type Detail struct {
	Key   string
	Value string
}

// Request is a pending human decision gating a sensitive action.
type Request struct {
	Action      string
	Description string
	Details     []Detail
	Priority    string
	Created     time.Time
	Expires     time.Time
	// RequestID is the creation timestamp plus the action name. Unique
	// as long as no two requests for the same action are created within
	// the same second.
	RequestID string
}

// NewRequest builds a request with the given TTL.
func NewRequest(action, description string, details []Detail, priority string, ttl time.Duration) *Request {
	if !model.ValidPriority(priority) {
		priority = model.PriorityMedium
	}
	now := time.Now().UTC()
	return &Request{
		Action:      action,
		Description: description,
		Details:     details,
		Priority:    priority,
		Created:     now,
		Expires:     now.Add(ttl),
		RequestID:   now.Format("20060102_150405") + "_" + action,
	}
}

// Filename returns the file name the request is stored under.
func (r *Request) Filename() string {
	return "APPROVAL_" + r.RequestID + ".md"
}

// Markdown renders the request file: frontmatter consumed by the
// engine, body read by the human approver.
func (r *Request) Markdown() string {
	fields := []vault.Field{
		{Key: "type", Value: "approval_request"},
		{Key: "request_id", Value: r.RequestID},
		{Key: "action", Value: r.Action},
		{Key: "priority", Value: r.Priority},
		{Key: "created", Value: r.Created.Format(time.RFC3339)},
		{Key: "expires", Value: r.Expires.Format(time.RFC3339)},
		{Key: "status", Value: model.StatusPending},
	}
	for _, d := range r.Details {
		fields = append(fields, vault.Field{Key: "detail_" + d.Key, Value: d.Value})
	}

	var details strings.Builder
	if len(r.Details) > 0 {
		details.WriteString("\n### Details\n")
		for _, d := range r.Details {
			fmt.Fprintf(&details, "- **%s**: %s\n", d.Key, d.Value)
		}
	}

	title := titleCase(r.Action)

	body := fmt.Sprintf(`# Approval Required: %s

%s
%s
## How to Respond
- **To Approve**: Move this file to the `+"`/Approved`"+` folder
- **To Reject**: Move this file to the `+"`/Rejected`"+` folder

> **Expires**: %s
> **Priority**: %s
`, title, r.Description, details.String(), r.Expires.Format("2006-01-02 15:04 UTC"), r.Priority)

	return vault.RenderFrontmatter(fields, body)
}

// titleCase turns an action name like "email_send" into "Email Send".
func titleCase(action string) string {
	words := strings.Split(action, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
