// Package approval implements the human-in-the-loop gate: sensitive
// actions become request files in Pending_Approval, a human decides by
// moving the file, and the manager archives the decision.
package approval

import (
	"fmt"
	"sort"
)

// alwaysRequireApproval lists action categories that must never proceed
// without an explicit human decision, regardless of priority.
var alwaysRequireApproval = map[string]bool{
	"payment":           true,
	"email_send":        true,
	"linkedin_post":     true,
	"social_post":       true,
	"file_delete":       true,
	"external_api_call": true,
	"new_contact_email": true,
}

// autoApprove lists action categories that never generate a request.
// Must stay disjoint from alwaysRequireApproval; ValidatePolicy enforces
// that at startup.
var autoApprove = map[string]bool{
	"file_organize":    true,
	"log_create":       true,
	"dashboard_update": true,
	"plan_create":      true,
}

// RequiresApproval reports whether the action category always needs a
// human decision.
func RequiresApproval(action string) bool {
	return alwaysRequireApproval[action]
}

// AutoApproved reports whether the action category proceeds without a
// request.
func AutoApproved(action string) bool {
	return autoApprove[action]
}

// ValidatePolicy returns an error if any category appears in both sets,
// which would make approval-requirement ambiguous.
func ValidatePolicy() error {
	var overlap []string
	for action := range alwaysRequireApproval {
		if autoApprove[action] {
			overlap = append(overlap, action)
		}
	}
	if len(overlap) > 0 {
		sort.Strings(overlap)
		return fmt.Errorf("approval policy overlap: %v appear in both always-require and auto-approve", overlap)
	}
	return nil
}
