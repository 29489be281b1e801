package model

// Priority levels for action items and approval requests.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Item statuses recorded in frontmatter.
const (
	StatusPending = "pending"
	StatusPlanned = "planned"
)

// ValidPriority reports whether p is a recognized priority level.
func ValidPriority(p string) bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}
