package watcher

import (
	"regexp"
	"strings"

	"github.com/msageha/vaultd/internal/model"
)

// priorityKeywords classifies inbound content. Tiers are checked in
// order: high first, then medium, defaulting to low.
var priorityKeywords = map[string][]string{
	model.PriorityHigh:   {"urgent", "asap", "critical", "important", "priority"},
	model.PriorityMedium: {"invoice", "payment", "review", "request"},
}

// ClassifyPriority returns the priority tier for a filename or subject.
func ClassifyPriority(text string) string {
	lower := strings.ToLower(text)
	for _, level := range []string{model.PriorityHigh, model.PriorityMedium} {
		for _, kw := range priorityKeywords[level] {
			if strings.Contains(lower, kw) {
				return level
			}
		}
	}
	return model.PriorityLow
}

var unsafeChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// SanitizeName strips path traversal sequences and characters that
// could escape the target directory or break frontmatter.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, `\`, "")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		return "unnamed"
	}
	return name
}
