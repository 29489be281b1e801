package planner

// planTemplate maps an action type to a plan title and default steps.
type planTemplate struct {
	Title string
	Steps []string
}

var planTemplates = map[string]planTemplate{
	"email": {
		Title: "Email Response Plan",
		Steps: []string{
			"Read and analyze email content",
			"Check handbook for response guidelines",
			"Draft response",
			"Submit for approval (if external)",
			"Send response",
			"Log action and move to Done",
		},
	},
	"file_drop": {
		Title: "File Processing Plan",
		Steps: []string{
			"Review file contents and metadata",
			"Categorize file by type and priority",
			"Determine required actions",
			"Execute processing steps",
			"Update Dashboard",
			"Move to Done",
		},
	},
	"message": {
		Title: "Message Response Plan",
		Steps: []string{
			"Read message content",
			"Check if sender is a known contact",
			"Draft appropriate response",
			"Submit for approval",
			"Send response",
			"Log action",
		},
	},
	"connection": {
		Title: "Connection Request Plan",
		Steps: []string{
			"Review the requester's profile",
			"Check against business goals for relevance",
			"Accept or decline connection",
			"Send welcome message if accepted",
			"Log decision",
		},
	},
	"engagement": {
		Title: "Engagement Plan",
		Steps: []string{
			"Review engagement notification",
			"Determine if a response is needed",
			"Draft response if applicable",
			"Execute engagement action",
			"Log action",
		},
	},
}

var defaultTemplate = planTemplate{
	Title: "Action Plan",
	Steps: []string{
		"Analyze item details",
		"Determine required actions",
		"Check handbook for guidelines",
		"Execute actions",
		"Update Dashboard",
		"Move to Done",
	},
}

func templateFor(actionType string) planTemplate {
	if t, ok := planTemplates[actionType]; ok {
		return t
	}
	return defaultTemplate
}
