package vault

import (
	"bufio"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFrontmatter extracts the "---" delimited metadata header from an
// action or approval file. All values are returned as strings; unknown
// keys are preserved. Missing or malformed frontmatter yields an empty
// map and the full content as body.
func ParseFrontmatter(content string) (map[string]string, string) {
	scanner := bufio.NewScanner(strings.NewReader(content))

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "---" {
		return map[string]string{}, content
	}

	var lines []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			closed = true
			break
		}
		lines = append(lines, line)
	}
	if !closed {
		return map[string]string{}, content
	}

	var body strings.Builder
	for scanner.Scan() {
		body.WriteString(scanner.Text())
		body.WriteString("\n")
	}

	meta := map[string]string{}
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &raw); err != nil {
		return meta, body.String()
	}
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			meta[k] = val
		case nil:
			meta[k] = ""
		default:
			meta[k] = fmt.Sprintf("%v", val)
		}
	}
	return meta, body.String()
}

// Field is one ordered frontmatter key/value pair.
type Field struct {
	Key   string
	Value string
}

// RenderFrontmatter builds a file with a "---" delimited header followed
// by the body. Fields keep their given order; values that need quoting
// are quoted through the YAML encoder.
func RenderFrontmatter(fields []Field, body string) string {
	var b strings.Builder
	b.WriteString("---\n")
	for _, f := range fields {
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(yamlScalar(f.Value))
		b.WriteString("\n")
	}
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String()
}

func yamlScalar(v string) string {
	if v == "" {
		return `""`
	}
	// Quote anything that YAML could misread as structure.
	if strings.ContainsAny(v, ":#\"'\n{}[]&*?|>%@`") || strings.TrimSpace(v) != v {
		out, err := yaml.Marshal(v)
		if err != nil {
			return `""`
		}
		return strings.TrimRight(string(out), "\n")
	}
	return v
}
