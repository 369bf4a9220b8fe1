package core

import (
	"regexp"
	"strings"
)

var referencePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string
	Content string
}

// PromptReferences returns the column names referenced as ${Column} in a
// prompt, in order of first appearance.
func PromptReferences(prompt string) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, m := range referencePattern.FindAllStringSubmatch(prompt, -1) {
		name := strings.TrimSpace(m[1])
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, name)
	}
	return refs
}

// RenderPrompt replaces ${Column} references with row values. Column names
// match case-insensitively; unknown references render as empty text.
func RenderPrompt(prompt string, values map[string]any) string {
	lower := make(map[string]any, len(values))
	for k, v := range values {
		lower[strings.ToLower(k)] = v
	}
	return referencePattern.ReplaceAllStringFunc(prompt, func(ref string) string {
		name := strings.ToLower(strings.TrimSpace(ref[2 : len(ref)-1]))
		v, ok := lower[name]
		if !ok || v == nil {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		return stringify(v)
	})
}

// RenamePromptReferences rewrites ${Column} references using renames, keyed
// case-insensitively by the old column name.
func RenamePromptReferences(prompt string, renames map[string]string) string {
	if len(renames) == 0 {
		return prompt
	}
	lower := make(map[string]string, len(renames))
	for from, to := range renames {
		lower[strings.ToLower(from)] = to
	}
	return referencePattern.ReplaceAllStringFunc(prompt, func(ref string) string {
		if to, ok := lower[strings.ToLower(strings.TrimSpace(ref[2:len(ref)-1]))]; ok {
			return "${" + to + "}"
		}
		return ref
	})
}
