// Package template implements placeholder substitution for agent prompts.
package template

import "regexp"

// varPattern matches {{name}} placeholders. Only alphanumeric and
// underscore names are recognized; unbalanced braces or names with
// whitespace never match and pass through untouched.
var varPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Vars is the fixed variable set available to prompt templates.
type Vars struct {
	StoryID      string
	Branch       string
	WorktreePath string
	AgentName    string
}

func (v Vars) lookup(name string) (string, bool) {
	switch name {
	case "storyId":
		return v.StoryID, true
	case "branch":
		return v.Branch, true
	case "worktreePath":
		return v.WorktreePath, true
	case "agentName":
		return v.AgentName, true
	}
	return "", false
}

// Substitute replaces every known {{name}} placeholder in text and
// returns the result plus the distinct unknown placeholder names in
// first-seen order. Unknown placeholders are left byte-for-byte
// unchanged. Substitution is pure and cannot fail.
func Substitute(text string, vars Vars) (string, []string) {
	var missing []string
	seen := make(map[string]bool)

	result := varPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[2 : len(match)-2]
		if value, ok := vars.lookup(name); ok {
			return value
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return match
	})

	return result, missing
}
