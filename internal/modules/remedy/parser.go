package remedy

import (
	"regexp"
	"strings"

	rtypes "github.com/classforge/classforge-backend/internal/domain/remedy"
)

var (
	listItemRe = regexp.MustCompile(`^\s*(?:[-*]|\d+[.)])\s*(.+)$`)
	gradeRe    = regexp.MustCompile(`(?i)grade\s+(\d+)`)
)

/*
parsePrerequisiteLines extracts prerequisite topics from free-form model
output. Recognized item lines start with "-", "*", or a number; the text
before the first ":" becomes the topic. A "grade N" mention anywhere in the
line sets the grade level ("grade_N"), defaulting to "previous".
Non-item lines following an item are folded into its description.
*/
func parsePrerequisiteLines(raw string) []rtypes.PrerequisiteTopic {
	var out []rtypes.PrerequisiteTopic
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		m := listItemRe.FindStringSubmatch(trimmed)
		if m == nil {
			if len(out) > 0 {
				last := &out[len(out)-1]
				if last.Description == "" {
					last.Description = trimmed
				} else {
					last.Description += " " + trimmed
				}
			}
			continue
		}

		body := strings.TrimSpace(m[1])
		topic := body
		desc := ""
		if idx := strings.Index(body, ":"); idx >= 0 {
			topic = strings.TrimSpace(body[:idx])
			desc = strings.TrimSpace(body[idx+1:])
		}
		if topic == "" {
			continue
		}

		grade := "previous"
		if gm := gradeRe.FindStringSubmatch(body); gm != nil {
			grade = "grade_" + gm[1]
		}

		out = append(out, rtypes.PrerequisiteTopic{
			Topic:       topic,
			GradeLevel:  grade,
			Priority:    len(out) + 1,
			Description: desc,
			Source:      "llm_fallback",
			SuccessRate: 0.5,
		})
	}
	return out
}
