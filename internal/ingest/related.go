package ingest

import (
	"regexp"
	"strings"
)

var (
	relatedHeadingRe = regexp.MustCompile(`(?i)^#{0,6}\s*\**\s*related( questions| topics)?\s*:?\**\s*$`)
	bulletRe         = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.*)$`)
)

// SplitAnswer separates the main answer body from a trailing "Related
// questions" section, if the model produced one. Bullet and number
// prefixes are stripped and soft-wrapped lines are joined back onto
// their question.
func SplitAnswer(text string) (string, []string) {
	lines := strings.Split(text, "\n")

	headingIdx := -1
	for i, line := range lines {
		if relatedHeadingRe.MatchString(strings.TrimSpace(line)) {
			headingIdx = i
			break
		}
	}
	if headingIdx < 0 {
		return strings.TrimSpace(text), nil
	}

	main := strings.TrimSpace(strings.Join(lines[:headingIdx], "\n"))

	var questions []string
	for _, line := range lines[headingIdx+1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			questions = append(questions, strings.TrimSpace(m[1]))
		} else if len(questions) > 0 {
			// Continuation of a soft-wrapped question.
			questions[len(questions)-1] += " " + trimmed
		} else {
			questions = append(questions, trimmed)
		}
	}
	return main, questions
}
