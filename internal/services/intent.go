package services

import (
	"regexp"
	"strings"
)

// Keyword heuristics for the routing decision. The quiz-start check also
// accepts the frontend's explicit slash command.

var docIDPattern = regexp.MustCompile(`(?i)doc(?:ument_id)?\s*[:=]\s*([A-Za-z0-9_-]+)`)

func extractDocumentID(query string) string {
	m := docIDPattern.FindStringSubmatch(query)
	if len(m) == 2 {
		return m[1]
	}
	return ""
}

func isQuizStartQuery(query string) bool {
	clean := strings.NewReplacer("'", "", `"`, "").Replace(strings.ToLower(strings.TrimSpace(query)))
	if clean == "/start_quiz" {
		return true
	}
	for _, phrase := range []string{"start quiz", "quiz me on", "begin quiz"} {
		if strings.Contains(clean, phrase) {
			return true
		}
	}
	return false
}

func isCancelQuery(query string) bool {
	switch strings.ToLower(strings.TrimSpace(query)) {
	case "cancel quiz", "stop quiz", "exit quiz", "end quiz":
		return true
	default:
		return false
	}
}

func isDocumentQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, phrase := range []string{
		"understand this document",
		"analyze this document",
		"explain this document",
		"document analysis",
		"summarize document structure",
	} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
