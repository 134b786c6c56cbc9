package research

import "strings"

// FindingExtractor pulls key findings out of an executor's free-text analysis.
type FindingExtractor interface {
	Extract(analysis string) []string
}

// KeywordExtractor keeps every line that mentions one of Keywords,
// case-insensitively. The zero value matches "finding" and "discovered".
type KeywordExtractor struct {
	Keywords []string
}

func (k KeywordExtractor) Extract(analysis string) []string {
	keywords := k.Keywords
	if len(keywords) == 0 {
		keywords = []string{"finding", "discovered"}
	}

	var findings []string
	for _, line := range strings.Split(analysis, "\n") {
		line = strings.TrimSuffix(line, "\r")
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				findings = append(findings, line)
				break
			}
		}
	}
	return findings
}
