package memory

import "strings"

// technologyCatalog is matched against stack descriptions, in this order.
var technologyCatalog = []string{
	"react", "angular", "vue", "node", "express",
	"django", "flask", "fastapi", "spring",
	"docker", "kubernetes",
	"aws", "gcp", "azure",
	"mongodb", "postgresql", "mysql", "redis", "firebase",
}

// insightVocabulary decides which technology a reported risk is filed under.
var insightVocabulary = []string{
	"sql", "xss", "csrf", "authentication", "authorization",
	"encryption", "docker", "kubernetes", "aws", "database",
}

// DetectTechnologies returns catalog terms found in text, in catalog order.
func DetectTechnologies(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, tech := range technologyCatalog {
		if strings.Contains(lower, tech) {
			found = append(found, tech)
		}
	}
	return found
}

// VocabularyTerm returns the first vocabulary term contained in text.
func VocabularyTerm(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, term := range insightVocabulary {
		if strings.Contains(lower, term) {
			return term, true
		}
	}
	return "", false
}

// Keywords returns the first n lowercase whitespace-separated tokens.
func Keywords(text string, n int) []string {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) > n {
		fields = fields[:n]
	}
	return fields
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
