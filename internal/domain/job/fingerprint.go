package job

import (
	"strings"
	"unicode"
)

// ContentKey groups records by trimmed, lower-cased title and company.
// It matches the grouping used against the store.
func ContentKey(title, company string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(company))
}

// Fingerprint is a looser key for in-batch matching: punctuation is dropped
// and whitespace runs collapse to one space.
func Fingerprint(title, company string) string {
	return normalizeForFingerprint(title) + "-" + normalizeForFingerprint(company)
}

func normalizeForFingerprint(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// QualityScore rates how complete a record is. Higher wins when two records
// in one batch share a fingerprint.
func QualityScore(r Record) int {
	score := 10
	if len(r.Description) > 100 {
		score += 15
	}
	if r.DescriptionHTML != "" {
		score += 5
	}
	if r.SalaryMin != nil || r.SalaryMax != nil {
		score += 10
	}
	if r.SalaryMin != nil && r.SalaryMax != nil {
		score += 5
	}
	if r.Requirements != "" {
		score += 8
	}
	if r.Benefits != "" {
		score += 7
	}
	if r.CompanyLogo != "" {
		score += 5
	}
	if r.CompanyURL != "" {
		score += 5
	}
	if r.Category != "" {
		score += 5
	}
	if len(r.Tags) > 0 {
		score += 5
	}
	if r.ExperienceLevel != "" {
		score += 5
	}
	if r.EmploymentType != "" {
		score += 5
	}
	if r.Location != "" {
		score += 5
	}
	if r.ApplyURL != "" {
		score += 5
	}
	if r.PublishedAt != nil {
		score += 5
	}
	return score
}
