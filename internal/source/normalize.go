package source

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"job-sync/internal/domain/job"

	"github.com/PuerkitoBio/goquery"
)

type categoryRule struct {
	category string
	keywords []string
}

// Order matters: the first rule with a matching keyword wins.
var categoryRules = []categoryRule{
	{"software-dev", []string{"engineer", "developer", "programming", "software"}},
	{"data", []string{"data", "analytics", "machine learning", "ai "}},
	{"devops", []string{"devops", "sre", "infrastructure", "cloud"}},
	{"design", []string{"design", "ux", "ui", "creative"}},
	{"product", []string{"product"}},
	{"marketing", []string{"marketing", "seo", "growth"}},
	{"sales", []string{"sales", "business development", "account"}},
	{"customer-support", []string{"customer", "support", "success"}},
	{"hr", []string{"hr", "human resources", "recruiting", "talent"}},
	{"finance", []string{"finance", "accounting", "financial"}},
	{"legal", []string{"legal", "compliance"}},
	{"operations", []string{"operations", "ops"}},
	{"writing", []string{"writing", "content", "copywriting", "editor"}},
	{"qa", []string{"qa", "quality", "testing"}},
	{"management", []string{"management", "manager", "director", "lead"}},
}

// NormalizeCategory maps a free-form category to the canonical set. An empty
// input stays empty; anything unrecognised is "other".
func NormalizeCategory(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return ""
	}
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return "other"
}

func NormalizeExperienceLevel(raw string) job.ExperienceLevel {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case lower == "":
		return ""
	case containsAny(lower, "entry", "junior", "intern"):
		return job.ExperienceEntry
	case containsAny(lower, "mid", "intermediate"):
		return job.ExperienceMid
	case containsAny(lower, "senior", "sr", "lead"):
		return job.ExperienceSenior
	case containsAny(lower, "executive", "director", "vp", "chief"):
		return job.ExperienceExecutive
	}
	return ""
}

// NormalizeEmploymentType defaults to full-time.
func NormalizeEmploymentType(raw string) job.EmploymentType {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lower, "full"):
		return job.EmploymentFullTime
	case strings.Contains(lower, "part"):
		return job.EmploymentPartTime
	case containsAny(lower, "contract", "freelance"):
		return job.EmploymentContract
	case strings.Contains(lower, "intern"):
		return job.EmploymentInternship
	case strings.Contains(lower, "temp"):
		return job.EmploymentTemporary
	}
	return job.EmploymentFullTime
}

func LocationTypeOf(remote bool, location string) job.LocationType {
	if remote {
		return job.LocationRemote
	}
	lower := strings.ToLower(location)
	switch {
	case strings.Contains(lower, "remote"):
		return job.LocationRemote
	case strings.Contains(lower, "hybrid"):
		return job.LocationHybrid
	}
	return job.LocationOnsite
}

var (
	salaryStripRe  = regexp.MustCompile(`[,\s]`)
	salaryNumberRe = regexp.MustCompile(`\d+`)
)

// SalaryRange is a parsed salary; nil bounds mean unknown.
type SalaryRange struct {
	Min      *int
	Max      *int
	Currency string
}

// ParseSalary extracts a range from strings such as "$80,000 - $120,000" or
// "€50k". Numbers of 100 or less are ignored as noise.
func ParseSalary(raw string) SalaryRange {
	out := SalaryRange{Currency: "USD"}
	if strings.TrimSpace(raw) == "" {
		return out
	}
	cleaned := strings.ToLower(salaryStripRe.ReplaceAllString(raw, ""))
	switch {
	case strings.Contains(cleaned, "eur") || strings.Contains(cleaned, "€"):
		out.Currency = "EUR"
	case strings.Contains(cleaned, "gbp") || strings.Contains(cleaned, "£"):
		out.Currency = "GBP"
	}

	var values []int
	for _, m := range salaryNumberRe.FindAllString(cleaned, -1) {
		v, err := strconv.Atoi(m)
		if err != nil || v <= 100 {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	out.Min, out.Max = &lo, &hi
	return out
}

// ParseSalaryBound parses one numeric bound, dropping values of 100 or less.
func ParseSalaryBound(raw string) *int {
	v := ParseAmount(raw)
	if v == nil || *v <= 100 {
		return nil
	}
	return v
}

// ParseAmount parses a positive amount, truncating any fractional part.
func ParseAmount(raw string) *int {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// HTMLToText flattens an HTML fragment to whitespace-collapsed text.
func HTMLToText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	doc.Find("script, style").Remove()
	doc.Find("br, p, div, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml(" ")
		s.AfterHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// TruncateDescription caps s at job.MaxDescriptionLen runes, marking the cut.
func TruncateDescription(s string) string {
	r := []rune(s)
	if len(r) <= job.MaxDescriptionLen {
		return s
	}
	return string(r[:job.MaxDescriptionLen]) + "..."
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// ParseTime accepts the timestamp shapes the sources emit. Unparseable or
// empty input yields nil.
func ParseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstOf(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// newRecord fills the fields every adapter sets the same way.
func newRecord(source, externalID string) job.Record {
	now := time.Now().UTC()
	return job.Record{
		Source:       source,
		ExternalID:   strings.TrimSpace(externalID),
		LocationType: job.LocationOnsite,
		FetchedAt:    now,
		LastSyncedAt: now,
		SyncStatus:   job.StatusActive,
		IsActive:     true,
	}
}

// finish applies the shared description handling and required-field check.
func finish(r job.Record) (job.Record, bool) {
	r.Title = strings.TrimSpace(r.Title)
	r.Company = strings.TrimSpace(r.Company)
	r.Description = TruncateDescription(r.Description)
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.ExternalID == "" || r.Title == "" || r.Company == "" {
		return job.Record{}, false
	}
	return r, true
}
