package job

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestValidate_MissingFields(t *testing.T) {
	_, err := Record{Source: "remotive", Title: "Eng"}.Validate()
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	if !strings.Contains(err.Error(), "external_id") || !strings.Contains(err.Error(), "company") {
		t.Fatalf("expected missing field names in error, got %v", err)
	}
}

func TestValidate_SalaryInversionIsWarning(t *testing.T) {
	r := Record{Source: "a", ExternalID: "1", Title: "Eng", Company: "X", SalaryMin: intPtr(9000), SalaryMax: intPtr(100)}
	warnings, err := r.Validate()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "a:1") {
		t.Fatalf("expected one salary warning, got %v", warnings)
	}
}

func TestFingerprint_IgnoresPunctuationAndSpacing(t *testing.T) {
	a := Fingerprint("Senior  Go Engineer!", "Acme, Inc.")
	b := Fingerprint(" senior go engineer ", "ACME Inc")
	if a != b {
		t.Fatalf("expected equal fingerprints, got %q vs %q", a, b)
	}
	if ContentKey(" Eng ", "X") != ContentKey("eng", "x ") {
		t.Fatalf("expected equal content keys")
	}
}

func TestQualityScore_PrefersCompleteRecords(t *testing.T) {
	now := time.Now()
	sparse := Record{Title: "Eng", Company: "X"}
	rich := Record{
		Title:        "Eng",
		Company:      "X",
		Description:  strings.Repeat("d", 150),
		SalaryMin:    intPtr(1000),
		SalaryMax:    intPtr(2000),
		Category:     "software-dev",
		Tags:         []string{"go"},
		ApplyURL:     "https://example.com",
		PublishedAt:  &now,
		Requirements: "go",
	}
	if QualityScore(rich) <= QualityScore(sparse) {
		t.Fatalf("expected rich record to score higher: %d <= %d", QualityScore(rich), QualityScore(sparse))
	}
	if QualityScore(sparse) != 10 {
		t.Fatalf("expected base score 10, got %d", QualityScore(sparse))
	}
}
