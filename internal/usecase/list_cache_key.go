package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"job-sync/internal/infrastructure/cache"
)

type jobListCacheKeyInput struct {
	Category         string `json:"category"`
	Source           string `json:"source"`
	LocationType     string `json:"location_type"`
	ExperienceLevel  string `json:"experience_level"`
	EmploymentType   string `json:"employment_type"`
	SalaryMin        *int   `json:"salary_min"`
	SalaryMax        *int   `json:"salary_max"`
	PostedWithinDays int    `json:"posted_within_days"`
	Query            string `json:"q"`
	Page             int    `json:"page"`
	Limit            int    `json:"limit"`
}

func normalizeSearchValue(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// JobsListCacheKey hashes the normalized parameters. Only case-insensitive
// filters are lowercased; category matches exactly.
func JobsListCacheKey(params JobListParams) string {
	in := jobListCacheKeyInput{
		Category:         strings.TrimSpace(params.Category),
		Source:           normalizeSearchValue(params.Source),
		LocationType:     normalizeSearchValue(params.LocationType),
		ExperienceLevel:  normalizeSearchValue(params.ExperienceLevel),
		EmploymentType:   normalizeSearchValue(params.EmploymentType),
		SalaryMin:        params.SalaryMin,
		SalaryMax:        params.SalaryMax,
		PostedWithinDays: params.PostedWithinDays,
		Query:            normalizeSearchValue(params.Query),
		Page:             params.Page,
		Limit:            params.Limit,
	}

	b, _ := json.Marshal(in)
	sum := sha256.Sum256(b)
	return cache.JobsListPrefix + hex.EncodeToString(sum[:])
}
