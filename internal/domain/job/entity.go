package job

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LocationType string

const (
	LocationOnsite LocationType = "onsite"
	LocationRemote LocationType = "remote"
	LocationHybrid LocationType = "hybrid"
)

type ExperienceLevel string

const (
	ExperienceEntry     ExperienceLevel = "entry"
	ExperienceMid       ExperienceLevel = "mid"
	ExperienceSenior    ExperienceLevel = "senior"
	ExperienceExecutive ExperienceLevel = "executive"
)

type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "full-time"
	EmploymentPartTime   EmploymentType = "part-time"
	EmploymentContract   EmploymentType = "contract"
	EmploymentInternship EmploymentType = "internship"
	EmploymentTemporary  EmploymentType = "temporary"
)

type SalaryPeriod string

const (
	SalaryYearly SalaryPeriod = "yearly"
	SalaryHourly SalaryPeriod = "hourly"
)

type SyncStatus string

const (
	StatusActive  SyncStatus = "active"
	StatusStale   SyncStatus = "stale"
	StatusExpired SyncStatus = "expired"
)

// MaxDescriptionLen bounds the stored plain-text description.
const MaxDescriptionLen = 5000

var ErrMissingField = errors.New("missing required field")

// Record is the canonical, source-agnostic job posting. Empty strings and
// nil pointers are stored as NULL.
type Record struct {
	ID         uuid.UUID
	Source     string
	ExternalID string

	Title       string
	Company     string
	CompanyLogo string
	CompanyURL  string

	Category        string
	Location        string
	LocationType    LocationType
	ExperienceLevel ExperienceLevel
	EmploymentType  EmploymentType

	SalaryMin      *int
	SalaryMax      *int
	SalaryCurrency string
	SalaryPeriod   SalaryPeriod

	Description     string
	DescriptionHTML string
	Requirements    string
	Benefits        string
	Tags            []string

	ApplyURL    string
	PublishedAt *time.Time
	ExpiresAt   *time.Time
	FetchedAt   time.Time

	LastSyncedAt time.Time
	SyncStatus   SyncStatus
	StaleAt      *time.Time
	IsActive     bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key is the natural identity used for exact matching.
func (r Record) Key() string {
	return r.Source + ":" + r.ExternalID
}

// Validate rejects records missing an identity field and returns advisory
// warnings for inconsistent but storable data.
func (r Record) Validate() (warnings []string, err error) {
	var missing []string
	if strings.TrimSpace(r.Source) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(r.ExternalID) == "" {
		missing = append(missing, "external_id")
	}
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.Company) == "" {
		missing = append(missing, "company")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	if r.SalaryMin != nil && r.SalaryMax != nil && *r.SalaryMin > *r.SalaryMax {
		warnings = append(warnings, fmt.Sprintf("%s: salary_min %d exceeds salary_max %d", r.Key(), *r.SalaryMin, *r.SalaryMax))
	}
	return warnings, nil
}

func (t LocationType) Valid() bool {
	switch t {
	case LocationOnsite, LocationRemote, LocationHybrid:
		return true
	}
	return false
}

func (l ExperienceLevel) Valid() bool {
	switch l {
	case ExperienceEntry, ExperienceMid, ExperienceSenior, ExperienceExecutive:
		return true
	}
	return false
}

func (t EmploymentType) Valid() bool {
	switch t {
	case EmploymentFullTime, EmploymentPartTime, EmploymentContract, EmploymentInternship, EmploymentTemporary:
		return true
	}
	return false
}

func (s SyncStatus) Valid() bool {
	switch s {
	case StatusActive, StatusStale, StatusExpired:
		return true
	}
	return false
}
