package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"job-sync/internal/domain/job"
)

const (
	NameRemotive     = "remotive"
	remotiveInterval = time.Second
)

type Remotive struct {
	opts Options
}

func NewRemotive(opts Options) *Remotive {
	return &Remotive{opts: opts.withDefaults("https://remotive.com")}
}

type remotiveJob struct {
	ID                        flexString `json:"id"`
	URL                       string     `json:"url"`
	Title                     string     `json:"title"`
	CompanyName               string     `json:"company_name"`
	CompanyLogo               string     `json:"company_logo"`
	Category                  string     `json:"category"`
	Tags                      []string   `json:"tags"`
	JobType                   string     `json:"job_type"`
	PublicationDate           string     `json:"publication_date"`
	CandidateRequiredLocation string     `json:"candidate_required_location"`
	Salary                    string     `json:"salary"`
	Description               string     `json:"description"`
}

func (s *Remotive) Name() string { return NameRemotive }

// Fetch returns the single page the API serves; there is no cursor.
func (s *Remotive) Fetch(ctx context.Context, req PageRequest) (Page, error) {
	if req.Number > 1 {
		return Page{}, nil
	}
	var body struct {
		Jobs []json.RawMessage `json:"jobs"`
	}
	url := fmt.Sprintf("%s/api/remote-jobs?limit=%d", s.opts.BaseURL, req.Limit)
	if err := getJSON(ctx, s.opts, url, nil, &body); err != nil {
		return Page{}, err
	}
	return Page{Items: rawItems(body.Jobs)}, nil
}

func (s *Remotive) Normalize(raw any) (job.Record, bool) {
	j, ok := decodeItem[remotiveJob](raw)
	if !ok {
		return job.Record{}, false
	}
	salary := ParseSalary(j.Salary)

	r := newRecord(NameRemotive, j.ID.String())
	r.Title = j.Title
	r.Company = j.CompanyName
	r.CompanyLogo = j.CompanyLogo
	r.Location = firstNonEmpty(j.CandidateRequiredLocation, "Worldwide")
	r.LocationType = job.LocationRemote
	r.Description = HTMLToText(j.Description)
	r.DescriptionHTML = j.Description
	r.Category = NormalizeCategory(j.Category)
	r.Tags = j.Tags
	r.EmploymentType = NormalizeEmploymentType(j.JobType)
	r.SalaryMin, r.SalaryMax = salary.Min, salary.Max
	r.SalaryCurrency = salary.Currency
	r.SalaryPeriod = job.SalaryYearly
	r.ApplyURL = j.URL
	r.PublishedAt = ParseTime(j.PublicationDate)
	return finish(r)
}
