package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"job-sync/internal/domain/job"
)

const (
	NameHimalayas     = "himalayas"
	himalayasInterval = time.Second
)

type Himalayas struct {
	opts Options
}

func NewHimalayas(opts Options) *Himalayas {
	return &Himalayas{opts: opts.withDefaults("https://himalayas.app")}
}

type himalayasJob struct {
	ID                   flexString  `json:"id"`
	GUID                 string      `json:"guid"`
	Title                string      `json:"title"`
	Excerpt              string      `json:"excerpt"`
	Description          string      `json:"description"`
	CompanyName          string      `json:"companyName"`
	CompanyLogo          string      `json:"companyLogo"`
	Categories           []string    `json:"categories"`
	Seniority            flexStrings `json:"seniority"`
	EmploymentType       string      `json:"employmentType"`
	LocationRestrictions []string    `json:"locationRestrictions"`
	MinSalary            flexString  `json:"minSalary"`
	MaxSalary            flexString  `json:"maxSalary"`
	Currency             string      `json:"currency"`
	ApplicationLink      string      `json:"applicationLink"`
	PublishedDate        string      `json:"publishedDate"`
	PubDate              int64       `json:"pubDate"`
	ExpiryDate           int64       `json:"expiryDate"`
}

func (s *Himalayas) Name() string { return NameHimalayas }

func (s *Himalayas) Fetch(ctx context.Context, req PageRequest) (Page, error) {
	offset := (req.Number - 1) * req.Limit
	var body struct {
		Jobs       []json.RawMessage `json:"jobs"`
		TotalCount int               `json:"totalCount"`
	}
	url := fmt.Sprintf("%s/jobs/api?limit=%d&offset=%d", s.opts.BaseURL, req.Limit, offset)
	if err := getJSON(ctx, s.opts, url, nil, &body); err != nil {
		return Page{}, err
	}
	hasMore := len(body.Jobs) > 0
	if body.TotalCount > 0 {
		hasMore = offset+len(body.Jobs) < body.TotalCount
	}
	return Page{Items: rawItems(body.Jobs), HasMore: hasMore}, nil
}

func (s *Himalayas) Normalize(raw any) (job.Record, bool) {
	j, ok := decodeItem[himalayasJob](raw)
	if !ok {
		return job.Record{}, false
	}

	r := newRecord(NameHimalayas, firstNonEmpty(j.ID.String(), j.GUID))
	r.Title = j.Title
	r.Company = j.CompanyName
	r.CompanyLogo = j.CompanyLogo
	r.Location = "Worldwide"
	if len(j.LocationRestrictions) > 0 {
		r.Location = strings.Join(j.LocationRestrictions, ", ")
	}
	r.LocationType = job.LocationRemote
	r.Description = firstNonEmpty(HTMLToText(j.Description), j.Excerpt)
	r.DescriptionHTML = j.Description
	r.Category = NormalizeCategory(firstOf(j.Categories))
	r.Tags = j.Categories
	r.ExperienceLevel = NormalizeExperienceLevel(firstOf(j.Seniority))
	r.EmploymentType = NormalizeEmploymentType(j.EmploymentType)
	r.SalaryMin = ParseSalaryBound(j.MinSalary.String())
	r.SalaryMax = ParseSalaryBound(j.MaxSalary.String())
	if r.SalaryMin != nil || r.SalaryMax != nil {
		r.SalaryCurrency = firstNonEmpty(j.Currency, "USD")
		r.SalaryPeriod = job.SalaryYearly
	}
	r.ApplyURL = j.ApplicationLink
	r.PublishedAt = ParseTime(j.PublishedDate)
	if r.PublishedAt == nil {
		r.PublishedAt = unixTime(j.PubDate)
	}
	r.ExpiresAt = unixTime(j.ExpiryDate)
	return finish(r)
}
