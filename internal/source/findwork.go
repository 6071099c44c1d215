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
	NameFindWork     = "findwork"
	findWorkInterval = time.Second
)

type FindWork struct {
	opts   Options
	apiKey string
}

func NewFindWork(opts Options, apiKey string) *FindWork {
	return &FindWork{opts: opts.withDefaults("https://findwork.dev"), apiKey: strings.TrimSpace(apiKey)}
}

type findWorkJob struct {
	ID             flexString `json:"id"`
	Role           string     `json:"role"`
	CompanyName    string     `json:"company_name"`
	EmploymentType string     `json:"employment_type"`
	Location       string     `json:"location"`
	Remote         bool       `json:"remote"`
	Logo           string     `json:"logo"`
	URL            string     `json:"url"`
	Text           string     `json:"text"`
	DatePosted     string     `json:"date_posted"`
	Keywords       []string   `json:"keywords"`
}

func (s *FindWork) Name() string { return NameFindWork }

func (s *FindWork) Fetch(ctx context.Context, req PageRequest) (Page, error) {
	var body struct {
		Count   int               `json:"count"`
		Next    *string           `json:"next"`
		Results []json.RawMessage `json:"results"`
	}
	url := fmt.Sprintf("%s/api/jobs/?page=%d&sort_by=date", s.opts.BaseURL, req.Number)
	headers := map[string]string{"Authorization": "Token " + s.apiKey}
	if err := getJSON(ctx, s.opts, url, headers, &body); err != nil {
		return Page{}, err
	}
	return Page{Items: rawItems(body.Results), HasMore: body.Next != nil && *body.Next != ""}, nil
}

func (s *FindWork) Normalize(raw any) (job.Record, bool) {
	j, ok := decodeItem[findWorkJob](raw)
	if !ok {
		return job.Record{}, false
	}

	r := newRecord(NameFindWork, j.ID.String())
	r.Title = j.Role
	r.Company = j.CompanyName
	r.CompanyLogo = j.Logo
	r.Location = firstNonEmpty(j.Location, "Worldwide")
	r.LocationType = LocationTypeOf(j.Remote, j.Location)
	r.Description = HTMLToText(j.Text)
	r.DescriptionHTML = j.Text
	r.Category = NormalizeCategory(firstOf(j.Keywords))
	r.Tags = j.Keywords
	r.EmploymentType = NormalizeEmploymentType(j.EmploymentType)
	r.ApplyURL = j.URL
	r.PublishedAt = ParseTime(j.DatePosted)
	return finish(r)
}
