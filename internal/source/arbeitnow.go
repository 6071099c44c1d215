package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"job-sync/internal/domain/job"
)

const (
	NameArbeitnow     = "arbeitnow"
	arbeitnowInterval = time.Second
)

type Arbeitnow struct {
	opts Options
}

func NewArbeitnow(opts Options) *Arbeitnow {
	return &Arbeitnow{opts: opts.withDefaults("https://www.arbeitnow.com")}
}

type arbeitnowJob struct {
	Slug        string   `json:"slug"`
	CompanyName string   `json:"company_name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Remote      bool     `json:"remote"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	JobTypes    []string `json:"job_types"`
	Location    string   `json:"location"`
	CreatedAt   int64    `json:"created_at"`
}

func (s *Arbeitnow) Name() string { return NameArbeitnow }

func (s *Arbeitnow) Fetch(ctx context.Context, req PageRequest) (Page, error) {
	var body struct {
		Data  []json.RawMessage `json:"data"`
		Links struct {
			Next *string `json:"next"`
		} `json:"links"`
	}
	url := fmt.Sprintf("%s/api/job-board-api?page=%d", s.opts.BaseURL, req.Number)
	if err := getJSON(ctx, s.opts, url, nil, &body); err != nil {
		return Page{}, err
	}
	hasMore := body.Links.Next != nil && *body.Links.Next != ""
	return Page{Items: rawItems(body.Data), HasMore: hasMore}, nil
}

func (s *Arbeitnow) Normalize(raw any) (job.Record, bool) {
	j, ok := decodeItem[arbeitnowJob](raw)
	if !ok {
		return job.Record{}, false
	}

	r := newRecord(NameArbeitnow, j.Slug)
	r.Title = j.Title
	r.Company = j.CompanyName
	r.Location = firstNonEmpty(j.Location, "Europe")
	r.LocationType = LocationTypeOf(j.Remote, j.Location)
	r.Description = HTMLToText(j.Description)
	r.DescriptionHTML = j.Description
	r.Category = NormalizeCategory(firstOf(j.Tags))
	r.Tags = j.Tags
	r.EmploymentType = NormalizeEmploymentType(firstOf(j.JobTypes))
	r.ApplyURL = j.URL
	r.PublishedAt = unixTime(j.CreatedAt)
	return finish(r)
}
