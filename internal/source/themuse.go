package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"job-sync/internal/domain/job"
)

const (
	NameTheMuse     = "themuse"
	theMuseInterval = 500 * time.Millisecond
)

type TheMuse struct {
	opts   Options
	apiKey string
}

func NewTheMuse(opts Options, apiKey string) *TheMuse {
	return &TheMuse{opts: opts.withDefaults("https://www.themuse.com"), apiKey: strings.TrimSpace(apiKey)}
}

type theMuseNamed struct {
	Name string `json:"name"`
}

type theMuseJob struct {
	ID              flexString `json:"id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	PublicationDate string     `json:"publication_date"`
	Contents        string     `json:"contents"`
	Refs            struct {
		LandingPage string `json:"landing_page"`
	} `json:"refs"`
	Company    theMuseNamed   `json:"company"`
	Locations  []theMuseNamed `json:"locations"`
	Categories []theMuseNamed `json:"categories"`
	Levels     []theMuseNamed `json:"levels"`
}

func (s *TheMuse) Name() string { return NameTheMuse }

// Fetch maps the 1-based page number onto the API's 0-based pages. The
// page size is fixed by the API.
func (s *TheMuse) Fetch(ctx context.Context, req PageRequest) (Page, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(req.Number-1))
	if s.apiKey != "" {
		q.Set("api_key", s.apiKey)
	}
	var body struct {
		Page      int               `json:"page"`
		PageCount int               `json:"page_count"`
		Results   []json.RawMessage `json:"results"`
	}
	if err := getJSON(ctx, s.opts, s.opts.BaseURL+"/api/public/jobs?"+q.Encode(), nil, &body); err != nil {
		return Page{}, err
	}
	return Page{Items: rawItems(body.Results), HasMore: req.Number < body.PageCount}, nil
}

func (s *TheMuse) Normalize(raw any) (job.Record, bool) {
	j, ok := decodeItem[theMuseJob](raw)
	if !ok {
		return job.Record{}, false
	}

	locations := names(j.Locations)
	remote := false
	for _, l := range locations {
		if strings.Contains(strings.ToLower(l), "remote") {
			remote = true
			break
		}
	}
	categories := names(j.Categories)

	r := newRecord(NameTheMuse, j.ID.String())
	r.Title = j.Name
	r.Company = j.Company.Name
	r.Location = firstNonEmpty(strings.Join(locations, ", "), "United States")
	r.LocationType = LocationTypeOf(remote, firstOf(locations))
	r.Description = HTMLToText(j.Contents)
	r.DescriptionHTML = j.Contents
	r.Category = NormalizeCategory(firstOf(categories))
	r.Tags = categories
	r.ExperienceLevel = NormalizeExperienceLevel(firstOf(names(j.Levels)))
	r.EmploymentType = NormalizeEmploymentType(j.Type)
	r.ApplyURL = j.Refs.LandingPage
	r.PublishedAt = ParseTime(j.PublicationDate)
	return finish(r)
}

func names(in []theMuseNamed) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		if strings.TrimSpace(n.Name) != "" {
			out = append(out, strings.TrimSpace(n.Name))
		}
	}
	return out
}
