package source

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"job-sync/internal/domain/job"
)

const (
	NameUSAJobs     = "usajobs"
	usaJobsInterval = 500 * time.Millisecond
)

// USAJobs needs an API key and the registered contact email, sent as
// Authorization-Key and User-Agent.
type USAJobs struct {
	opts   Options
	apiKey string
	email  string
}

func NewUSAJobs(opts Options, apiKey, email string) *USAJobs {
	return &USAJobs{
		opts:   opts.withDefaults("https://data.usajobs.gov"),
		apiKey: strings.TrimSpace(apiKey),
		email:  strings.TrimSpace(email),
	}
}

type usaJobsNamed struct {
	Name string `json:"Name"`
}

type usaJobsItem struct {
	MatchedObjectID         string `json:"MatchedObjectId"`
	MatchedObjectDescriptor struct {
		PositionTitle    string   `json:"PositionTitle"`
		PositionURI      string   `json:"PositionURI"`
		ApplyURI         []string `json:"ApplyURI"`
		PositionLocation []struct {
			LocationName string `json:"LocationName"`
		} `json:"PositionLocation"`
		OrganizationName     string         `json:"OrganizationName"`
		JobCategory          []usaJobsNamed `json:"JobCategory"`
		PositionSchedule     []usaJobsNamed `json:"PositionSchedule"`
		QualificationSummary string         `json:"QualificationSummary"`
		PositionRemuneration []struct {
			MinimumRange     string `json:"MinimumRange"`
			MaximumRange     string `json:"MaximumRange"`
			RateIntervalCode string `json:"RateIntervalCode"`
		} `json:"PositionRemuneration"`
		PublicationStartDate string `json:"PublicationStartDate"`
		ApplicationCloseDate string `json:"ApplicationCloseDate"`
		UserArea             struct {
			Details struct {
				JobSummary       string `json:"JobSummary"`
				TeleworkEligible bool   `json:"TeleworkEligible"`
			} `json:"Details"`
		} `json:"UserArea"`
	} `json:"MatchedObjectDescriptor"`
}

func (s *USAJobs) Name() string { return NameUSAJobs }

// Fetch pushes an incremental cutoff to the API as DatePosted (whole days).
func (s *USAJobs) Fetch(ctx context.Context, req PageRequest) (Page, error) {
	q := url.Values{}
	q.Set("Page", strconv.Itoa(req.Number))
	q.Set("ResultsPerPage", strconv.Itoa(req.Limit))
	if req.Since != nil {
		days := int(math.Ceil(time.Since(*req.Since).Hours() / 24))
		q.Set("DatePosted", strconv.Itoa(max(days, 1)))
	}
	headers := map[string]string{
		"Authorization-Key": s.apiKey,
		"User-Agent":        s.email,
	}

	var body struct {
		SearchResult struct {
			SearchResultItems []json.RawMessage `json:"SearchResultItems"`
			UserArea          struct {
				NumberOfPages flexString `json:"NumberOfPages"`
			} `json:"UserArea"`
		} `json:"SearchResult"`
	}
	if err := getJSON(ctx, s.opts, s.opts.BaseURL+"/api/search?"+q.Encode(), headers, &body); err != nil {
		return Page{}, err
	}

	res := body.SearchResult
	pages, _ := strconv.Atoi(res.UserArea.NumberOfPages.String())
	return Page{Items: rawItems(res.SearchResultItems), HasMore: req.Number < pages}, nil
}

func (s *USAJobs) Normalize(raw any) (job.Record, bool) {
	it, ok := decodeItem[usaJobsItem](raw)
	if !ok {
		return job.Record{}, false
	}
	d := it.MatchedObjectDescriptor

	locations := make([]string, 0, len(d.PositionLocation))
	for _, l := range d.PositionLocation {
		if strings.TrimSpace(l.LocationName) != "" {
			locations = append(locations, strings.TrimSpace(l.LocationName))
		}
	}
	categories := make([]string, 0, len(d.JobCategory))
	for _, c := range d.JobCategory {
		categories = append(categories, c.Name)
	}
	schedule := ""
	if len(d.PositionSchedule) > 0 {
		schedule = d.PositionSchedule[0].Name
	}

	r := newRecord(NameUSAJobs, it.MatchedObjectID)
	r.Title = d.PositionTitle
	r.Company = d.OrganizationName
	r.Location = firstNonEmpty(strings.Join(locations, ", "), "United States")
	r.LocationType = job.LocationOnsite
	if d.UserArea.Details.TeleworkEligible {
		r.LocationType = job.LocationRemote
	}
	r.Description = HTMLToText(firstNonEmpty(d.UserArea.Details.JobSummary, d.QualificationSummary))
	r.Requirements = d.QualificationSummary
	r.Category = NormalizeCategory(firstOf(categories))
	r.Tags = categories
	r.EmploymentType = NormalizeEmploymentType(schedule)
	if len(d.PositionRemuneration) > 0 {
		pay := d.PositionRemuneration[0]
		r.SalaryMin = ParseAmount(pay.MinimumRange)
		r.SalaryMax = ParseAmount(pay.MaximumRange)
		r.SalaryCurrency = "USD"
		r.SalaryPeriod = job.SalaryHourly
		if pay.RateIntervalCode == "PA" {
			r.SalaryPeriod = job.SalaryYearly
		}
	}
	r.ApplyURL = firstNonEmpty(firstOf(d.ApplyURI), d.PositionURI)
	r.PublishedAt = ParseTime(d.PublicationStartDate)
	r.ExpiresAt = ParseTime(d.ApplicationCloseDate)
	return finish(r)
}
