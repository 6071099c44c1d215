package source

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"job-sync/internal/domain/job"
)

const (
	NameRemoteOK     = "remoteok"
	remoteOKInterval = 2 * time.Second
)

type RemoteOK struct {
	opts Options
}

func NewRemoteOK(opts Options) *RemoteOK {
	return &RemoteOK{opts: opts.withDefaults("https://remoteok.com")}
}

type remoteOKJob struct {
	ID          flexString `json:"id"`
	Date        string     `json:"date"`
	Epoch       int64      `json:"epoch"`
	Company     string     `json:"company"`
	CompanyLogo string     `json:"company_logo"`
	Position    string     `json:"position"`
	Tags        []string   `json:"tags"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	SalaryMin   flexString `json:"salary_min"`
	SalaryMax   flexString `json:"salary_max"`
	ApplyURL    string     `json:"apply_url"`
	URL         string     `json:"url"`
}

func (s *RemoteOK) Name() string { return NameRemoteOK }

// Fetch returns the whole feed as one page. The first element of the feed
// is a legal notice, not a posting.
func (s *RemoteOK) Fetch(ctx context.Context, req PageRequest) (Page, error) {
	if req.Number > 1 {
		return Page{}, nil
	}
	var raw []json.RawMessage
	if err := getJSON(ctx, s.opts, s.opts.BaseURL+"/api", nil, &raw); err != nil {
		return Page{}, err
	}

	postings := make([]json.RawMessage, 0, len(raw))
	for _, msg := range raw {
		if isLegalNotice(msg) {
			continue
		}
		postings = append(postings, msg)
		if req.Limit > 0 && len(postings) >= req.Limit {
			break
		}
	}
	return Page{Items: rawItems(postings)}, nil
}

// isLegalNotice reports an object carrying neither id nor position. Anything
// that is not an object is left for Normalize to reject.
func isLegalNotice(msg json.RawMessage) bool {
	var probe struct {
		ID       json.RawMessage `json:"id"`
		Position json.RawMessage `json:"position"`
	}
	if err := json.Unmarshal(msg, &probe); err != nil {
		return false
	}
	return isEmptyJSON(probe.ID) && isEmptyJSON(probe.Position)
}

func isEmptyJSON(v json.RawMessage) bool {
	s := strings.TrimSpace(string(v))
	return s == "" || s == "null" || s == `""`
}

func (s *RemoteOK) Normalize(raw any) (job.Record, bool) {
	j, ok := decodeItem[remoteOKJob](raw)
	if !ok {
		return job.Record{}, false
	}

	r := newRecord(NameRemoteOK, j.ID.String())
	r.Title = j.Position
	r.Company = j.Company
	r.CompanyLogo = j.CompanyLogo
	r.Location = firstNonEmpty(j.Location, "Worldwide")
	r.LocationType = job.LocationRemote
	r.Description = HTMLToText(j.Description)
	r.DescriptionHTML = j.Description
	r.Category = NormalizeCategory(firstOf(j.Tags))
	r.Tags = j.Tags
	r.EmploymentType = job.EmploymentFullTime
	r.SalaryMin = ParseAmount(j.SalaryMin.String())
	r.SalaryMax = ParseAmount(j.SalaryMax.String())
	r.SalaryCurrency = "USD"
	r.SalaryPeriod = job.SalaryYearly
	r.ApplyURL = firstNonEmpty(j.ApplyURL, j.URL)
	r.PublishedAt = ParseTime(j.Date)
	if r.PublishedAt == nil {
		r.PublishedAt = unixTime(j.Epoch)
	}
	return finish(r)
}
