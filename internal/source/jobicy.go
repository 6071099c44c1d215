package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"job-sync/internal/domain/job"
)

const (
	NameJobicy     = "jobicy"
	jobicyInterval = time.Second
	jobicyMaxCount = 50
)

type Jobicy struct {
	opts Options
}

func NewJobicy(opts Options) *Jobicy {
	return &Jobicy{opts: opts.withDefaults("https://jobicy.com")}
}

type jobicyJob struct {
	ID              flexString  `json:"id"`
	URL             string      `json:"url"`
	JobTitle        string      `json:"jobTitle"`
	CompanyName     string      `json:"companyName"`
	CompanyLogo     string      `json:"companyLogo"`
	JobIndustry     flexStrings `json:"jobIndustry"`
	JobType         flexStrings `json:"jobType"`
	JobGeo          string      `json:"jobGeo"`
	JobLevel        string      `json:"jobLevel"`
	JobExcerpt      string      `json:"jobExcerpt"`
	JobDescription  string      `json:"jobDescription"`
	PubDate         string      `json:"pubDate"`
	AnnualSalaryMin flexString  `json:"annualSalaryMin"`
	AnnualSalaryMax flexString  `json:"annualSalaryMax"`
	SalaryCurrency  string      `json:"salaryCurrency"`
}

func (s *Jobicy) Name() string { return NameJobicy }

func (s *Jobicy) Fetch(ctx context.Context, req PageRequest) (Page, error) {
	if req.Number > 1 {
		return Page{}, nil
	}
	count := min(max(req.Limit, 1), jobicyMaxCount)
	var body struct {
		Jobs []json.RawMessage `json:"jobs"`
	}
	url := fmt.Sprintf("%s/api/v2/remote-jobs?count=%d", s.opts.BaseURL, count)
	if err := getJSON(ctx, s.opts, url, nil, &body); err != nil {
		return Page{}, err
	}
	return Page{Items: rawItems(body.Jobs)}, nil
}

func (s *Jobicy) Normalize(raw any) (job.Record, bool) {
	j, ok := decodeItem[jobicyJob](raw)
	if !ok {
		return job.Record{}, false
	}

	r := newRecord(NameJobicy, j.ID.String())
	r.Title = HTMLToText(j.JobTitle)
	r.Company = j.CompanyName
	r.CompanyLogo = j.CompanyLogo
	r.Location = firstNonEmpty(j.JobGeo, "Worldwide")
	r.LocationType = job.LocationRemote
	r.Description = HTMLToText(firstNonEmpty(j.JobDescription, j.JobExcerpt))
	r.DescriptionHTML = j.JobDescription
	r.Category = NormalizeCategory(firstOf(j.JobIndustry))
	r.Tags = j.JobIndustry
	r.ExperienceLevel = NormalizeExperienceLevel(j.JobLevel)
	r.EmploymentType = NormalizeEmploymentType(firstOf(j.JobType))
	r.SalaryMin = ParseSalaryBound(j.AnnualSalaryMin.String())
	r.SalaryMax = ParseSalaryBound(j.AnnualSalaryMax.String())
	r.SalaryCurrency = firstNonEmpty(j.SalaryCurrency, "USD")
	r.SalaryPeriod = job.SalaryYearly
	r.ApplyURL = j.URL
	r.PublishedAt = ParseTime(j.PubDate)
	return finish(r)
}
