package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"job-sync/internal/domain/job"

	"github.com/gocolly/colly/v2"
)

const (
	NameWeWorkRemotely     = "weworkremotely"
	weWorkRemotelyInterval = time.Second
)

// WeWorkRemotely reads the public RSS feed. Item titles are
// "Company: Position".
type WeWorkRemotely struct {
	opts Options
}

func NewWeWorkRemotely(opts Options) *WeWorkRemotely {
	return &WeWorkRemotely{opts: opts.withDefaults("https://weworkremotely.com")}
}

type wwrItem struct {
	Title       string
	Link        string
	GUID        string
	PubDate     string
	Description string
	Region      string
	Category    string
	Type        string
	Logo        string
}

func (s *WeWorkRemotely) Name() string { return NameWeWorkRemotely }

func (s *WeWorkRemotely) Fetch(ctx context.Context, req PageRequest) (Page, error) {
	if req.Number > 1 {
		return Page{}, nil
	}

	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(s.opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(maxBodyBytes),
	)
	c.SetClient(s.opts.Client)

	items := make([]any, 0)
	c.OnXML("//item", func(e *colly.XMLElement) {
		if req.Limit > 0 && len(items) >= req.Limit {
			return
		}
		items = append(items, wwrItem{
			Title:       strings.TrimSpace(e.ChildText("title")),
			Link:        strings.TrimSpace(e.ChildText("link")),
			GUID:        strings.TrimSpace(e.ChildText("guid")),
			PubDate:     strings.TrimSpace(e.ChildText("pubDate")),
			Description: e.ChildText("description"),
			Region:      strings.TrimSpace(e.ChildText("region")),
			Category:    strings.TrimSpace(e.ChildText("category")),
			Type:        strings.TrimSpace(e.ChildText("type")),
			Logo:        strings.TrimSpace(e.ChildAttr("media:content", "url")),
		})
	})

	var reqErr error
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			reqErr = &StatusError{URL: r.Request.URL.String(), StatusCode: r.StatusCode}
			return
		}
		reqErr = err
	})

	feedURL := s.opts.BaseURL + "/remote-jobs.rss"
	if err := c.Visit(feedURL); err != nil {
		if reqErr != nil {
			return Page{}, reqErr
		}
		return Page{}, fmt.Errorf("visit %s: %w", feedURL, err)
	}
	c.Wait()
	if reqErr != nil {
		return Page{}, reqErr
	}
	return Page{Items: items}, nil
}

func (s *WeWorkRemotely) Normalize(raw any) (job.Record, bool) {
	it, ok := raw.(wwrItem)
	if !ok {
		return job.Record{}, false
	}
	company, title, found := strings.Cut(it.Title, ":")
	if !found {
		return job.Record{}, false
	}

	r := newRecord(NameWeWorkRemotely, firstNonEmpty(it.GUID, it.Link))
	r.Title = title
	r.Company = company
	r.CompanyLogo = it.Logo
	r.Location = firstNonEmpty(it.Region, "Anywhere in the World")
	r.LocationType = job.LocationRemote
	r.Description = HTMLToText(it.Description)
	r.DescriptionHTML = it.Description
	r.Category = NormalizeCategory(it.Category)
	if it.Category != "" {
		r.Tags = []string{it.Category}
	}
	r.EmploymentType = NormalizeEmploymentType(it.Type)
	r.ApplyURL = it.Link
	r.PublishedAt = ParseTime(it.PubDate)
	return finish(r)
}
