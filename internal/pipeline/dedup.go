package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"job-sync/internal/domain/job"
	"job-sync/internal/metrics"
	"job-sync/internal/pkg/logger"
	"job-sync/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DedupPass string

const (
	PassExact   DedupPass = "exact"
	PassContent DedupPass = "content"
)

// DedupStore is the store surface the dedup engine reads and writes.
type DedupStore interface {
	ListExactDuplicates(ctx context.Context) ([]repository.DedupCandidate, error)
	ListContentDuplicates(ctx context.Context) ([]repository.DedupCandidate, error)
	DeleteWithoutRelations(ctx context.Context, ids []uuid.UUID) (int64, error)
	FlagDuplicates(ctx context.Context, flags []repository.DuplicateFlag) (int64, error)
}

type DedupGroup struct {
	Key        string      `json:"key"`
	SurvivorID uuid.UUID   `json:"survivor_id"`
	RemovedIDs []uuid.UUID `json:"removed_ids"`
	FlaggedIDs []uuid.UUID `json:"flagged_ids"`
}

type DedupReport struct {
	Pass    DedupPass    `json:"pass"`
	DryRun  bool         `json:"dry_run"`
	Removed int          `json:"removed"`
	Flagged int          `json:"flagged"`
	Groups  []DedupGroup `json:"groups"`
}

type DedupEngine struct {
	store   DedupStore
	log     logger.Logger
	metrics *metrics.Metrics
}

func NewDedupEngine(store DedupStore, log logger.Logger, m *metrics.Metrics) *DedupEngine {
	if log == nil {
		log = logger.NewNop()
	}
	return &DedupEngine{store: store, log: log, metrics: m}
}

// Run executes the exact pass and then the content pass. With dryRun the
// plan is reported and nothing is written.
func (e *DedupEngine) Run(ctx context.Context, dryRun bool) ([]DedupReport, error) {
	exact, err := e.RunPass(ctx, PassExact, dryRun)
	if err != nil {
		return nil, err
	}
	content, err := e.RunPass(ctx, PassContent, dryRun)
	if err != nil {
		return []DedupReport{exact}, err
	}
	return []DedupReport{exact, content}, nil
}

func (e *DedupEngine) RunPass(ctx context.Context, pass DedupPass, dryRun bool) (DedupReport, error) {
	var candidates []repository.DedupCandidate
	var err error
	switch pass {
	case PassExact:
		candidates, err = e.store.ListExactDuplicates(ctx)
	case PassContent:
		candidates, err = e.store.ListContentDuplicates(ctx)
	default:
		return DedupReport{}, fmt.Errorf("unknown dedup pass %q", pass)
	}
	if err != nil {
		return DedupReport{}, fmt.Errorf("list %s duplicates: %w", pass, err)
	}

	report := DedupReport{Pass: pass, DryRun: dryRun, Groups: PlanDedup(pass, candidates)}

	var removeIDs []uuid.UUID
	var flags []repository.DuplicateFlag
	for _, g := range report.Groups {
		removeIDs = append(removeIDs, g.RemovedIDs...)
		for _, id := range g.FlaggedIDs {
			flags = append(flags, repository.DuplicateFlag{
				JobID:      id,
				SurvivorID: g.SurvivorID,
				Pass:       string(pass),
				GroupKey:   g.Key,
				Reason:     "duplicate has saved jobs or applications",
			})
		}
	}
	report.Removed = len(removeIDs)
	report.Flagged = len(flags)

	if dryRun || len(report.Groups) == 0 {
		return report, nil
	}

	if len(flags) > 0 {
		if _, err := e.store.FlagDuplicates(ctx, flags); err != nil {
			return report, fmt.Errorf("flag %s duplicates: %w", pass, err)
		}
	}
	if len(removeIDs) > 0 {
		n, err := e.store.DeleteWithoutRelations(ctx, removeIDs)
		if err != nil {
			return report, fmt.Errorf("delete %s duplicates: %w", pass, err)
		}
		// Rows that gained a relation between planning and deletion survive.
		report.Removed = int(n)
	}

	e.metrics.Dedup(string(pass), "removed", report.Removed)
	e.metrics.Dedup(string(pass), "flagged", report.Flagged)
	e.log.Info("dedup pass finished",
		zap.String("pass", string(pass)),
		zap.Int("groups", len(report.Groups)),
		zap.Int("removed", report.Removed),
		zap.Int("flagged", report.Flagged),
	)
	return report, nil
}

// PlanDedup groups candidates by key and picks one survivor per group.
// The result depends only on the candidate values, not their order.
func PlanDedup(pass DedupPass, candidates []repository.DedupCandidate) []DedupGroup {
	byKey := make(map[string][]repository.DedupCandidate)
	for _, c := range candidates {
		byKey[c.GroupKey] = append(byKey[c.GroupKey], c)
	}

	keys := make([]string, 0, len(byKey))
	for k, members := range byKey {
		if len(members) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	less := survivorOrder(pass)
	groups := make([]DedupGroup, 0, len(keys))
	for _, k := range keys {
		members := byKey[k]
		sort.Slice(members, func(i, j int) bool { return less(members[i], members[j]) })

		g := DedupGroup{
			Key:        k,
			SurvivorID: members[0].ID,
			RemovedIDs: []uuid.UUID{},
			FlaggedIDs: []uuid.UUID{},
		}
		for _, m := range members[1:] {
			if m.HasRelations {
				g.FlaggedIDs = append(g.FlaggedIDs, m.ID)
			} else {
				g.RemovedIDs = append(g.RemovedIDs, m.ID)
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// survivorOrder sorts the survivor first. Exact: most recently updated.
// Content: latest published (missing sorts last), then most recently
// updated. Both break remaining ties by id.
func survivorOrder(pass DedupPass) func(a, b repository.DedupCandidate) bool {
	byUpdated := func(a, b repository.DedupCandidate) (bool, bool) {
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt), true
		}
		return false, false
	}
	byID := func(a, b repository.DedupCandidate) bool {
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	}

	if pass == PassExact {
		return func(a, b repository.DedupCandidate) bool {
			if v, ok := byUpdated(a, b); ok {
				return v
			}
			return byID(a, b)
		}
	}
	return func(a, b repository.DedupCandidate) bool {
		switch {
		case a.PublishedAt != nil && b.PublishedAt == nil:
			return true
		case a.PublishedAt == nil && b.PublishedAt != nil:
			return false
		case a.PublishedAt != nil && !a.PublishedAt.Equal(*b.PublishedAt):
			return a.PublishedAt.After(*b.PublishedAt)
		}
		if v, ok := byUpdated(a, b); ok {
			return v
		}
		return byID(a, b)
	}
}

// DedupBatch removes duplicates inside one fetched batch before it is
// written. Repeated natural keys keep the last occurrence. Records sharing
// a fingerprint keep the higher quality score, then the later publication
// date, then the earlier position. Output preserves first-seen order.
func DedupBatch(records []job.Record) (kept []job.Record, skipped int) {
	byKey := make(map[string]int, len(records))
	unique := make([]job.Record, 0, len(records))
	for _, r := range records {
		if i, ok := byKey[r.Key()]; ok {
			unique[i] = r
			skipped++
			continue
		}
		byKey[r.Key()] = len(unique)
		unique = append(unique, r)
	}

	byPrint := make(map[string]int, len(unique))
	kept = make([]job.Record, 0, len(unique))
	for _, r := range unique {
		fp := job.Fingerprint(r.Title, r.Company)
		i, ok := byPrint[fp]
		if !ok {
			byPrint[fp] = len(kept)
			kept = append(kept, r)
			continue
		}
		skipped++
		if better(r, kept[i]) {
			kept[i] = r
		}
	}
	return kept, skipped
}

func better(candidate, existing job.Record) bool {
	cs, es := job.QualityScore(candidate), job.QualityScore(existing)
	if cs != es {
		return cs > es
	}
	var ct, et int64
	if candidate.PublishedAt != nil {
		ct = candidate.PublishedAt.UnixNano()
	}
	if existing.PublishedAt != nil {
		et = existing.PublishedAt.UnixNano()
	}
	return ct > et
}
