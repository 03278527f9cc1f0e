package inspection

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"opsreport/internal/metrics"
	"opsreport/internal/period"
)

// Repository is the inspection data access the service depends on.
type Repository interface {
	Insert(ctx context.Context, e Event) (Event, error)
	Between(ctx context.Context, from, to time.Time, gate Gate) ([]Event, error)
}

// GateSummary counts first inspections per gate.
type GateSummary struct {
	Gate   Gate   `json:"gate"`
	Name   string `json:"name"`
	Panels int    `json:"panels"`
	Passed int    `json:"passed"`
	Failed int    `json:"failed"`
}

// Report is the deduplicated inspection log for a filter range.
type Report struct {
	Filter            period.Filter `json:"filter"`
	From              time.Time     `json:"from"`
	To                time.Time     `json:"to"`
	Gates             []GateSummary `json:"gates"`
	Events            []Event       `json:"events"`
	DuplicatesDropped int           `json:"duplicatesDropped"`
}

// Service records and reports inspection results.
type Service struct {
	repo    Repository
	loc     *time.Location
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewService creates a service reporting days in loc.
func NewService(repo Repository, loc *time.Location, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, loc: loc, logger: logger, metrics: m}
}

// Record validates and stores one submission.
func (s *Service) Record(ctx context.Context, sub Submission) (Event, error) {
	e, err := sub.Event()
	if err != nil {
		return Event{}, err
	}
	e.InspectedAt = e.InspectedAt.UTC()
	saved, err := s.repo.Insert(ctx, e)
	if err != nil {
		return Event{}, s.storeError("insert", err, zap.String("panel_serial", e.PanelSerial))
	}
	return saved, nil
}

// Report loads the filter's range, keeps the earliest row per panel and gate,
// and summarizes the result per gate. A zero gate reports all gates.
func (s *Service) Report(ctx context.Context, filter period.Filter, gate Gate, now time.Time) (Report, error) {
	if gate != 0 && !gate.Known() {
		return Report{}, ErrUnknownGate
	}
	w, err := filter.Range(now, s.loc)
	if err != nil {
		return Report{}, err
	}

	rows, err := s.repo.Between(ctx, w.Start, w.End, gate)
	if err != nil {
		return Report{}, s.storeError("list", err, zap.String("filter", string(filter)))
	}
	events, dropped := KeepEarliest(rows)
	for i := range events {
		events[i].InspectedAt = events[i].InspectedAt.In(s.loc)
	}
	if events == nil {
		events = []Event{}
	}

	s.metrics.DuplicatesDropped(dropped)
	s.metrics.ReportBuilt("inspection")
	return Report{
		Filter:            filter,
		From:              w.Start,
		To:                w.End,
		Gates:             summarize(events),
		Events:            events,
		DuplicatesDropped: dropped,
	}, nil
}

func summarize(events []Event) []GateSummary {
	byGate := make(map[Gate]*GateSummary)
	for _, e := range events {
		sum, ok := byGate[e.Gate]
		if !ok {
			sum = &GateSummary{Gate: e.Gate, Name: e.Gate.Name()}
			byGate[e.Gate] = sum
		}
		sum.Panels++
		if e.Result == ResultPass {
			sum.Passed++
		} else {
			sum.Failed++
		}
	}

	out := make([]GateSummary, 0, len(byGate))
	for _, sum := range byGate {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Gate < out[j].Gate })
	return out
}

func (s *Service) storeError(op string, err error, fields ...zap.Field) error {
	s.metrics.SourceError("inspection")
	s.logger.Error("inspection store failed", append(fields, zap.String("op", op), zap.Error(err))...)
	return &StoreError{Op: op, Err: err}
}
