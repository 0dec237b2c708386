package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"digital_microwave/internal/models"
	"digital_microwave/internal/repository"
)

type HistoryService struct {
	repo repository.HistoryRepo
}

func NewHistoryService(repo repository.HistoryRepo) *HistoryService {
	return &HistoryService{repo: repo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errHistoryDisabled  = errors.New("job history is not configured")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares the repository query and validates the time range.
func normalizeAndValidateFilter(f HistoryFilter) (repository.HistoryQuery, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return repository.HistoryQuery{}, errInvalidTimeRange
	}

	return repository.HistoryQuery{
		From:  from,
		To:    to,
		Type:  normalizeEventType(f.Type),
		JobID: strings.TrimSpace(f.JobID),
	}, nil
}

func (s *HistoryService) List(ctx context.Context, f HistoryFilter) ([]models.JobEvent, error) {
	if s.repo == nil {
		return nil, errHistoryDisabled
	}
	q, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, q)
}

// Summary counts the events recorded since the given time by type.
func (s *HistoryService) Summary(ctx context.Context, since time.Time) (map[string]int, error) {
	events, err := s.List(ctx, HistoryFilter{From: since})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(events))
	for _, e := range events {
		counts[e.Type]++
	}
	return counts, nil
}
