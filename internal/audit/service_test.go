package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	lastOffset int
	lastLimit  int
	lastFilter TimelineFilters
}

func (s *stubTimelineRepo) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastFilter, s.lastOffset, s.lastLimit = filters, offset, limit
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func (s *stubTimelineRepo) All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	s.lastFilter = filters
	return s.rows, nil
}

func row(at string, action, entityID string) TimelineRow {
	ts, _ := time.Parse(time.RFC3339, at)
	return TimelineRow{At: ts, ActorID: 7, Action: action, Entity: "journal_entry", EntityID: entityID}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{
		row("2025-03-10T10:00:00Z", "journal.post", "3"),
		row("2025-03-09T09:00:00Z", "journal.create", "3"),
		row("2025-03-08T08:00:00Z", "journal.create", "2"),
	}}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext || result.Paging.NextPage != 2 {
		t.Fatalf("expected next page, got %+v", result.Paging)
	}
	if repo.lastLimit != 3 || repo.lastOffset != 0 {
		t.Fatalf("expected limit 3 offset 0, got %d/%d", repo.lastLimit, repo.lastOffset)
	}

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline page 2: %v", err)
	}
	if len(result.Rows) != 1 || result.Paging.HasNext || result.Paging.PrevPage != 1 {
		t.Fatalf("unexpected page 2: %+v", result)
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	result, err := NewService(repo).Timeline(context.Background(), TimelineFilters{PageSize: 500})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if result.Paging.PageSize != maxPageSize || repo.lastLimit != maxPageSize+1 {
		t.Fatalf("expected clamp to %d, got %d", maxPageSize, result.Paging.PageSize)
	}
	if result.Rows == nil {
		t.Fatalf("expected empty slice")
	}
}

func TestServiceWithoutRepository(t *testing.T) {
	if _, err := NewService(nil).Export(context.Background(), TimelineFilters{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWriteCSV(t *testing.T) {
	r := row("2025-03-10T10:00:00Z", "journal.reverse", "9")
	r.Meta = json.RawMessage(`{"reversal_id":10}`)
	out, err := WriteCSV([]TimelineRow{r, {At: r.At, Action: "journal.delete", Entity: "journal_entry", EntityID: "4"}})
	if err != nil {
		t.Fatalf("write csv: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[1][2] != "7" || records[1][6] != `{"reversal_id":10}` {
		t.Fatalf("unexpected row %v", records[1])
	}
	if records[2][2] != "" {
		t.Fatalf("system actor should be blank, got %q", records[2][2])
	}
}
