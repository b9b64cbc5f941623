package pipeline

import (
	"testing"
	"time"

	"ingestpipe/internal/domain"
)

func TestFilterSincePublished(t *testing.T) {
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before := cutoff.Add(-24 * time.Hour)
	after := cutoff.Add(24 * time.Hour)
	videos := []domain.VideoDescriptor{
		{ID: "old", PublishTime: &before},
		{ID: "new", PublishTime: &after},
		{ID: "unknown"},
	}
	got := FilterSincePublished(videos, &cutoff)
	if len(got) != 2 {
		t.Fatalf("expected 2 kept, got %d", len(got))
	}
	for _, v := range got {
		if v.ID == "old" {
			t.Fatalf("expected old video dropped")
		}
	}
}

func TestFilterSincePublishedNilIsNoop(t *testing.T) {
	videos := []domain.VideoDescriptor{{ID: "a"}}
	got := FilterSincePublished(videos, nil)
	if len(got) != 1 {
		t.Fatalf("expected passthrough")
	}
}
