package pipeline

import (
	"testing"

	"ingestpipe/internal/domain"
)

func TestFilterDuplicateTitlesDropsNearDuplicate(t *testing.T) {
	videos := []domain.VideoDescriptor{
		{ID: "a", Title: "Episode 42: A Long Conversation About Go"},
		{ID: "b", Title: "Episode 42 A Long Conversation About Go"},
		{ID: "c", Title: "Episode 43: Something Completely Different"},
	}

	got := FilterDuplicateTitles(videos)

	if len(got) != 2 {
		t.Fatalf("expected 2 kept videos, got %d: %+v", len(got), got)
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("expected first-occurrence keep order [a c], got %v", []string{got[0].ID, got[1].ID})
	}
}

func TestFilterDuplicateTitlesKeepsDistinctTitles(t *testing.T) {
	videos := []domain.VideoDescriptor{
		{ID: "a", Title: "First talk"},
		{ID: "b", Title: "Second talk"},
	}

	got := FilterDuplicateTitles(videos)

	if len(got) != 2 {
		t.Fatalf("expected both videos kept, got %d", len(got))
	}
}
