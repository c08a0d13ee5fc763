package model

import (
	"testing"
)

func TestSuggestions_Sort(t *testing.T) {
	suggestions := Suggestions{
		{PartnerID: "b", PartnerType: PartnerTypeUser, Confidence: 70},
		{PartnerID: "a", PartnerType: PartnerTypeGlobal, Confidence: 95},
		{PartnerID: "d", PartnerType: PartnerTypeUser, Confidence: 60},
		{PartnerID: "c", PartnerType: PartnerTypeUser, Confidence: 95}, // Same confidence as a
	}

	suggestions.Sort()

	if suggestions[0].PartnerID != "c" {
		t.Errorf("expected user partner to win the tie, got %s", suggestions[0].PartnerID)
	}
	if suggestions[1].PartnerID != "a" {
		t.Errorf("expected global partner second, got %s", suggestions[1].PartnerID)
	}
	if suggestions[2].PartnerID != "b" || suggestions[3].PartnerID != "d" {
		t.Errorf("unexpected tail order: %s, %s", suggestions[2].PartnerID, suggestions[3].PartnerID)
	}
}

func TestSuggestions_Dedupe(t *testing.T) {
	suggestions := Suggestions{
		{PartnerID: "a", PartnerType: PartnerTypeUser, Confidence: 70, Source: MatchSourceName},
		{PartnerID: "a", PartnerType: PartnerTypeUser, Confidence: 90, Source: MatchSourcePattern},
		{PartnerID: "a", PartnerType: PartnerTypeGlobal, Confidence: 80, Source: MatchSourceName},
	}

	deduped := suggestions.Dedupe()

	if len(deduped) != 2 {
		t.Fatalf("expected 2 suggestions after dedupe, got %d", len(deduped))
	}
	if deduped[0].Confidence != 90 || deduped[0].Source != MatchSourcePattern {
		t.Errorf("expected the higher-confidence duplicate to survive, got %+v", deduped[0])
	}
	if deduped[1].PartnerType != PartnerTypeGlobal {
		t.Errorf("expected the global candidate to remain distinct, got %+v", deduped[1])
	}
}

func TestSuggestions_TopN(t *testing.T) {
	suggestions := Suggestions{
		{PartnerID: "a", Confidence: 50},
		{PartnerID: "b", Confidence: 90},
		{PartnerID: "c", Confidence: 70},
		{PartnerID: "d", Confidence: 60},
	}

	top := suggestions.TopN(3)

	if len(top) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(top))
	}
	if top[0].PartnerID != "b" || top[1].PartnerID != "c" || top[2].PartnerID != "d" {
		t.Errorf("unexpected order: %+v", top)
	}

	if got := suggestions.TopN(0); len(got) != 0 {
		t.Errorf("TopN(0) should be empty, got %d", len(got))
	}
	if got := suggestions.TopN(10); len(got) != 4 {
		t.Errorf("TopN beyond length should return all, got %d", len(got))
	}
}

func TestSuggestions_Top(t *testing.T) {
	var empty Suggestions
	if empty.Top() != nil {
		t.Error("Top of empty suggestions should be nil")
	}

	suggestions := Suggestions{
		{PartnerID: "a", Confidence: 50},
		{PartnerID: "b", Confidence: 88},
	}
	top := suggestions.Top()
	if top == nil || top.PartnerID != "b" {
		t.Errorf("expected b on top, got %+v", top)
	}
}
