package checks

import (
	"reflect"
	"testing"
	"time"

	"rankwatch/internal/models"
	"rankwatch/internal/provider"
)

func TestBuildPosition(t *testing.T) {
	tests := []struct {
		name            string
		domain          string
		results         []provider.OrganicResult
		wantPosition    int
		wantURL         string
		wantCompetitors []string
	}{
		{
			name:            "no results",
			domain:          "example.com",
			wantCompetitors: []string{},
		},
		{
			name:   "match on domain",
			domain: "example.com",
			results: []provider.OrganicResult{
				{Domain: "a.com", RankGroup: 1},
				{Domain: "example.com", URL: "https://example.com/x", RankGroup: 2},
			},
			wantPosition:    2,
			wantURL:         "https://example.com/x",
			wantCompetitors: []string{"a.com"},
		},
		{
			name:   "project domain with scheme and www",
			domain: "https://www.Example.com/",
			results: []provider.OrganicResult{
				{Domain: "www.example.com", URL: "https://www.example.com/", RankGroup: 4},
			},
			wantPosition:    4,
			wantURL:         "https://www.example.com/",
			wantCompetitors: []string{},
		},
		{
			name:   "match on url only",
			domain: "example.com",
			results: []provider.OrganicResult{
				{URL: "https://blog.example.com/post", RankGroup: 9},
			},
			wantPosition:    9,
			wantURL:         "https://blog.example.com/post",
			wantCompetitors: []string{},
		},
		{
			name:   "best of several matches wins regardless of order",
			domain: "example.com",
			results: []provider.OrganicResult{
				{Domain: "example.com", URL: "https://example.com/deep", RankGroup: 8},
				{Domain: "example.com", URL: "https://example.com/", RankGroup: 3},
			},
			wantPosition:    3,
			wantURL:         "https://example.com/",
			wantCompetitors: []string{},
		},
		{
			name:   "competitors deduplicated and capped",
			domain: "example.com",
			results: []provider.OrganicResult{
				{Domain: "a.com", RankGroup: 1},
				{Domain: "www.a.com", RankGroup: 2},
				{Domain: "b.com", RankGroup: 3},
				{Domain: "c.com", RankGroup: 4},
				{Domain: "example.com", RankGroup: 5},
				{Domain: "d.com", RankGroup: 6},
				{Domain: "e.com", RankGroup: 7},
				{Domain: "f.com", RankGroup: 8},
			},
			wantPosition:    5,
			wantCompetitors: []string{"a.com", "b.com", "c.com", "d.com", "e.com"},
		},
		{
			name:   "results without rank are ignored",
			domain: "example.com",
			results: []provider.OrganicResult{
				{Domain: "example.com", RankGroup: 0},
				{Domain: "z.com", RankGroup: 1},
			},
			wantPosition:    0,
			wantCompetitors: []string{"z.com"},
		},
		{
			name:            "empty project domain never matches",
			domain:          "",
			results:         []provider.OrganicResult{{Domain: "a.com", RankGroup: 1}},
			wantPosition:    0,
			wantCompetitors: []string{"a.com"},
		},
	}

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := BuildPosition(tt.domain, tt.results, models.SourceQueued, at)

			if pos.Position != tt.wantPosition {
				t.Errorf("Position = %d, want %d", pos.Position, tt.wantPosition)
			}
			gotURL := ""
			if pos.URL != nil {
				gotURL = *pos.URL
			}
			if gotURL != tt.wantURL {
				t.Errorf("URL = %q, want %q", gotURL, tt.wantURL)
			}
			if !reflect.DeepEqual(pos.Competitors, tt.wantCompetitors) {
				t.Errorf("Competitors = %v, want %v", pos.Competitors, tt.wantCompetitors)
			}
			if pos.Source != models.SourceQueued || !pos.CheckedAt.Equal(at) {
				t.Errorf("Source/CheckedAt = %s/%v", pos.Source, pos.CheckedAt)
			}
		})
	}
}
