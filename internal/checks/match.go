package checks

import (
	"sort"
	"strings"
	"time"

	"rankwatch/internal/models"
	"rankwatch/internal/provider"
	"rankwatch/internal/validation"
)

// matchesDomain reports whether an organic result belongs to domain, which
// must already be normalized.
func matchesDomain(domain string, r provider.OrganicResult) bool {
	if domain == "" {
		return false
	}
	return strings.Contains(strings.ToLower(r.Domain), domain) ||
		strings.Contains(strings.ToLower(r.URL), domain)
}

// BuildPosition turns organic results into a position snapshot for the
// project domain. The best matching rank group is the position; 0 when the
// domain is absent. Up to MaxCompetitors other domains are kept in rank
// order.
func BuildPosition(projectDomain string, results []provider.OrganicResult, source string, checkedAt time.Time) *models.KeywordPosition {
	domain := validation.NormalizeDomain(projectDomain)

	ranked := make([]provider.OrganicResult, 0, len(results))
	for _, r := range results {
		if r.RankGroup > 0 {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].RankGroup < ranked[j].RankGroup })

	pos := &models.KeywordPosition{
		Source:      source,
		CheckedAt:   checkedAt,
		Competitors: []string{},
	}
	seen := make(map[string]bool)
	for _, r := range ranked {
		if matchesDomain(domain, r) {
			if pos.Position == 0 {
				pos.Position = r.RankGroup
				if r.URL != "" {
					u := r.URL
					pos.URL = &u
				}
			}
			continue
		}

		competitor := validation.NormalizeDomain(r.Domain)
		if competitor == "" {
			competitor = validation.NormalizeDomain(r.URL)
		}
		if competitor == "" || seen[competitor] || len(pos.Competitors) == models.MaxCompetitors {
			continue
		}
		seen[competitor] = true
		pos.Competitors = append(pos.Competitors, competitor)
	}
	return pos
}
