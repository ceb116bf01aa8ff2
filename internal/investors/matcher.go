package investors

import (
	"sort"
	"strings"

	"aip-platform/deal-portal-backend/internal/projects"
)

// Match score weights. A perfect fit on sector, country and ticket size
// scores 100.
const (
	sectorWeight  = 40
	countryWeight = 30
	ticketWeight  = 30
)

// Match pairs an investor with its fit score for a project.
type Match struct {
	Investor Investor `json:"investor"`
	Score    int      `json:"score"`
	Reasons  []string `json:"reasons"`
}

// MatchProject ranks investors by mandate fit against the project,
// highest score first. Zero-score investors are dropped.
func MatchProject(project *projects.Project, candidates []Investor) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, inv := range candidates {
		score, reasons := scoreFit(project, inv)
		if score == 0 {
			continue
		}
		matches = append(matches, Match{Investor: inv, Score: score, Reasons: reasons})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

func scoreFit(project *projects.Project, inv Investor) (int, []string) {
	score := 0
	var reasons []string

	if containsFold(inv.SectorFocus, project.Sector) {
		score += sectorWeight
		reasons = append(reasons, "sector matches mandate")
	}
	if containsFold(inv.CountryFocus, project.Country) {
		score += countryWeight
		reasons = append(reasons, "country in focus list")
	}
	if project.EstimatedCapex >= inv.TicketSizeMin && project.EstimatedCapex <= inv.TicketSizeMax {
		score += ticketWeight
		reasons = append(reasons, "capex within ticket range")
	}
	return score, reasons
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
