package extract

import (
	"strings"

	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/parse"
)

// Base scores per source
const (
	scoreMailto    = 90
	scoreObserved  = 70
	scoreGenerated = 30

	bonusSameDomain = 10
	bonusKeyword    = 5
)

// Scorer assigns the extraction-stage confidence used to rank candidates
type Scorer struct {
	keywords []string // Local-part substrings worth a bonus
}

// NewScorer creates a Scorer with the given local-part keywords
func NewScorer(keywords []string) *Scorer {
	return &Scorer{keywords: keywords}
}

// Score rates c against the target domain, clamped to [0,100].
func (s *Scorer) Score(c models.EmailCandidate, targetDomain string) int {
	score := 0
	switch c.Source {
	case models.SourceMailto:
		score = scoreMailto
	case models.SourceObserved:
		score = scoreObserved
	case models.SourceGenerated:
		score = scoreGenerated
	}

	local, domain, _ := strings.Cut(c.Address, "@")
	if target := parse.BareDomain(targetDomain); target != "" && strings.EqualFold(domain, target) {
		score += bonusSameDomain
	}
	local = strings.ToLower(local)
	for _, kw := range s.keywords {
		if kw != "" && strings.Contains(local, kw) {
			score += bonusKeyword
			break
		}
	}

	return clamp(score, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
