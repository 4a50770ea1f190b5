package answer

import (
	"fmt"
	"math"
)

const (
	// ShortAnswerLen is the candidate length below which only an exact
	// match is accepted.
	ShortAnswerLen = 4

	// HighOverlapPercent is the word overlap accepted without synonyms.
	HighOverlapPercent = 80.0

	// SemanticOverlapPercent is the lower bound of the borderline band in
	// which the semantic table is consulted.
	SemanticOverlapPercent = 70.0

	// CoverageOverlapPercent is the minimum direct overlap for a candidate
	// whose remaining words are all replaced by synonyms.
	CoverageOverlapPercent = 50.0

	minTokenLen = 2
)

// Reason identifies the rule that produced a Verdict.
type Reason string

const (
	ReasonExact              Reason = "exact"
	ReasonShortExactRequired Reason = "short_exact_required"
	ReasonHighOverlap        Reason = "high_overlap"
	ReasonSemanticOverlap    Reason = "semantic_overlap"
	ReasonNoMatch            Reason = "no_match"
)

// Verdict is the outcome of comparing one user answer with one candidate.
type Verdict struct {
	IsMatch bool    `json:"is_match"`
	Reason  Reason  `json:"reason"`
	Detail  string  `json:"detail"`
	Overlap float64 `json:"overlap"` // percent of candidate tokens present in the user answer
}

// Evaluate compares a normalized user answer against a normalized candidate.
// Rules are applied in a fixed order and the first applicable rule wins.
func Evaluate(user, candidate string) Verdict {
	if user == "" {
		return Verdict{Reason: ReasonNoMatch, Detail: "empty user answer"}
	}
	if candidate == "" {
		return Verdict{Reason: ReasonNoMatch, Detail: "empty acceptable answer"}
	}

	if user == candidate {
		return Verdict{IsMatch: true, Reason: ReasonExact, Detail: "exact match", Overlap: 100}
	}

	if len([]rune(candidate)) < ShortAnswerLen {
		return Verdict{Reason: ReasonShortExactRequired, Detail: "short answer requires exact match"}
	}

	candidateTokens := substantialTokens(candidate)
	if len(candidateTokens) == 0 {
		return Verdict{Reason: ReasonNoMatch, Detail: "acceptable answer has no substantial words"}
	}
	userTokens := substantialTokens(user)
	if len(userTokens) == 0 {
		return Verdict{Reason: ReasonNoMatch, Detail: "user answer has no substantial words"}
	}

	userSet := make(map[string]struct{}, len(userTokens))
	for _, t := range userTokens {
		userSet[t] = struct{}{}
	}

	direct, covered := 0, 0
	for _, t := range candidateTokens {
		if _, ok := userSet[t]; ok {
			direct++
			covered++
		} else if synonymCovered(t, userTokens) {
			covered++
		}
	}
	overlap := float64(direct) / float64(len(candidateTokens)) * 100

	if overlap >= HighOverlapPercent {
		return Verdict{
			IsMatch: true,
			Reason:  ReasonHighOverlap,
			Detail:  fmt.Sprintf("word overlap %s", formatPercent(overlap)),
			Overlap: overlap,
		}
	}

	if overlap >= SemanticOverlapPercent {
		if g, ok := sharedGroup(userTokens, candidateTokens); ok {
			return Verdict{
				IsMatch: true,
				Reason:  ReasonSemanticOverlap,
				Detail:  fmt.Sprintf("word overlap %s with %q synonyms", formatPercent(overlap), g.Name),
				Overlap: overlap,
			}
		}
	}

	// Every candidate word is either present or replaced by a synonym, and
	// at least half are present verbatim.
	if direct > 0 && overlap >= CoverageOverlapPercent && covered == len(candidateTokens) {
		return Verdict{
			IsMatch: true,
			Reason:  ReasonSemanticOverlap,
			Detail:  fmt.Sprintf("word overlap %s, remaining words matched by synonym", formatPercent(overlap)),
			Overlap: overlap,
		}
	}

	return Verdict{
		Reason:  ReasonNoMatch,
		Detail:  fmt.Sprintf("word overlap %s", formatPercent(overlap)),
		Overlap: overlap,
	}
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(p)))
}
