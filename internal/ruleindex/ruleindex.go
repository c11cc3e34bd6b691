// Package ruleindex implements the duplicate/near-duplicate rule detector
// described in SPEC_FULL §3: when the admin console adds a new
// block-keyword or auto-reply rule, it checks the new pattern's literal
// text against the existing rule set and warns (non-blocking) if a
// near-duplicate already exists.
//
// Scoring is adapted from the teacher's Jaccard-similarity paragraph
// index (tokenize/overlap), trimmed to what a flat list of short rule
// strings needs: no markdown paragraph splitting, no reader plumbing, no
// stopword/maxDocs options.
package ruleindex

import (
	"regexp"
	"sort"

	"golang.org/x/text/cases"
)

// DuplicateThreshold is the Jaccard similarity at or above which two
// rules are considered near-duplicates (SPEC_FULL §3: "≥ 0.8").
const DuplicateThreshold = 0.8

// Match is a near-duplicate candidate found against an existing rule.
type Match struct {
	Existing string
	Score    float64
}

// caseFold performs simple case folding for token comparison. Unlike
// cases.Title/Upper/Lower, Fold takes no language.Tag: Unicode simple case
// folding is defined to be locale-independent.
var caseFold = cases.Fold()

// FindNearDuplicate returns the highest-scoring existing rule whose
// similarity to candidate is at or above DuplicateThreshold, or ok=false
// if none qualifies.
func FindNearDuplicate(candidate string, existing []string) (m Match, ok bool) {
	cTokens := tokenize(candidate)
	if len(cTokens) == 0 {
		return Match{}, false
	}

	var best Match
	found := false
	for _, e := range existing {
		eTokens := tokenize(e)
		over := overlap(cTokens, eTokens)
		if over == 0 {
			continue
		}
		union := len(cTokens) + len(eTokens) - over
		if union <= 0 {
			continue
		}
		score := float64(over) / float64(union)
		if score < DuplicateThreshold {
			continue
		}
		if !found || score > best.Score {
			best = Match{Existing: e, Score: score}
			found = true
		}
	}
	return best, found
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func tokenize(s string) map[string]struct{} {
	folded := caseFold.String(s)
	words := wordRE.FindAllString(folded, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

// RankedDuplicates returns every existing rule scoring at or above
// DuplicateThreshold against candidate, most similar first: every
// collision rather than just the best one. The admin console's add path
// calls FindNearDuplicate, not this function.
func RankedDuplicates(candidate string, existing []string) []Match {
	cTokens := tokenize(candidate)
	if len(cTokens) == 0 {
		return nil
	}
	var out []Match
	for _, e := range existing {
		eTokens := tokenize(e)
		over := overlap(cTokens, eTokens)
		if over == 0 {
			continue
		}
		union := len(cTokens) + len(eTokens) - over
		if union <= 0 {
			continue
		}
		score := float64(over) / float64(union)
		if score < DuplicateThreshold {
			continue
		}
		out = append(out, Match{Existing: e, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
