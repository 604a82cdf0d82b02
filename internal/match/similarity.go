package match

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Weights controls how the four scorer outputs combine into one score.
type Weights struct {
	Edit     float64
	Phonetic float64
	Alias    float64
	Token    float64
}

// DefaultWeights returns the standard combiner weights.
func DefaultWeights() Weights {
	return Weights{Edit: 0.30, Phonetic: 0.25, Alias: 0.25, Token: 0.20}
}

// Candidate is one identity presented to the similarity engine. Name and
// Aliases are comparison forms (see Normalize).
type Candidate struct {
	ID      string
	Name    string
	Aliases []string
}

// Score is the scored result for one candidate. Component scores and the
// combined score are 0-100. EditDistance is the raw Levenshtein distance of
// the closest alias, retained for threshold checks that reference distance
// directly.
type Score struct {
	ID           string
	Name         string
	Combined     float64
	Edit         float64
	Phonetic     float64
	Alias        float64
	Token        float64
	EditDistance int
}

// Engine combines the four scorers against a candidate set. It is safe for
// concurrent use; all state is immutable after construction.
type Engine struct {
	weights   Weights
	nicknames *NicknameTable
}

// NewEngine creates a similarity engine with the given combiner weights and
// nickname table. A nil table disables nickname equivalence (alias scoring
// then requires literal alias hits).
func NewEngine(weights Weights, nicknames *NicknameTable) *Engine {
	if nicknames == nil {
		nicknames = NewNicknameTable(nil)
	}
	return &Engine{weights: weights, nicknames: nicknames}
}

// EditDistance returns the Levenshtein distance between two comparison
// strings.
func EditDistance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// EditSimilarity converts Levenshtein distance to a 0-100 similarity:
// (maxLen - distance) / maxLen * 100. Deterministic and symmetric.
func EditSimilarity(a, b string) float64 {
	if a == b {
		return 100
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 100
	}
	distance := levenshtein.ComputeDistance(a, b)
	if distance >= maxLen {
		return 0
	}
	return float64(maxLen-distance) / float64(maxLen) * 100
}

// TokenSetSimilarity computes Jaccard similarity over whitespace tokens,
// scaled to 0-100. Robust to reordered name parts.
func TokenSetSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 100
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union) * 100
}

// NicknameSimilarity scores nickname equivalence between two comparison
// strings: 100 when the names are token-for-token equal or nickname-
// equivalent (e.g. "bob smith" vs "robert smith"), 0 otherwise. Symmetric.
func (e *Engine) NicknameSimilarity(a, b string) float64 {
	if a == b && a != "" {
		return 100
	}

	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensA) != len(tokensB) {
		return 0
	}

	for i := range tokensA {
		if tokensA[i] == tokensB[i] {
			continue
		}
		if !e.nicknames.Equivalent(tokensA[i], tokensB[i]) {
			return 0
		}
	}
	return 100
}

// aliasSimilarity scores the query against a candidate's accumulated
// aliases and nickname equivalences. A literal alias hit or a full nickname
// equivalence scores 100.
func (e *Engine) aliasSimilarity(query string, cand Candidate) float64 {
	best := e.NicknameSimilarity(query, cand.Name)
	for _, alias := range cand.Aliases {
		if best >= 100 {
			break
		}
		if query == alias {
			return 100
		}
		if s := e.NicknameSimilarity(query, alias); s > best {
			best = s
		}
	}
	return best
}

// ScoreCandidate scores the query against a single candidate. Each scorer
// takes the best value across the candidate's canonical name and aliases;
// EditDistance is the minimum across them.
func (e *Engine) ScoreCandidate(query string, cand Candidate) Score {
	names := append([]string{cand.Name}, cand.Aliases...)

	score := Score{
		ID:           cand.ID,
		Name:         cand.Name,
		EditDistance: EditDistance(query, cand.Name),
	}

	for _, name := range names {
		if name == "" {
			continue
		}
		if d := EditDistance(query, name); d < score.EditDistance {
			score.EditDistance = d
		}
		if s := EditSimilarity(query, name); s > score.Edit {
			score.Edit = s
		}
		if s := PhoneticSimilarity(query, name); s > score.Phonetic {
			score.Phonetic = s
		}
		if s := TokenSetSimilarity(query, name); s > score.Token {
			score.Token = s
		}
	}

	score.Alias = e.aliasSimilarity(query, cand)

	score.Combined = e.weights.Edit*score.Edit +
		e.weights.Phonetic*score.Phonetic +
		e.weights.Alias*score.Alias +
		e.weights.Token*score.Token

	return score
}

// Rank scores the query against every candidate and returns the full list
// sorted descending by combined score. Ties break on ascending name so the
// ordering is deterministic.
func (e *Engine) Rank(query string, candidates []Candidate) []Score {
	scores := make([]Score, 0, len(candidates))
	for _, cand := range candidates {
		scores = append(scores, e.ScoreCandidate(query, cand))
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Combined != scores[j].Combined {
			return scores[i].Combined > scores[j].Combined
		}
		return scores[i].Name < scores[j].Name
	})

	return scores
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}
