// Package match implements deterministic keyword matching over a tenant's
// documents. The engine is a pure function of (documents, query): no storage,
// no credentials, no hidden state, so identical inputs always produce
// identical results and the whole pipeline is property-testable in isolation.
package match

import (
	"strings"

	"github.com/hyperjump/shikiri/internal/apperr"
	"github.com/hyperjump/shikiri/internal/models"
)

// Result is the outcome of a search. Matched is false iff Sources is empty;
// the no-match display string is a presentation concern of callers.
type Result struct {
	Matched bool
	Answer  string
	Sources []string
}

// topicKeywords gate matching: when the query names one of these topics, a
// document (and the answering sentence) must name it too. Stored in
// canonicalized form so "résiliation" and "résilier" gate alike.
var topicKeywords = map[string]struct{}{
	"sinistre": {}, "resili": {}, "rc": {}, "exclusion": {},
}

// exclusionDetailKeywords are tokens that name a specific exclusion type
// (as opposed to a product name). Canonicalized form.
var exclusionDetailKeywords = map[string]struct{}{
	"travaux": {}, "hauteur": {}, "traitance": {}, "metres": {}, "metre": {}, "declar": {},
}

// sentenceVerbs marks lines that read like sentences rather than titles.
var sentenceVerbs = []string{
	"doit", "est", "sont", "envoyé", "enregistrée", "validé", "valide",
	"couvre", "transmet", "effectué", "déclaré", "déclaration",
}

// Engine performs keyword matching.
type Engine struct {
	minSentenceLength int
}

// NewEngine returns an engine. minSentenceLength filters title-like lines
// from answer candidates; values <= 0 use the default of 25.
func NewEngine(minSentenceLength int) *Engine {
	if minSentenceLength <= 0 {
		minSentenceLength = 25
	}
	return &Engine{minSentenceLength: minSentenceLength}
}

// queryIntent captures everything derived from the query once, up front.
type queryIntent struct {
	tokens           map[string]struct{}
	topics           map[string]struct{}
	exclusionDetails map[string]struct{}
	wantsExclusion   bool
	wantsDelay       bool
	wantsSuivi       bool
	wantsEmail       bool
}

func analyzeQuery(query string) queryIntent {
	normalized := Normalize(query)
	tokens := canonicalizeTokens(Tokenize(normalized))

	intent := queryIntent{tokens: tokens}
	intent.wantsEmail = strings.Contains(normalized, "email") ||
		strings.Contains(normalized, "mail") || strings.Contains(normalized, "adresse")
	intent.wantsDelay = strings.Contains(normalized, "delai") || strings.Contains(normalized, "jour")
	intent.wantsSuivi = strings.Contains(normalized, "suivi")
	intent.wantsExclusion = strings.Contains(normalized, "exclusion")

	intent.topics = intersect(topicKeywords, tokens)
	if intent.wantsExclusion {
		// Exclusion queries gate only on "exclusion"; other topic tokens in
		// the query (often product names) must not exclude documents. The
		// specific exclusion type, when named, is required instead.
		intent.topics = map[string]struct{}{"exclusion": {}}
		details := make(map[string]struct{})
		for t := range tokens {
			if t == "exclusion" {
				continue
			}
			if _, topical := topicKeywords[t]; topical {
				continue
			}
			if _, ok := exclusionDetailKeywords[t]; ok {
				details[t] = struct{}{}
			}
		}
		intent.exclusionDetails = details
	}
	return intent
}

// admitContent applies the intent gates shared by document- and
// sentence-level filtering. raw is the unnormalized text (the email gate
// needs the literal '@'); tokens are its canonicalized tokens.
func (in *queryIntent) admitContent(raw string, tokens map[string]struct{}) bool {
	if len(in.topics) > 0 && !subset(in.topics, intersect(topicKeywords, tokens)) {
		return false
	}
	if in.wantsExclusion && !strings.Contains(strings.ToLower(raw), "exclusion") {
		return false
	}
	if in.wantsExclusion && len(in.exclusionDetails) > 0 && intersectCount(in.exclusionDetails, tokens) == 0 {
		return false
	}
	if in.wantsSuivi {
		lower := strings.ToLower(raw)
		if !strings.Contains(lower, "suivi") && !strings.Contains(lower, "hebdomadaire") {
			return false
		}
	}
	if in.wantsEmail && !strings.Contains(raw, "@") {
		return false
	}
	return true
}

// Search matches the query against documents. Documents are examined in the
// given order, which callers must keep deterministic (the loader yields
// lexicographic order); ties are broken by that order. A query matching
// nothing is a normal Result{Matched: false}, not an error.
func (e *Engine) Search(documents []models.Document, query string) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, apperr.New(apperr.EInvalid, "query cannot be empty")
	}

	intent := analyzeQuery(query)

	// Score documents by token overlap, gated by intent.
	type scoredDoc struct {
		index int
		score int
	}
	var scored []scoredDoc
	maxScore := 0
	for i, doc := range documents {
		tokens := normalizedTokens(doc.Content)
		if !intent.admitContent(doc.Content, tokens) {
			continue
		}
		score := intersectCount(intent.tokens, tokens)
		if score < 1 {
			continue
		}
		scored = append(scored, scoredDoc{index: i, score: score})
		if score > maxScore {
			maxScore = score
		}
	}
	if len(scored) == 0 {
		return Result{Matched: false}, nil
	}

	var bestDocs []int
	for _, s := range scored {
		if s.score == maxScore {
			bestDocs = append(bestDocs, s.index)
		}
	}

	// Pick the single best sentence across the best documents. On a score
	// tie the earliest sentence of the earliest document wins.
	bestScore := 0
	bestSentence := ""
	for _, idx := range bestDocs {
		doc := documents[idx]
		for _, sentence := range e.candidateSentences(doc.Content) {
			tokens := normalizedTokens(sentence)
			if len(intent.topics) > 0 && !subset(intent.topics, intersect(topicKeywords, tokens)) {
				continue
			}
			if intent.wantsExclusion && len(intent.exclusionDetails) > 0 &&
				intersectCount(intent.exclusionDetails, tokens) == 0 {
				continue
			}
			if intent.wantsDelay && !hasTimeExpression(sentence) {
				continue
			}
			if intent.wantsSuivi {
				lower := strings.ToLower(sentence)
				if !strings.Contains(lower, "suivi") && !strings.Contains(lower, "hebdomadaire") {
					continue
				}
			}
			if intent.wantsEmail && !strings.Contains(sentence, "@") {
				continue
			}

			score := intersectCount(intent.tokens, tokens)
			if intent.wantsEmail && strings.Contains(sentence, "@") {
				score += 10
			}
			if score > bestScore {
				bestScore = score
				bestSentence = sentence
			}
		}
	}
	if bestScore == 0 {
		return Result{Matched: false}, nil
	}

	// Every best-scoring document contributes its source, in document order;
	// the answer text comes from the single best sentence.
	sources := make([]string, 0, len(bestDocs))
	for _, idx := range bestDocs {
		sources = append(sources, documents[idx].Source)
	}
	return Result{Matched: true, Answer: bestSentence, Sources: sources}, nil
}

// candidateSentences splits content into answer-candidate sentences: lines
// split on periods, with short title-like lines filtered out unless they
// mention an exclusion (exclusion clauses are often terse).
func (e *Engine) candidateSentences(content string) []string {
	var sentences []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, ".") {
			for _, part := range strings.Split(line, ".") {
				if part = strings.TrimSpace(part); part != "" {
					sentences = append(sentences, part)
				}
			}
		} else {
			sentences = append(sentences, line)
		}
	}

	filtered := sentences[:0]
	for _, sentence := range sentences {
		lower := strings.ToLower(sentence)
		if !strings.Contains(lower, "exclusion") {
			if len([]rune(sentence)) < e.minSentenceLength {
				continue
			}
			hasPunctuation := strings.ContainsAny(sentence, ".:")
			hasVerb := false
			for _, verb := range sentenceVerbs {
				if strings.Contains(lower, verb) {
					hasVerb = true
					break
				}
			}
			if !hasPunctuation && !hasVerb {
				continue
			}
		}
		filtered = append(filtered, sentence)
	}
	return filtered
}
