package discovery

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"topicscanner/internal/domain"
)

var (
	tokenPattern = regexp.MustCompile(`\p{L}[\p{L}\p{N}'-]*`)

	// Acronyms (BERT, GAN), hyphenated compounds (self-attention) and
	// camel-cased names (AlphaFold) read as technical terms.
	acronymPattern   = regexp.MustCompile(`^[A-Za-z]*[A-Z]{2,}[A-Za-z0-9]*$`)
	hyphenPattern    = regexp.MustCompile(`^\p{L}+(-\p{L}+)+$`)
	camelCasePattern = regexp.MustCompile(`^[A-Z][a-z]+[A-Z]\w*$`)
)

// labelCluster produces a short title and a longer description for one
// cluster using a layered strategy: recurring multi-word phrases from member
// titles first, technical-term pattern matching second, corpus-discounted
// term frequency last. Stop terms are filtered at every layer.
func labelCluster(members []domain.Document, corpus []domain.Document) (string, string) {
	title := phraseTitle(members)
	if title == "" {
		title = technicalTermTitle(members)
	}
	if title == "" {
		title = frequencyTitle(members, corpus)
	}
	if title == "" {
		title = "Untitled Topic"
	}

	terms := topDiscountedTerms(members, corpus, 4)
	description := fmt.Sprintf("%d articles", len(members))
	if len(terms) > 0 {
		description = fmt.Sprintf("%d articles covering %s", len(members), strings.Join(terms, ", "))
	}
	return title, description
}

// phraseTitle looks for a multi-word phrase recurring across distinct member
// titles. A phrase qualifies when at least two documents share it.
func phraseTitle(members []domain.Document) string {
	counts := map[string]int{}
	for _, doc := range members {
		seen := map[string]struct{}{}
		tokens := tokenize(doc.Title)
		for _, phrase := range ngrams(tokens, 3) {
			seen[phrase] = struct{}{}
		}
		for _, phrase := range ngrams(tokens, 2) {
			seen[phrase] = struct{}{}
		}
		for phrase := range seen {
			counts[phrase]++
		}
	}

	best := ""
	bestScore := 0
	for phrase, count := range counts {
		if count < 2 {
			continue
		}
		// Prefer longer phrases at equal support, lexical order as the
		// deterministic tie-break.
		score := count*10 + len(strings.Fields(phrase))
		if score > bestScore || (score == bestScore && phrase < best) {
			best = phrase
			bestScore = score
		}
	}
	if best == "" {
		return ""
	}
	return titleCase(best)
}

func ngrams(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	var out []string
	for i := 0; i+n <= len(tokens); i++ {
		window := tokens[i : i+n]
		if isStopword(window[0]) || isStopword(window[n-1]) {
			continue
		}
		skip := false
		for _, tok := range window {
			if len(tok) < 3 {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		out = append(out, strings.Join(window, " "))
	}
	return out
}

// technicalTermTitle falls back to the most frequent domain-technical token
// across member titles.
func technicalTermTitle(members []domain.Document) string {
	counts := map[string]int{}
	display := map[string]string{}
	for _, doc := range members {
		for _, raw := range tokenPattern.FindAllString(doc.Title, -1) {
			if !isTechnicalTerm(raw) {
				continue
			}
			key := strings.ToLower(raw)
			if isStopword(key) {
				continue
			}
			counts[key]++
			if _, ok := display[key]; !ok {
				display[key] = raw
			}
		}
	}

	best := ""
	for key, count := range counts {
		if count < 2 {
			continue
		}
		if best == "" || count > counts[best] || (count == counts[best] && key < best) {
			best = key
		}
	}
	if best == "" {
		return ""
	}
	return display[best]
}

func isTechnicalTerm(token string) bool {
	if len(token) < 3 {
		return false
	}
	return acronymPattern.MatchString(token) ||
		hyphenPattern.MatchString(token) ||
		camelCasePattern.MatchString(token)
}

// frequencyTitle is the last-resort layer: the member term with the highest
// frequency discounted by how common it is across the whole batch.
func frequencyTitle(members []domain.Document, corpus []domain.Document) string {
	terms := topDiscountedTerms(members, corpus, 2)
	if len(terms) == 0 {
		return ""
	}
	return titleCase(strings.Join(terms, " "))
}

// topDiscountedTerms ranks member terms by tf weighted with an inverse
// document frequency over the full batch, so terms shared by every cluster
// do not win.
func topDiscountedTerms(members []domain.Document, corpus []domain.Document, limit int) []string {
	df := map[string]int{}
	for _, doc := range corpus {
		seen := map[string]struct{}{}
		for _, tok := range tokenize(doc.Title + " " + doc.Text) {
			if isStopword(tok) || len(tok) < 3 {
				continue
			}
			seen[tok] = struct{}{}
		}
		for tok := range seen {
			df[tok]++
		}
	}

	tf := map[string]int{}
	for _, doc := range members {
		for _, tok := range tokenize(doc.Title + " " + doc.Text) {
			if isStopword(tok) || len(tok) < 3 {
				continue
			}
			tf[tok]++
		}
	}

	type scored struct {
		term  string
		score float64
	}
	n := float64(len(corpus))
	ranked := make([]scored, 0, len(tf))
	for term, count := range tf {
		idf := math.Log((1+n)/(1+float64(df[term]))) + 1
		ranked = append(ranked, scored{term: term, score: float64(count) * idf})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].term < ranked[j].term
	})

	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]string, 0, limit)
	for _, s := range ranked[:limit] {
		out = append(out, s.term)
	}
	return out
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	return raw
}

func titleCase(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		if isStopword(w) {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func isStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

var stopwords = buildStopwords()

func buildStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for",
		"to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was",
		"were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "further", "than",
		"so", "such", "into", "about", "between", "through", "during",
		"before", "after", "above", "below", "out", "off", "own", "same",
		"too", "very", "can", "will", "just", "not", "no", "now", "we", "our",
		"you", "your", "their", "its", "via", "using", "based", "towards",
		"toward", "new", "novel", "approach", "approaches", "method",
		"methods", "paper", "study", "analysis", "results", "case", "survey",
		"review", "improving", "learning", "model", "models",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
