package query

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var wordPattern = regexp.MustCompile(`\w+`)

// Context is the structured view of one raw query: the corrected query
// string plus every hint the extractors found.
type Context struct {
	Raw        string
	Normalized string

	Keywords    []string
	PersonNames []string
	Phrases     []string

	// Month is 1-12, or 0 when the query carries no month hint.
	Month int
	// Year is the explicit 4-digit year, or the current year when absent.
	Year int

	// TaxQuery marks queries mentioning gst/tax/vat; downstream filtering
	// is strict for these.
	TaxQuery bool
	// ItemKeywords are surviving keywords naming a concrete item ("cake",
	// "petrol"); non-empty switches several filters from lenient to strict.
	ItemKeywords []string
}

// HasSpecificItem reports whether the query names a concrete item.
func (c *Context) HasSpecificItem() bool {
	return len(c.ItemKeywords) > 0
}

// HasHints reports whether any extractable structure was found at all.
// Queries without hints are admitted on raw similarity alone.
func (c *Context) HasHints() bool {
	return len(c.Keywords) > 0 || len(c.PersonNames) > 0 || len(c.Phrases) > 0 || c.TaxQuery
}

// VocabSource augments the static vocabulary with terms observed in storage.
type VocabSource interface {
	// DistinctTerms returns distinct category/label/item values.
	DistinctTerms(ctx context.Context) ([]string, error)
	// UserNames returns known user display names.
	UserNames(ctx context.Context) ([]string, error)
}

// Normalizer corrects spelling against the domain vocabulary and extracts
// structured hints. Given the same vocabulary snapshot it is pure and
// deterministic.
type Normalizer struct {
	typos    map[string]string
	static   []string
	dict     TermDictionary
	source   VocabSource
	logger   *zap.Logger
	minRatio float64
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithTermDictionary attaches a live term dictionary whose terms and
// frequencies extend the correction vocabulary.
func WithTermDictionary(d TermDictionary) Option {
	return func(n *Normalizer) { n.dict = d }
}

// WithVocabSource attaches a storage-backed vocabulary source.
func WithVocabSource(s VocabSource) Option {
	return func(n *Normalizer) { n.source = s }
}

// WithLogger sets a logger for debug output (vocabulary build failures, corrections).
func WithLogger(l *zap.Logger) Option {
	return func(n *Normalizer) { n.logger = l }
}

// NewNormalizer creates a normalizer over the static domain vocabulary.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		typos:    typoCorrections,
		static:   staticVocabulary,
		minRatio: 0.70,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize runs the full pipeline on raw and returns the query context.
// Vocabulary augmentation failures degrade to the static vocabulary; they
// never abort the query.
func (n *Normalizer) Normalize(ctx context.Context, raw string) *Context {
	vocab := n.buildVocabulary(ctx)

	tokens := wordPattern.FindAllString(strings.ToLower(raw), -1)
	corrected := make([]string, len(tokens))
	for i, tok := range tokens {
		corrected[i] = n.correct(tok, vocab)
	}
	normalized := strings.Join(corrected, " ")

	persons := extractPersonNames(raw)
	personsLower := make(map[string]struct{}, len(persons))
	for _, p := range persons {
		personsLower[strings.ToLower(p)] = struct{}{}
	}

	keywords := make([]string, 0, len(corrected))
	for _, w := range corrected {
		if isDateWord(w) || isStopword(w) || len(w) <= 2 {
			continue
		}
		if _, isPerson := personsLower[w]; isPerson {
			continue
		}
		keywords = append(keywords, w)
	}

	qc := &Context{
		Raw:         raw,
		Normalized:  normalized,
		Keywords:    keywords,
		PersonNames: persons,
		Phrases:     extractPhrases(normalized, strings.ToLower(raw)),
		Month:       extractMonth(corrected),
		Year:        extractYear(raw),
	}

	for _, w := range corrected {
		if _, ok := taxTerms[w]; ok {
			qc.TaxQuery = true
			break
		}
	}

	for _, kw := range keywords {
		// Tax terms drive the tax filter, never the item filter.
		if _, isTax := taxTerms[kw]; isTax {
			continue
		}
		if !isCommonWord(kw) && len(kw) > 2 {
			qc.ItemKeywords = append(qc.ItemKeywords, kw)
		}
	}

	return qc
}

// buildVocabulary assembles the per-query correction vocabulary: the static
// domain list, distinct values and user names from storage, and the live
// term dictionary. Frequencies rank candidates at equal similarity.
func (n *Normalizer) buildVocabulary(ctx context.Context) map[string]int {
	vocab := make(map[string]int, len(n.static)*2)
	for _, term := range n.static {
		vocab[term] = 1
	}

	if n.source != nil {
		terms, err := n.source.DistinctTerms(ctx)
		if err != nil {
			if n.logger != nil {
				n.logger.Debug("vocabulary augmentation failed, using static vocabulary", zap.Error(err))
			}
		} else {
			for _, t := range terms {
				for _, w := range wordPattern.FindAllString(strings.ToLower(t), -1) {
					vocab[w]++
				}
			}
		}
		names, err := n.source.UserNames(ctx)
		if err != nil {
			if n.logger != nil {
				n.logger.Debug("user name augmentation failed", zap.Error(err))
			}
		} else {
			for _, name := range names {
				for _, w := range wordPattern.FindAllString(strings.ToLower(name), -1) {
					vocab[w]++
				}
			}
		}
	}

	if n.dict != nil {
		terms, err := n.dict.Terms()
		if err != nil {
			if n.logger != nil {
				n.logger.Debug("term dictionary unavailable", zap.Error(err))
			}
		} else {
			for term, freq := range terms {
				if vocab[term] < freq {
					vocab[term] = freq
				}
			}
		}
	}

	return vocab
}

// correct returns the corrected form of a single token. The explicit typo
// table wins over everything; exact vocabulary matches are kept as-is; fuzzy
// matching requires a strict minimum similarity and is skipped entirely for
// short tokens, so an acronym like "gst" can never drift to a nearby common
// word.
func (n *Normalizer) correct(word string, vocab map[string]int) string {
	if len(word) < 2 {
		return word
	}
	if fixed, ok := n.typos[word]; ok {
		return fixed
	}
	if _, ok := vocab[word]; ok {
		return word
	}
	if len(word) <= 3 {
		return word
	}

	best := ""
	bestRatio := 0.0
	bestFreq := 0
	wordLen := len([]rune(word))
	for term, freq := range vocab {
		lenDiff := len([]rune(term)) - wordLen
		if lenDiff < 0 {
			lenDiff = -lenDiff
		}
		if lenDiff > 3 {
			continue
		}
		ratio := SimilarityRatio(word, term)
		if ratio > bestRatio || (ratio == bestRatio && freq > bestFreq) {
			best = term
			bestRatio = ratio
			bestFreq = freq
		}
	}
	if bestRatio >= n.minRatio {
		return best
	}

	// Substring pass for longer words: partial matches like "restaurnt"
	// inside "restaurant" still need the minimum ratio.
	if wordLen > 4 {
		for term := range vocab {
			if strings.Contains(term, word) || strings.Contains(word, term) {
				if SimilarityRatio(word, term) >= n.minRatio {
					return term
				}
			}
		}
	}

	return word
}
