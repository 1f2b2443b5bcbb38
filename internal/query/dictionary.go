package query

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// TermDictionary provides the terms observed in indexed record texts along
// with their document frequencies, used to rank candidate corrections.
type TermDictionary interface {
	Terms() (map[string]int, error)
}

// BleveDictionary is an in-memory bleve index over record search texts. It
// gives the normalizer a live term dictionary: distinct words from labels,
// items, vendors and categories become correction targets, and frequency
// breaks ties between candidates at equal edit distance.
type BleveDictionary struct {
	index bleve.Index
}

type dictDoc struct {
	Text string `json:"text"`
}

// NewBleveDictionary creates an in-memory term dictionary.
func NewBleveDictionary() (*BleveDictionary, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so dictionary
	// terms stay literal words ("petrol", not a stem).
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create term dictionary index: %w", err)
	}
	return &BleveDictionary{index: index}, nil
}

// IndexText adds or replaces the text indexed under id.
func (d *BleveDictionary) IndexText(id string, text string) error {
	return d.index.Index(id, &dictDoc{Text: text})
}

// Terms returns every unique term in the dictionary with its frequency.
func (d *BleveDictionary) Terms() (map[string]int, error) {
	fieldDict, err := d.index.FieldDict("text")
	if err != nil {
		return nil, fmt.Errorf("failed to open field dict: %w", err)
	}
	defer fieldDict.Close()

	terms := make(map[string]int)
	for {
		entry, err := fieldDict.Next()
		if err != nil || entry == nil {
			break
		}
		terms[entry.Term] = int(entry.Count)
	}
	return terms, nil
}

// DocCount returns the number of indexed texts.
func (d *BleveDictionary) DocCount() (uint64, error) {
	return d.index.DocCount()
}

// Close closes the underlying index.
func (d *BleveDictionary) Close() error {
	return d.index.Close()
}
