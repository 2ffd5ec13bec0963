// Package knowledge backs the details agent with an embedded vector
// index over the shop's reference snippets.
package knowledge

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"runtime"

	chromem "github.com/philippgille/chromem-go"

	contractx "github.com/merryway/baristabot/agent/contract"
)

//go:embed data/knowledge.json
var knowledgeRaw []byte

const collectionName = "shop-knowledge"

// Document is one indexable snippet.
type Document struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Store is an in-memory nearest-neighbour index; it implements
// contract.Retriever.
type Store struct {
	collection *chromem.Collection
}

var _ contractx.Retriever = (*Store)(nil)

// NewStore indexes docs with the given embedding function.
func NewStore(ctx context.Context, docs []Document, embed chromem.EmbeddingFunc) (*Store, error) {
	if embed == nil {
		return nil, fmt.Errorf("%w: embedding func is required", contractx.ErrValidation)
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create knowledge collection: %w", err)
	}

	chromemDocs := make([]chromem.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.ID == "" || doc.Text == "" {
			continue
		}
		chromemDocs = append(chromemDocs, chromem.Document{
			ID:      doc.ID,
			Content: doc.Text,
		})
	}
	if err := collection.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("index knowledge documents: %w", err)
	}

	return &Store{collection: collection}, nil
}

// DefaultDocuments decodes the snippets embedded at build time.
func DefaultDocuments() ([]Document, error) {
	var docs []Document
	if err := json.Unmarshal(knowledgeRaw, &docs); err != nil {
		return nil, fmt.Errorf("decode embedded knowledge: %w", err)
	}
	return docs, nil
}

// Search returns up to topK snippets ranked by similarity.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]contractx.Snippet, error) {
	if topK <= 0 {
		topK = 2
	}
	if n := s.collection.Count(); topK > n {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := s.collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query knowledge collection: %w", err)
	}

	snippets := make([]contractx.Snippet, len(results))
	for i, result := range results {
		snippets[i] = contractx.Snippet{
			Text:  result.Content,
			Score: float64(result.Similarity),
		}
	}
	return snippets, nil
}
