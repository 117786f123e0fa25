package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

const semanticCollection = "session-memory"

// SemanticIndex keeps an in-memory vector index of committed records so
// long-term recall can be weighted by similarity to the current prompt.
type SemanticIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewSemanticIndex creates an empty index using a local deterministic
// embedding, so indexing never makes network calls.
func NewSemanticIndex() (*SemanticIndex, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(semanticCollection, nil, localEmbedding)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &SemanticIndex{db: db, collection: col}, nil
}

// Add indexes one record.
func (s *SemanticIndex) Add(ctx context.Context, rec Record) error {
	doc := chromem.Document{
		ID:      fmt.Sprintf("%s/%d", rec.SessionID, rec.Seq),
		Content: rec.Prompt + "\n" + rec.Response,
		Metadata: map[string]string{
			"session_id": rec.SessionID,
		},
	}
	return s.collection.AddDocuments(ctx, []chromem.Document{doc}, 1)
}

// Rank returns similarity scores keyed by record sequence for the given
// session, relative to the query text.
func (s *SemanticIndex) Rank(ctx context.Context, sessionID, query string, limit int) (map[string]float32, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	where := map[string]string{"session_id": sessionID}
	results, err := s.collection.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic query: %w", err)
	}

	ranks := make(map[string]float32, len(results))
	for _, r := range results {
		ranks[r.ID] = r.Similarity
	}
	return ranks, nil
}

// localEmbedding is a deterministic bag-of-words hashing embedding. It is
// not a learned embedding; it only needs to be stable and cheap so that
// similar prompts land near each other.
func localEmbedding(ctx context.Context, text string) ([]float32, error) {
	const dim = 128
	vec := make([]float32, dim)

	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,!?;:\"'()")))
		vec[h.Sum32()%dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}
