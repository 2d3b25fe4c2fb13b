package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
	"github.com/m-mizutani/goerr/v2"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is a brute-force cosine index. Every mutation happens under the
// write lock, so searches see a batch either entirely or not at all.
type VectorIndex struct {
	mu         sync.RWMutex
	dimensions int
	entries    map[string]*indexEntry
	seq        int64
	failNext   error
}

type indexEntry struct {
	domain.VectorEntry
	norm float64
}

// NewVectorIndex creates an empty index for vectors of the given dimension
func NewVectorIndex(dimensions int) *VectorIndex {
	return &VectorIndex{
		dimensions: dimensions,
		entries:    make(map[string]*indexEntry),
	}
}

// SetFailNext makes the next mutation return err
func (x *VectorIndex) SetFailNext(err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.failNext = err
}

func (x *VectorIndex) takeFailure() error {
	err := x.failNext
	x.failNext = nil
	return err
}

func (x *VectorIndex) validate(entries []domain.VectorEntry) error {
	for _, e := range entries {
		if len(e.Vector) != x.dimensions {
			return goerr.Wrap(domain.ErrInvalidInput, "vector dimension mismatch",
				goerr.V(domain.KeyConceptID, e.ConceptID),
				goerr.V("got", len(e.Vector)),
				goerr.V("want", x.dimensions))
		}
		if e.ConceptID == "" {
			return goerr.Wrap(domain.ErrInvalidInput, "vector entry without concept id")
		}
	}
	return nil
}

// put stores an entry, keeping the sequence of an existing one. Callers hold the lock.
func (x *VectorIndex) put(e domain.VectorEntry) {
	if existing, ok := x.entries[e.ConceptID]; ok {
		e.Seq = existing.Seq
	} else {
		x.seq++
		e.Seq = x.seq
	}
	e.Vector = append([]float32(nil), e.Vector...)
	x.entries[e.ConceptID] = &indexEntry{VectorEntry: e, norm: norm(e.Vector)}
}

func (x *VectorIndex) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	if err := x.validate(entries); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.takeFailure(); err != nil {
		return err
	}
	for _, e := range entries {
		x.put(e)
	}
	return nil
}

func (x *VectorIndex) Delete(ctx context.Context, conceptIDs []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.takeFailure(); err != nil {
		return err
	}
	for _, id := range conceptIDs {
		delete(x.entries, id)
	}
	return nil
}

func (x *VectorIndex) ReplaceSource(ctx context.Context, sourceID string, entries []domain.VectorEntry) error {
	for _, e := range entries {
		if e.SourceID != sourceID {
			return goerr.Wrap(domain.ErrInvalidInput, "entry belongs to another source",
				goerr.V(domain.KeySourceID, sourceID),
				goerr.V(domain.KeyConceptID, e.ConceptID))
		}
	}
	if err := x.validate(entries); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.takeFailure(); err != nil {
		return err
	}
	keep := make(map[string]bool, len(entries))
	for _, e := range entries {
		keep[e.ConceptID] = true
	}
	for id, e := range x.entries {
		if e.SourceID == sourceID && !keep[id] {
			delete(x.entries, id)
		}
	}
	for _, e := range entries {
		x.put(e)
	}
	return nil
}

func (x *VectorIndex) DeleteSource(ctx context.Context, sourceID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.takeFailure(); err != nil {
		return err
	}
	for id, e := range x.entries {
		if e.SourceID == sourceID {
			delete(x.entries, id)
		}
	}
	return nil
}

func (x *VectorIndex) Search(ctx context.Context, query []float32, topK int, minScore float64) ([]domain.VectorMatch, error) {
	if topK <= 0 {
		return []domain.VectorMatch{}, nil
	}
	if len(query) != x.dimensions {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "query dimension mismatch",
			goerr.V("got", len(query)), goerr.V("want", x.dimensions))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qnorm := norm(query)

	x.mu.RLock()
	matches := make([]domain.VectorMatch, 0, len(x.entries))
	for _, e := range x.entries {
		score := cosine(query, qnorm, e.Vector, e.norm)
		if score < minScore {
			continue
		}
		matches = append(matches, domain.VectorMatch{
			ConceptID: e.ConceptID,
			SourceID:  e.SourceID,
			Score:     score,
			Seq:       e.Seq,
		})
	}
	x.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Seq < matches[j].Seq
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (x *VectorIndex) Count(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries), nil
}

func (x *VectorIndex) Dimensions() int {
	return x.dimensions
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector is zero.
func cosine(a []float32, anorm float64, b []float32, bnorm float64) float64 {
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (anorm * bnorm)
}
