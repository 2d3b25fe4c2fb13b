package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

func TestVectorIndex_SearchZeroTopK(t *testing.T) {
	// no database: a zero topK must return before any query is issued
	idx := NewVectorIndex(nil, 3)

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches, want none", len(matches))
	}
}

func TestVectorIndex_CheckDims(t *testing.T) {
	idx := NewVectorIndex(nil, 3)

	if err := idx.checkDims([]float32{1, 2, 3}); err != nil {
		t.Errorf("checkDims(3): %v", err)
	}
	if err := idx.checkDims([]float32{1, 2}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("checkDims(2) = %v, want ErrInvalidInput", err)
	}

	_, err := idx.Search(context.Background(), []float32{1, 2}, 5, 0)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Search with wrong dimension = %v, want ErrInvalidInput", err)
	}
}
