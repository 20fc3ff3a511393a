package embedding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrag/internal/domain"
)

type fakeBudget struct {
	checkErr error
	recorded int64
}

func (f *fakeBudget) Check(context.Context) error { return f.checkErr }
func (f *fakeBudget) Record(tokens int64)         { f.recorded += tokens }
func (f *fakeBudget) RemainingDaily() int64       { return -1 }
func (f *fakeBudget) RemainingMonthly() int64     { return -1 }

func TestInstrumentedEmbedder_BudgetRejectBlocks(t *testing.T) {
	inner := &fakeEmbedder{dims: 2}
	budget := &fakeBudget{checkErr: domain.ErrEmbeddingQuotaExceeded}
	e := NewInstrumentedEmbedder(inner, "openai", "m", budget, zap.NewNop())

	_, err := e.Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected ErrEmbeddingQuotaExceeded, got %v", err)
	}
	if inner.embedCalls.Load() != 0 {
		t.Errorf("rejected request must not reach the inner embedder")
	}
}

func TestInstrumentedEmbedder_RecordsTokens(t *testing.T) {
	inner := &fakeEmbedder{dims: 2}
	budget := &fakeBudget{}
	e := NewInstrumentedEmbedder(inner, "openai", "m", budget, zap.NewNop())

	if _, err := e.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if budget.recorded != 3 {
		t.Errorf("expected 3 tokens recorded, got %d", budget.recorded)
	}
}

func TestInstrumentedEmbedder_BatchChunksLargeInput(t *testing.T) {
	inner := &fakeEmbedder{dims: 2}
	e := NewInstrumentedEmbedder(inner, "openai", "m", nil, zap.NewNop())

	texts := make([]string, maxAPIBatchSize*2+10)
	for i := range texts {
		texts[i] = "t"
	}

	res, err := e.BatchEmbed(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(res.Embeddings))
	}
	if got := inner.batchCalls.Load(); got != 3 {
		t.Errorf("expected 3 API chunks, got %d", got)
	}
	if res.TotalTokens != 3*len(texts) {
		t.Errorf("token totals not aggregated: %d", res.TotalTokens)
	}
}

func TestInstrumentedEmbedder_BatchEmptyInput(t *testing.T) {
	inner := &fakeEmbedder{dims: 2}
	e := NewInstrumentedEmbedder(inner, "openai", "m", nil, zap.NewNop())

	res, err := e.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 0 || inner.batchCalls.Load() != 0 {
		t.Errorf("empty batch must be a no-op")
	}
}

func TestInstrumentedEmbedder_InnerErrorWrapped(t *testing.T) {
	inner := &fakeEmbedder{err: domain.ErrModelUnavailable}
	e := NewInstrumentedEmbedder(inner, "openai", "m", nil, zap.NewNop())

	_, err := e.BatchEmbed(context.Background(), []string{"x"})
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}
