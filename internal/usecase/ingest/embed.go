package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

// batchTask is one index-tagged slice of a message's chunk texts.
type batchTask struct {
	ordinal int
	texts   []string
}

type batchResult struct {
	ordinal int
	vectors [][]float32
	err     error
}

// embedChunks embeds texts in batches on the shared pool and reassembles the
// vectors in input order. The first failure cancels the batches still pending.
func (s *Service) embedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	tasks := splitBatches(texts, s.cfg.BatchSize)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan batchResult, len(tasks))
	submitted := 0
	var submitErr error
	for _, task := range tasks {
		err := s.pool.Submit(func() {
			results <- s.embedBatch(ctx, task)
		})
		if err != nil {
			submitErr = fmt.Errorf("submit embedding batch %d: %w", task.ordinal, err)
			cancel()
			break
		}
		submitted++
	}

	collected := make([]batchResult, 0, submitted)
	var firstErr error
	for i := 0; i < submitted; i++ {
		r := <-results
		if r.err != nil && firstErr == nil {
			firstErr = r.err
			cancel()
		}
		collected = append(collected, r)
	}
	if submitErr != nil {
		return nil, submitErr
	}
	if firstErr != nil {
		return nil, firstErr
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].ordinal < collected[j].ordinal })

	vectors := make([][]float32, 0, len(texts))
	for _, r := range collected {
		vectors = append(vectors, r.vectors...)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %d chunks produced %d embeddings", domain.ErrProtocol, len(texts), len(vectors))
	}
	return vectors, nil
}

func (s *Service) embedBatch(ctx context.Context, task batchTask) batchResult {
	if err := ctx.Err(); err != nil {
		return batchResult{ordinal: task.ordinal, err: err}
	}
	res, err := s.embed.Embed(ctx, task.texts)
	if err != nil {
		return batchResult{ordinal: task.ordinal, err: fmt.Errorf("embedding batch %d: %w", task.ordinal, err)}
	}
	if err := domain.CheckEmbeddings(res, len(task.texts), 0); err != nil {
		return batchResult{ordinal: task.ordinal, err: fmt.Errorf("embedding batch %d: %w", task.ordinal, err)}
	}
	return batchResult{ordinal: task.ordinal, vectors: res.Vectors}
}

func splitBatches(texts []string, size int) []batchTask {
	if size <= 0 {
		size = len(texts)
	}
	tasks := make([]batchTask, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		tasks = append(tasks, batchTask{ordinal: len(tasks), texts: texts[start:end]})
	}
	return tasks
}
