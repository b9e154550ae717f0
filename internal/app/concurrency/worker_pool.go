package concurrency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"compactpdf/internal/common"
	engine "compactpdf/internal/compression"
	"compactpdf/internal/domain/compression"
)

// ErrCancelled marks documents that never started because the batch was cancelled.
var ErrCancelled = errors.New("cancelled before start")

// NewWorkerPool creates a new worker pool. workers <= 0 picks min(NumCPU, MaxConcurrencyLimit).
func NewWorkerPool(processor ProcessorFunc, workers int, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = calculateOptimalWorkerCount()
	}
	return &WorkerPool{processor: processor, maxWorkers: workers, logger: logger}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.maxWorkers
}

// ProcessBatch compresses every request. A failing or panicking document yields a failed
// outcome without affecting the others; requests not started before ctx is done are
// reported as cancelled.
func (wp *WorkerPool) ProcessBatch(ctx context.Context, requests []engine.Request) BatchResult {
	if len(requests) == 0 {
		return BatchResult{Outcomes: []compression.CompressionOutcome{}}
	}

	pool, err := ants.NewPool(min(wp.maxWorkers, len(requests)))
	if err != nil {
		wp.logger.Error("Failed to create worker pool", "error", err)
		outcomes := make([]compression.CompressionOutcome, len(requests))
		for i, req := range requests {
			outcomes[i] = failed(req, fmt.Errorf("failed to create worker pool: %w", err))
		}
		return collectResults(outcomes)
	}
	defer pool.Release()

	outcomes := make([]compression.CompressionOutcome, len(requests))
	var wg sync.WaitGroup

	for i, req := range requests {
		i, req := i, req
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = wp.process(ctx, i, req)
		})
		if err != nil {
			wg.Done()
			wp.logger.Error("Failed to submit task", "file", req.InputPath, "error", err)
			outcomes[i] = failed(req, err)
		}
	}

	wg.Wait()
	return collectResults(outcomes)
}

func (wp *WorkerPool) process(ctx context.Context, workerID int, req engine.Request) (out compression.CompressionOutcome) {
	select {
	case <-ctx.Done():
		wp.logger.Info("Compression cancelled by context", "file", req.InputPath)
		return failed(req, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()))
	default:
	}

	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("Compression panicked", "file", req.InputPath, "worker_id", workerID, "panic", r)
			out = failed(req, fmt.Errorf("compression panicked: %v", r))
		}
	}()

	return wp.processor(ctx, req)
}

func failed(req engine.Request, err error) compression.CompressionOutcome {
	return engine.FailedOutcome(engine.OutcomeInput{
		RunID:      common.GenerateUUID(),
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		Level:      req.Level,
	}, err)
}

// calculateOptimalWorkerCount determines the optimal number of workers
func calculateOptimalWorkerCount() int {
	maxConcurrency := runtime.NumCPU()
	if maxConcurrency > common.MaxConcurrencyLimit {
		maxConcurrency = common.MaxConcurrencyLimit
	}
	return maxConcurrency
}

func collectResults(outcomes []compression.CompressionOutcome) BatchResult {
	result := BatchResult{Outcomes: outcomes, TotalFiles: len(outcomes)}
	for _, o := range outcomes {
		if !o.Success {
			result.Failed++
			continue
		}
		result.Succeeded++
		result.TotalOriginalSize += o.OriginalSize
		result.TotalCompressedSize += o.FinalSize
	}

	if result.TotalOriginalSize > 0 {
		result.OverallRatio = float64(result.TotalOriginalSize-result.TotalCompressedSize) / float64(result.TotalOriginalSize)
	}
	return result
}
