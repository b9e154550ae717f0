package concurrency

import (
	"context"
	"log/slog"

	engine "compactpdf/internal/compression"
	"compactpdf/internal/domain/compression"
)

// ProcessorFunc compresses one document. Compressor.Compress satisfies it.
type ProcessorFunc func(ctx context.Context, req engine.Request) compression.CompressionOutcome

// BatchResult aggregates the outcomes of one batch, in request order.
type BatchResult struct {
	Outcomes            []compression.CompressionOutcome `json:"outcomes"`
	TotalFiles          int                              `json:"total_files"`
	Succeeded           int                              `json:"succeeded"`
	Failed              int                              `json:"failed"`
	TotalOriginalSize   int64                            `json:"total_original_size"`
	TotalCompressedSize int64                            `json:"total_compressed_size"`
	OverallRatio        float64                          `json:"overall_ratio"`
}

// WorkerPool runs independent compressions concurrently.
type WorkerPool struct {
	processor  ProcessorFunc
	maxWorkers int
	logger     *slog.Logger
}
