package statistics

import "context"

// Summary aggregates every recorded compression run.
type Summary struct {
	TotalRuns          int64            `json:"total_runs"`
	SuccessfulRuns     int64            `json:"successful_runs"`
	FailedRuns         int64            `json:"failed_runs"`
	TotalOriginalBytes int64            `json:"total_original_bytes"`
	TotalFinalBytes    int64            `json:"total_final_bytes"`
	TotalDataSaved     int64            `json:"total_data_saved"`
	AverageRatio       float64          `json:"average_ratio"`
	Escalations        int64            `json:"escalations"`
	ByLevel            map[string]int64 `json:"by_level"`
	ByPath             map[string]int64 `json:"by_path"`
	TechniqueUsage     map[string]int64 `json:"technique_usage"`
}

// Service reads the analytics store.
type Service interface {
	Summary(ctx context.Context) (*Summary, error)
}
