package model

import (
	"math"
	"time"
)

// Score bucket names.
const (
	BucketExcellent = "excellent"
	BucketGood      = "good"
	BucketModerate  = "moderate"
	BucketPoor      = "poor"
)

type Statistics struct {
	Total                 int            `json:"total"`
	Successful            int            `json:"successful"`
	Errors                int            `json:"errors"`
	AvgValidationScore    *float64       `json:"avg_validation_score"`
	AvgMLReadinessScore   *float64       `json:"avg_ml_readiness_score"`
	ScoreDistribution     map[string]int `json:"score_distribution"`
	AlertSummary          map[string]int `json:"alert_summary"`
	FailedChecks          map[string]int `json:"failed_checks"`
	ProcessingTimeSeconds float64        `json:"processing_time_seconds"`
	MoleculesPerSecond    float64        `json:"molecules_per_second"`
}

// ScoreBucket places a score into [90,100], [70,90), [50,70) or [0,50).
func ScoreBucket(score int) string {
	switch {
	case score >= 90:
		return BucketExcellent
	case score >= 70:
		return BucketGood
	case score >= 50:
		return BucketModerate
	}
	return BucketPoor
}

// NewStatistics reduces results into the statistics record. Averages only cover successful
// items with a validation outcome.
func NewStatistics(items []ResultItem, processing time.Duration) Statistics {
	s := Statistics{
		Total: len(items),
		ScoreDistribution: map[string]int{
			BucketExcellent: 0,
			BucketGood:      0,
			BucketModerate:  0,
			BucketPoor:      0,
		},
		AlertSummary: map[string]int{},
		FailedChecks: map[string]int{},
	}

	validationSum, validationN := 0, 0
	mlSum, mlN := 0, 0
	for i := range items {
		item := &items[i]
		if item.Status != ItemStatusSuccess {
			s.Errors++
			continue
		}
		s.Successful++
		if score, ok := item.Score(); ok {
			validationSum += score
			validationN++
			s.ScoreDistribution[ScoreBucket(score)]++
			for _, name := range item.Validation.FailedChecks() {
				s.FailedChecks[name]++
			}
		}
		if item.Scoring != nil {
			mlSum += item.Scoring.MLReadiness.Score
			mlN++
		}
		if item.Alerts != nil {
			for _, a := range item.Alerts.Alerts {
				s.AlertSummary[a.Catalog]++
			}
		}
	}
	s.AvgValidationScore = average(validationSum, validationN)
	s.AvgMLReadinessScore = average(mlSum, mlN)

	s.ProcessingTimeSeconds = round2(processing.Seconds())
	if processing > 0 {
		s.MoleculesPerSecond = round2(float64(s.Total) / processing.Seconds())
	}
	return s
}

func average(sum, n int) *float64 {
	if n == 0 {
		return nil
	}
	v := round2(float64(sum) / float64(n))
	return &v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
