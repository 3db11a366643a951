package analytics

import (
	"context"
	"log"

	"github.com/modelyard/modelyard/pkg/domain"
)

// ThresholdEvaluator decides whether an asset type has accumulated enough
// telemetry to (re)train on.
//
// It fails closed: any trouble answering the question means "not enough yet",
// so a flaky warehouse can delay training but never trigger it early.
type ThresholdEvaluator struct {
	client Interface
	logger *log.Logger
}

func NewThresholdEvaluator(client Interface, logger *log.Logger) *ThresholdEvaluator {
	return &ThresholdEvaluator{client: client, logger: logger}
}

func (e *ThresholdEvaluator) IsMet(ctx context.Context, record domain.PipelineRecord) bool {
	if len(record.FeatureAttributes) == 0 {
		e.logger.Printf(
			"threshold check skipped: pipeline %s has no feature attributes",
			record.String(),
		)
		return false
	}

	count, err := e.client.CountRecords(ctx, record.AssetTypeId, record.FeatureAttributes)
	if err != nil {
		e.logger.Printf("threshold check failed for pipeline %s: %s", record.String(), err)
		return false
	}

	return record.EffectiveThreshold() <= count
}
