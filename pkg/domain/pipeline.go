package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/modelyard/modelyard/pkg/utils/cmp"
)

// How often a training pipeline is eligible to run again.
type RunFrequency string

const (
	Never           RunFrequency = "Never"
	Weekly          RunFrequency = "Weekly"
	TwiceAMonth     RunFrequency = "Twice a Month"
	Monthly         RunFrequency = "Monthly"
	EveryOtherMonth RunFrequency = "Every Other Month"
)

func (rf RunFrequency) String() string {
	return string(rf)
}

func AsRunFrequency(s string) (RunFrequency, error) {
	switch s {
	case string(Never):
		return Never, nil
	case string(Weekly):
		return Weekly, nil
	case string(TwiceAMonth):
		return TwiceAMonth, nil
	case string(Monthly):
		return Monthly, nil
	case string(EveryOtherMonth):
		return EveryOtherMonth, nil
	default:
		return "", fmt.Errorf("'%s' is not RunFrequency", s)
	}
}

// Threshold applied when a pipeline record does not declare its own.
const DefaultDataThreshold = 100000

// Pair of job handles for the two most recent training jobs of a pipeline.
//
// CurrentRun always points the job started most recently.
// LastRun points the job it superseded, which is the candidate for teardown.
// Each can be empty (= no such job).
type PipelineRunId struct {
	CurrentRun string
	LastRun    string
}

// One training pipeline, bound to a (asset type, component) pair.
type PipelineRecord struct {
	AssetTypeId string
	ComponentId string

	// attribute names to be monitored. empty = the pipeline is orphaned.
	FeatureAttributes []string

	// minimum observed row count before (re)training is justified.
	//
	// nil means "not set"; use EffectiveThreshold() when evaluating.
	DataThreshold *int

	RunFrequency RunFrequency

	RunId PipelineRunId

	// timestamp of the last successful job start. nil = never run.
	LastPipelineRun *time.Time

	// true after a run started, until artifact consumers reloaded their models.
	InitArtifacts bool
}

// the pipeline has no feature attributes to monitor; it should be torn down.
func (p *PipelineRecord) Orphaned() bool {
	return len(p.FeatureAttributes) == 0
}

func (p *PipelineRecord) EffectiveThreshold() int {
	if p.DataThreshold == nil {
		return DefaultDataThreshold
	}
	return *p.DataThreshold
}

func (p *PipelineRecord) Equal(o *PipelineRecord) bool {
	if (p == nil) || (o == nil) {
		return (p == nil) && (o == nil)
	}
	return p.AssetTypeId == o.AssetTypeId &&
		p.ComponentId == o.ComponentId &&
		cmp.SliceEq(p.FeatureAttributes, o.FeatureAttributes) &&
		((p.DataThreshold == nil && o.DataThreshold == nil) ||
			(p.DataThreshold != nil && o.DataThreshold != nil && *p.DataThreshold == *o.DataThreshold)) &&
		p.RunFrequency == o.RunFrequency &&
		p.RunId == o.RunId &&
		((p.LastPipelineRun == nil && o.LastPipelineRun == nil) ||
			(p.LastPipelineRun != nil && o.LastPipelineRun != nil && p.LastPipelineRun.Equal(*o.LastPipelineRun))) &&
		p.InitArtifacts == o.InitArtifacts
}

func (p *PipelineRecord) String() string {
	if p == nil {
		return "(nil)"
	}
	return fmt.Sprintf(
		"pipeline{%s/%s attrs=%v current=%q last=%q}",
		p.AssetTypeId, p.ComponentId, p.FeatureAttributes,
		p.RunId.CurrentRun, p.RunId.LastRun,
	)
}

// fields of a pipeline record which an update operation may touch.
//
// Identity, run handles and run timestamps are owned by the lifecycle
// manager and are not updatable from outside.
type PipelineAttributes struct {
	FeatureAttributes []string
	DataThreshold     *int
	RunFrequency      *RunFrequency
}

var (
	ErrMissing       = errors.New("missing record")
	ErrAlreadyExists = errors.New("record already exists")
)
