package pipelines

import (
	"time"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/utils/cmp"
)

// Detail is a pipeline record as the API presents it.
type Detail struct {
	AssetTypeId       string     `json:"assetTypeId"`
	ComponentId       string     `json:"componentId"`
	FeatureAttributes []string   `json:"featureAttributes"`
	DataThreshold     *int       `json:"dataThreshold,omitempty"`
	RunFrequency      string     `json:"runFrequency"`
	CurrentRun        string     `json:"currentRun,omitempty"`
	LastRun           string     `json:"lastRun,omitempty"`
	LastPipelineRun   *time.Time `json:"lastPipelineRun,omitempty"`
	InitArtifacts     bool       `json:"initArtifacts"`
}

func ComposeDetail(r domain.PipelineRecord) Detail {
	return Detail{
		AssetTypeId:       r.AssetTypeId,
		ComponentId:       r.ComponentId,
		FeatureAttributes: r.FeatureAttributes,
		DataThreshold:     r.DataThreshold,
		RunFrequency:      r.RunFrequency.String(),
		CurrentRun:        r.RunId.CurrentRun,
		LastRun:           r.RunId.LastRun,
		LastPipelineRun:   r.LastPipelineRun,
		InitArtifacts:     r.InitArtifacts,
	}
}

func (d Detail) Equal(o Detail) bool {
	if (d.DataThreshold == nil) != (o.DataThreshold == nil) {
		return false
	}
	if d.DataThreshold != nil && *d.DataThreshold != *o.DataThreshold {
		return false
	}
	if (d.LastPipelineRun == nil) != (o.LastPipelineRun == nil) {
		return false
	}
	if d.LastPipelineRun != nil && !d.LastPipelineRun.Equal(*o.LastPipelineRun) {
		return false
	}
	return d.AssetTypeId == o.AssetTypeId &&
		d.ComponentId == o.ComponentId &&
		cmp.SliceEq(d.FeatureAttributes, o.FeatureAttributes) &&
		d.RunFrequency == o.RunFrequency &&
		d.CurrentRun == o.CurrentRun &&
		d.LastRun == o.LastRun &&
		d.InitArtifacts == o.InitArtifacts
}

// InstallSpec is the request body installing a pipeline.
type InstallSpec struct {
	AssetTypeId       string   `json:"assetTypeId"`
	ComponentId       string   `json:"componentId"`
	FeatureAttributes []string `json:"featureAttributes"`
	DataThreshold     *int     `json:"dataThreshold,omitempty"`
	RunFrequency      string   `json:"runFrequency,omitempty"`
}

// UpdateSpec is the request body updating pipeline attributes.
// nil fields are left as they are.
type UpdateSpec struct {
	FeatureAttributes []string `json:"featureAttributes,omitempty"`
	DataThreshold     *int     `json:"dataThreshold,omitempty"`
	RunFrequency      *string  `json:"runFrequency,omitempty"`
}

// CycleResult reports one lifecycle cycle run on request.
type CycleResult struct {
	Status string `json:"status"`
}

const (
	CycleSucceeded = "success"
	CycleFailed    = "failure"
)
