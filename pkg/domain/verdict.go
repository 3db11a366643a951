package domain

import "github.com/modelyard/modelyard/pkg/utils/cmp"

// Share of anomaly responsibility attributed to one input attribute.
type ContributingAttribute struct {
	Attribute              string  `json:"attribute"`
	Value                  float64 `json:"value"`
	ContributionPercentage float64 `json:"contribution_percentage"`
}

// Output of one anomaly inference.
type AnomalyVerdict struct {
	AssetId string `json:"assetId"`

	IsAnomaly bool `json:"is_anomaly"`

	// 0-100, rounded to 2 decimals.
	IsAnomalyPercentage float64 `json:"is_anomaly_percentage"`

	// attributes actually present in the input record,
	// in schema order, each with its (redistributed) contribution share.
	ContributingAttributes []ContributingAttribute `json:"contributing_attributes"`
}

func (v *AnomalyVerdict) Equal(o *AnomalyVerdict) bool {
	if (v == nil) || (o == nil) {
		return (v == nil) && (o == nil)
	}
	return v.AssetId == o.AssetId &&
		v.IsAnomaly == o.IsAnomaly &&
		v.IsAnomalyPercentage == o.IsAnomalyPercentage &&
		cmp.SliceEq(v.ContributingAttributes, o.ContributingAttributes)
}
