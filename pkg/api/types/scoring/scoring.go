package scoring

import (
	"github.com/modelyard/modelyard/pkg/domain"
)

// Request is the body of a score call: one asset record, and the entity
// attributes the caller wants results written to.
type Request struct {
	AssetTypeId      string                  `json:"assetTypeId"`
	AssetId          string                  `json:"assetId"`
	Payload          map[string]domain.Value `json:"payload"`
	ResultAttributes []string                `json:"resultAttributes"`
}

type Contribution struct {
	Attribute              string  `json:"attribute"`
	Value                  float64 `json:"value"`
	ContributionPercentage float64 `json:"contributionPercentage"`
}

type Response struct {
	AssetId             string         `json:"assetId"`
	IsAnomaly           bool           `json:"isAnomaly"`
	IsAnomalyPercentage float64        `json:"isAnomalyPercentage"`
	Contributions       []Contribution `json:"contributions,omitempty"`

	// result attribute values, keyed by the requested attributes
	Results map[string]string `json:"results"`
}

func ComposeResponse(verdict domain.AnomalyVerdict, results map[string]string) Response {
	contributions := make([]Contribution, 0, len(verdict.ContributingAttributes))
	for _, c := range verdict.ContributingAttributes {
		contributions = append(contributions, Contribution{
			Attribute:              c.Attribute,
			Value:                  c.Value,
			ContributionPercentage: c.ContributionPercentage,
		})
	}
	return Response{
		AssetId:             verdict.AssetId,
		IsAnomaly:           verdict.IsAnomaly,
		IsAnomalyPercentage: verdict.IsAnomalyPercentage,
		Contributions:       contributions,
		Results:             results,
	}
}
