package inference

import (
	"errors"
	"fmt"
	"math"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/domain/artifacts"
)

var ErrUnknownAssetID = errors.New("asset id is not in the trained schema")

// MissingSentinel marks a feature the record does not carry.
// The imputer model was trained to recognize this value.
const MissingSentinel = -999

// Encode renders a record as model input, following the trained schema:
// one value per schema feature (MissingSentinel where the record has no
// numeric value), and a one-hot tail selecting the record's asset id.
//
// # Returns
//
// - []float64: feature values, len(schema.Features) long
//
// - []float64: one-hot asset id, len(schema.AssetIds) long
//
// - error: ErrUnknownAssetID when the record's asset id is not in the schema.
// Scoring an asset the model has never seen would silently misattribute, so
// this is a hard failure.
func Encode(schema artifacts.FeatureSchema, record domain.AssetRecord) ([]float64, []float64, error) {
	features := make([]float64, len(schema.Features))
	for i, attr := range schema.Features {
		features[i] = MissingSentinel
		if v, ok := record.Payload[attr]; ok {
			if num, ok := v.AsNumber(); ok {
				features[i] = num
			}
		}
	}

	onehot := make([]float64, len(schema.AssetIds))
	found := false
	for i, id := range schema.AssetIds {
		if id == record.AssetId {
			onehot[i] = 1
			found = true
		}
	}
	if !found {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownAssetID, record.AssetId)
	}

	return features, onehot, nil
}

// DecodeContributions turns the attribution model's output into contributing
// attributes of the record.
//
// Attributes the record does not carry cannot be shown as contributors, but
// their share of the anomaly must not vanish either: it is redistributed
// evenly over the attributes the record does carry. Percentages are rounded
// to 2 decimals.
func DecodeContributions(
	names []string, percentages []float64, record domain.AssetRecord,
) []domain.ContributingAttribute {
	type present struct {
		name  string
		value float64
		pct   float64
	}

	carried := []present{}
	absentShare := 0.0
	for i, name := range names {
		pct := 0.0
		if i < len(percentages) {
			pct = percentages[i]
		}

		v, ok := record.Payload[name]
		if !ok {
			absentShare += pct
			continue
		}
		num, ok := v.AsNumber()
		if !ok {
			absentShare += pct
			continue
		}
		carried = append(carried, present{name: name, value: num, pct: pct})
	}

	if len(carried) == 0 {
		return []domain.ContributingAttribute{}
	}

	share := absentShare / float64(len(carried))
	contributions := make([]domain.ContributingAttribute, 0, len(carried))
	for _, p := range carried {
		contributions = append(contributions, domain.ContributingAttribute{
			Attribute:              p.name,
			Value:                  p.value,
			ContributionPercentage: round2(p.pct + share),
		})
	}
	return contributions
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
