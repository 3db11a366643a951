// Package inference scores asset records against trained anomaly models.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/domain/artifacts"
	kdb "github.com/modelyard/modelyard/pkg/domain/pipeline/db"
	xe "github.com/modelyard/modelyard/pkg/errors"
)

// EntitySettings tells where scoring results are written on the asset entity:
// the first attribute receives the anomaly percentage, the second a
// pie-chart-ready attribute->share document.
type EntitySettings struct {
	ResultAttributes []string
}

// a fresh training run's artifacts are not picked up before this has passed
// since the run started, so that half-written artifact sets are not loaded.
const reinitDelay = time.Hour

type Engine struct {
	registry  artifacts.Registry
	blobs     artifacts.BlobReader
	pipelines kdb.PipelineInterface
	logger    *log.Logger
	now       func() time.Time

	mu   sync.Mutex
	sets map[string]*artifacts.Set
}

func NewEngine(
	registry artifacts.Registry,
	blobs artifacts.BlobReader,
	pipelines kdb.PipelineInterface,
	logger *log.Logger,
) *Engine {
	return &Engine{
		registry:  registry,
		blobs:     blobs,
		pipelines: pipelines,
		logger:    logger,
		now:       time.Now,
		sets:      map[string]*artifacts.Set{},
	}
}

// SetClock replaces the engine's clock. For testing the reinit gate.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// NoAnomalyMessage is written to the details attribute of a clean record.
const NoAnomalyMessage = "No Anomaly Detected"

// Score runs anomaly inference for one record.
//
// When fewer than two result attributes are configured there is nowhere to
// write results to, so Score answers an empty map without touching the models.
//
// # Returns
//
// - domain.AnomalyVerdict: the verdict
//
// - map[string]string: result attribute values to write on the asset entity
//
// - error: ErrUnknownAssetID, artifacts.ErrArtifactsNotReady, or errors from
// the model host.
func (e *Engine) Score(
	ctx context.Context, componentId string, record domain.AssetRecord, settings EntitySettings,
) (domain.AnomalyVerdict, map[string]string, error) {
	if len(settings.ResultAttributes) < 2 {
		return domain.AnomalyVerdict{}, map[string]string{}, nil
	}

	set, err := e.artifactsFor(ctx, componentId, record.AssetTypeId)
	if err != nil {
		return domain.AnomalyVerdict{}, nil, err
	}

	features, onehot, err := Encode(set.Schema, record)
	if err != nil {
		return domain.AnomalyVerdict{}, nil, err
	}

	// the imputer is trained on the full (features + asset ids) width;
	// only the feature columns continue to the scaler.
	imputerInput := append(append([]float64{}, features...), onehot...)
	imputed, err := execRow(ctx, set.Imputer, imputerInput)
	if err != nil {
		return domain.AnomalyVerdict{}, nil, err
	}
	if len(imputed) < len(set.Schema.Features) {
		return domain.AnomalyVerdict{}, nil, xe.Wrap(fmt.Errorf(
			"imputer output is narrower than the feature schema: %d < %d",
			len(imputed), len(set.Schema.Features),
		))
	}
	imputed = imputed[:len(set.Schema.Features)]

	scaled, err := execRow(ctx, set.Scaler, imputed)
	if err != nil {
		return domain.AnomalyVerdict{}, nil, err
	}

	modelInput := append(append([]float64{}, scaled...), onehot...)

	modelOutput, err := execRow(ctx, set.Autoencoder, modelInput)
	if err != nil {
		return domain.AnomalyVerdict{}, nil, err
	}

	verdict, err := e.attribute(ctx, set, record, modelInput, modelOutput)
	if err != nil {
		return domain.AnomalyVerdict{}, nil, err
	}

	return verdict, resultAttributes(settings, verdict), nil
}

// attribute runs the attribution helper model over the autoencoder's input
// and output, and decodes its four outputs: anomaly probability (percent),
// label, contributing attribute names, contributing attribute percentages.
func (e *Engine) attribute(
	ctx context.Context, set *artifacts.Set, record domain.AssetRecord,
	modelInput []float64, modelOutput []float64,
) (domain.AnomalyVerdict, error) {
	ins := set.Attribution.Inputs()
	outs := set.Attribution.Outputs()
	if len(ins) < 2 || len(outs) < 4 {
		return domain.AnomalyVerdict{}, xe.Wrap(fmt.Errorf(
			"attribution model has unexpected shape: %d inputs, %d outputs",
			len(ins), len(outs),
		))
	}

	result, err := set.Attribution.Exec(ctx, map[string]artifacts.Tensor{
		ins[0]: artifacts.NumTensor([][]float64{modelInput}),
		ins[1]: artifacts.NumTensor([][]float64{modelOutput}),
	})
	if err != nil {
		return domain.AnomalyVerdict{}, err
	}

	probability, err := scalarNum(result, outs[0])
	if err != nil {
		return domain.AnomalyVerdict{}, err
	}
	isAnomaly, err := labelIsAnomaly(result, outs[1])
	if err != nil {
		return domain.AnomalyVerdict{}, err
	}

	names := []string{}
	if t, ok := result[outs[2]]; ok && 0 < len(t.Str) {
		names = t.Str[0]
	}
	percentages := []float64{}
	if t, ok := result[outs[3]]; ok && 0 < len(t.Num) {
		percentages = t.Num[0]
	}

	verdict := domain.AnomalyVerdict{
		AssetId:             record.AssetId,
		IsAnomaly:           isAnomaly,
		IsAnomalyPercentage: round2(probability),
	}
	if isAnomaly {
		verdict.ContributingAttributes = DecodeContributions(names, percentages, record)
	}
	return verdict, nil
}

// resultAttributes renders the verdict into the entity's first two configured
// attributes: the anomaly percentage, and either a pie-chart-ready
// attribute->share mapping or the "No Anomaly Detected" literal.
func resultAttributes(settings EntitySettings, verdict domain.AnomalyVerdict) map[string]string {
	percentageAttr := settings.ResultAttributes[0]
	detailsAttr := settings.ResultAttributes[1]

	results := map[string]string{
		percentageAttr: strconv.FormatFloat(verdict.IsAnomalyPercentage, 'f', -1, 64),
	}
	if !verdict.IsAnomaly {
		results[detailsAttr] = NoAnomalyMessage
		return results
	}

	shares := make(map[string]float64, len(verdict.ContributingAttributes))
	for _, c := range verdict.ContributingAttributes {
		shares[c.Attribute] = c.ContributionPercentage
	}
	// a plain string->number map. marshalling cannot fail.
	details, _ := json.Marshal(shares)
	results[detailsAttr] = string(details)
	return results
}

// artifactsFor answers the artifact set of an asset type, loading it on first
// use and reloading it when a training run has asked for re-initialization.
//
// The reinit gate: the pipeline record exists, has completed a run, carries
// the init flag, and at least reinitDelay has passed since that run. The flag
// is cleared once the fresh set is loaded.
func (e *Engine) artifactsFor(ctx context.Context, componentId string, assetTypeId string) (*artifacts.Set, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cached, ok := e.sets[assetTypeId]
	reinit := e.shouldReinit(ctx, assetTypeId, componentId)
	if ok && !reinit {
		return cached, nil
	}

	set, err := artifacts.Load(ctx, e.registry, e.blobs, assetTypeId)
	if err != nil {
		if ok {
			// keep serving the old set; the flag stays for the next attempt
			e.logger.Printf("keeping stale artifacts of %s: reload failed: %s", assetTypeId, err)
			return cached, nil
		}
		return nil, err
	}
	e.sets[assetTypeId] = set

	if reinit {
		if err := e.pipelines.SetInitArtifacts(ctx, assetTypeId, componentId, false); err != nil {
			e.logger.Printf(
				"artifacts of %s reloaded, but clearing the init flag failed: %s",
				assetTypeId, err,
			)
		}
	}
	return set, nil
}

func (e *Engine) shouldReinit(ctx context.Context, assetTypeId string, componentId string) bool {
	record, err := e.pipelines.Get(ctx, assetTypeId, componentId)
	if err != nil {
		return false
	}
	if !record.InitArtifacts || record.LastPipelineRun == nil {
		return false
	}
	return reinitDelay <= e.now().Sub(*record.LastPipelineRun)
}

// execRow runs a single-input single-output model over one row.
func execRow(ctx context.Context, model artifacts.TensorModel, row []float64) ([]float64, error) {
	ins := model.Inputs()
	outs := model.Outputs()
	if len(ins) == 0 || len(outs) == 0 {
		return nil, xe.New("model has no declared inputs or outputs")
	}

	result, err := model.Exec(ctx, map[string]artifacts.Tensor{
		ins[0]: artifacts.NumTensor([][]float64{row}),
	})
	if err != nil {
		return nil, err
	}

	t, ok := result[outs[0]]
	if !ok || len(t.Num) == 0 {
		return nil, xe.Wrap(fmt.Errorf("model output %s is missing or not numeric", outs[0]))
	}
	return t.Num[0], nil
}

func scalarNum(result map[string]artifacts.Tensor, name string) (float64, error) {
	t, ok := result[name]
	if !ok || len(t.Num) == 0 || len(t.Num[0]) == 0 {
		return 0, xe.Wrap(fmt.Errorf("model output %s is missing or not numeric", name))
	}
	return t.Num[0][0], nil
}

// labelIsAnomaly reads the attribution label output. String-typed labels mean
// anomaly when "Anomaly", numeric labels when non-zero.
func labelIsAnomaly(result map[string]artifacts.Tensor, name string) (bool, error) {
	t, ok := result[name]
	if !ok {
		return false, xe.Wrap(fmt.Errorf("model output %s is missing", name))
	}
	if 0 < len(t.Str) && 0 < len(t.Str[0]) {
		return t.Str[0][0] == "Anomaly", nil
	}
	if 0 < len(t.Num) && 0 < len(t.Num[0]) {
		return t.Num[0][0] != 0, nil
	}
	return false, xe.Wrap(fmt.Errorf("model output %s is empty", name))
}
