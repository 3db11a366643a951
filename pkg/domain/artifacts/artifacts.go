// Package artifacts locates and opens the model artifacts a training run
// leaves behind for an asset type.
//
// A run writes its artifacts under
// `outbox/<asset type id>/anomaly-detection-artifacts/` in the components
// bucket: four tensor models and a `features.json` schema.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	xe "github.com/modelyard/modelyard/pkg/errors"
)

// ErrArtifactsNotReady is returned when an artifact of the set is missing,
// typically because no training run has completed yet for the asset type.
var ErrArtifactsNotReady = errors.New("model artifacts are not ready")

// Bucket holds all component artifacts.
const Bucket = "ia-components"

const (
	imputerFile     = "imputer.onnx"
	scalerFile      = "scaler.onnx"
	autoencoderFile = "ad-autoencoder.onnx"
	attributionFile = "get_anomaly_labels_and_score.onnx"
	schemaFile      = "features.json"
)

// Dir is the artifact directory of an asset type, within Bucket.
func Dir(assetTypeId string) string {
	return path.Join("outbox", assetTypeId, "anomaly-detection-artifacts")
}

// Tensor is a 2d batch of values, numeric or string.
// Exactly one of Num and Str is set.
type Tensor struct {
	Num [][]float64 `json:"num,omitempty"`
	Str [][]string  `json:"str,omitempty"`
}

func NumTensor(rows [][]float64) Tensor {
	return Tensor{Num: rows}
}

func StrTensor(rows [][]string) Tensor {
	return Tensor{Str: rows}
}

type TensorModel interface {
	// names of the model's input tensors, in declaration order
	Inputs() []string

	// names of the model's output tensors, in declaration order
	Outputs() []string

	// Exec runs the model over the named input tensors.
	//
	// # Returns
	//
	// - map[string]Tensor: output tensors, keyed by Outputs() names
	//
	// - error: errors from the execution backend.
	Exec(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error)
}

type Registry interface {
	// Open prepares the tensor model stored at bucket/path for execution.
	//
	// # Returns
	//
	// - TensorModel: handle to execute the model
	//
	// - error: ErrArtifactsNotReady when no such model is stored,
	// or errors from the backend.
	Open(ctx context.Context, bucket string, path string) (TensorModel, error)
}

type BlobReader interface {
	// ReadText reads the blob at bucket/path as text.
	//
	// # Returns
	//
	// - string: blob content
	//
	// - error: ErrArtifactsNotReady when no such blob is stored,
	// or errors from the backend.
	ReadText(ctx context.Context, bucket string, path string) (string, error)
}

// FeatureSchema is the content of features.json:
// which attributes the models were trained over, and which asset ids
// the one-hot tail of the feature vector stands for.
type FeatureSchema struct {
	Features []string `json:"features"`
	AssetIds []string `json:"assetIds"`
}

// Set is the full artifact set of one asset type.
type Set struct {
	Imputer     TensorModel
	Scaler      TensorModel
	Autoencoder TensorModel
	Attribution TensorModel
	Schema      FeatureSchema
}

// Load opens the artifact set of an asset type.
//
// # Returns
//
// - *Set: the opened set
//
// - error: ErrArtifactsNotReady when any artifact is missing or the schema
// is empty, or errors from the backends.
func Load(ctx context.Context, registry Registry, blobs BlobReader, assetTypeId string) (*Set, error) {
	dir := Dir(assetTypeId)

	set := &Set{}
	for _, m := range []struct {
		file string
		into *TensorModel
	}{
		{file: imputerFile, into: &set.Imputer},
		{file: scalerFile, into: &set.Scaler},
		{file: autoencoderFile, into: &set.Autoencoder},
		{file: attributionFile, into: &set.Attribution},
	} {
		model, err := registry.Open(ctx, Bucket, path.Join(dir, m.file))
		if err != nil {
			return nil, err
		}
		*m.into = model
	}

	raw, err := blobs.ReadText(ctx, Bucket, path.Join(dir, schemaFile))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &set.Schema); err != nil {
		return nil, xe.Wrap(err)
	}
	if len(set.Schema.Features) == 0 || len(set.Schema.AssetIds) == 0 {
		return nil, fmt.Errorf(
			"%w: features.json of %s is incomplete", ErrArtifactsNotReady, assetTypeId,
		)
	}

	return set, nil
}
