package artifacts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/modelyard/modelyard/pkg/domain/artifacts"
	mock_artifacts "github.com/modelyard/modelyard/pkg/domain/artifacts/mock"
	"github.com/modelyard/modelyard/pkg/utils/cmp"
)

func TestLoad(t *testing.T) {
	schemaJson := `{"features": ["pressure", "temp"], "assetIds": ["a-1", "a-2"]}`

	t.Run("it should open the four models and the schema from the artifact directory", func(t *testing.T) {
		registry := mock_artifacts.NewRegistry()
		registry.Impl.Open = func(ctx context.Context, bucket, path string) (artifacts.TensorModel, error) {
			return mock_artifacts.NewTensorModel(), nil
		}
		blobs := mock_artifacts.NewBlobReader()
		blobs.Impl.ReadText = func(ctx context.Context, bucket, path string) (string, error) {
			return schemaJson, nil
		}

		set, err := artifacts.Load(context.Background(), registry, blobs, "pump-station")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if set.Imputer == nil || set.Scaler == nil || set.Autoencoder == nil || set.Attribution == nil {
			t.Error("every model of the set should be opened")
		}
		if !cmp.SliceEq(set.Schema.Features, []string{"pressure", "temp"}) {
			t.Errorf("features: got %v", set.Schema.Features)
		}
		if !cmp.SliceEq(set.Schema.AssetIds, []string{"a-1", "a-2"}) {
			t.Errorf("asset ids: got %v", set.Schema.AssetIds)
		}

		const dir = "outbox/pump-station/anomaly-detection-artifacts"
		wantModels := []mock_artifacts.BlobKey{
			{Bucket: artifacts.Bucket, Path: dir + "/imputer.onnx"},
			{Bucket: artifacts.Bucket, Path: dir + "/scaler.onnx"},
			{Bucket: artifacts.Bucket, Path: dir + "/ad-autoencoder.onnx"},
			{Bucket: artifacts.Bucket, Path: dir + "/get_anomaly_labels_and_score.onnx"},
		}
		if !cmp.SliceEq(registry.Calls.Open, wantModels) {
			t.Errorf("opened models: got %v, want %v", registry.Calls.Open, wantModels)
		}
		wantBlobs := []mock_artifacts.BlobKey{
			{Bucket: artifacts.Bucket, Path: dir + "/features.json"},
		}
		if !cmp.SliceEq(blobs.Calls.ReadText, wantBlobs) {
			t.Errorf("read blobs: got %v, want %v", blobs.Calls.ReadText, wantBlobs)
		}
	})

	t.Run("when a model is missing, it should return ErrArtifactsNotReady", func(t *testing.T) {
		registry := mock_artifacts.NewRegistry()
		registry.Impl.Open = func(ctx context.Context, bucket, path string) (artifacts.TensorModel, error) {
			return nil, artifacts.ErrArtifactsNotReady
		}
		blobs := mock_artifacts.NewBlobReader()

		if _, err := artifacts.Load(
			context.Background(), registry, blobs, "pump-station",
		); !errors.Is(err, artifacts.ErrArtifactsNotReady) {
			t.Errorf("error: got %v, want ErrArtifactsNotReady", err)
		}
	})

	t.Run("when the schema has no features, it should return ErrArtifactsNotReady", func(t *testing.T) {
		registry := mock_artifacts.NewRegistry()
		registry.Impl.Open = func(ctx context.Context, bucket, path string) (artifacts.TensorModel, error) {
			return mock_artifacts.NewTensorModel(), nil
		}
		blobs := mock_artifacts.NewBlobReader()
		blobs.Impl.ReadText = func(ctx context.Context, bucket, path string) (string, error) {
			return `{"features": [], "assetIds": ["a-1"]}`, nil
		}

		if _, err := artifacts.Load(
			context.Background(), registry, blobs, "pump-station",
		); !errors.Is(err, artifacts.ErrArtifactsNotReady) {
			t.Errorf("error: got %v, want ErrArtifactsNotReady", err)
		}
	})

	t.Run("when the schema is not JSON, it should return an error", func(t *testing.T) {
		registry := mock_artifacts.NewRegistry()
		registry.Impl.Open = func(ctx context.Context, bucket, path string) (artifacts.TensorModel, error) {
			return mock_artifacts.NewTensorModel(), nil
		}
		blobs := mock_artifacts.NewBlobReader()
		blobs.Impl.ReadText = func(ctx context.Context, bucket, path string) (string, error) {
			return `not json`, nil
		}

		if _, err := artifacts.Load(
			context.Background(), registry, blobs, "pump-station",
		); err == nil {
			t.Error("error should be returned")
		}
	})
}
