package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelyard/modelyard/pkg/domain/artifacts"
	"github.com/modelyard/modelyard/pkg/domain/artifacts/rest"
	"github.com/modelyard/modelyard/pkg/utils/cmp"
)

func TestClient_Open(t *testing.T) {
	t.Run("it should fetch model metadata and execute via the exec endpoint", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/models/ia-components/outbox/pump/scaler.onnx", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"inputs": ["float_input"], "outputs": ["variable"]}`))
		})
		var gotExecBody map[string]interface{}
		mux.HandleFunc("POST /v1/models/ia-components/outbox/pump/scaler.onnx:exec", func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			json.Unmarshal(raw, &gotExecBody)
			w.Write([]byte(`{"outputs": {"variable": {"num": [[0.5, 1.5]]}}}`))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		testee := rest.New(server.URL, 5*time.Second)

		model, err := testee.Open(context.Background(), "ia-components", "outbox/pump/scaler.onnx")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cmp.SliceEq(model.Inputs(), []string{"float_input"}) {
			t.Errorf("inputs: got %v", model.Inputs())
		}
		if !cmp.SliceEq(model.Outputs(), []string{"variable"}) {
			t.Errorf("outputs: got %v", model.Outputs())
		}

		out, err := model.Exec(context.Background(), map[string]artifacts.Tensor{
			"float_input": artifacts.NumTensor([][]float64{{1, 3}}),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		variable, ok := out["variable"]
		if !ok {
			t.Fatalf("output variable is missing: %v", out)
		}
		if len(variable.Num) != 1 || !cmp.SliceEq(variable.Num[0], []float64{0.5, 1.5}) {
			t.Errorf("output: got %v", variable.Num)
		}

		if gotExecBody == nil {
			t.Fatal("exec endpoint was not called with a body")
		}
	})

	t.Run("when the model is not stored, it should return ErrArtifactsNotReady", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		testee := rest.New(server.URL, 5*time.Second)

		if _, err := testee.Open(
			context.Background(), "ia-components", "outbox/pump/scaler.onnx",
		); !errors.Is(err, artifacts.ErrArtifactsNotReady) {
			t.Errorf("error: got %v, want ErrArtifactsNotReady", err)
		}
	})
}

func TestClient_ReadText(t *testing.T) {
	t.Run("it should read the blob content as text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/blobs/ia-components/outbox/pump/features.json" {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(`{"features": ["pressure"]}`))
		}))
		defer server.Close()

		testee := rest.New(server.URL, 5*time.Second)

		got, err := testee.ReadText(context.Background(), "ia-components", "outbox/pump/features.json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != `{"features": ["pressure"]}` {
			t.Errorf("content: got %s", got)
		}
	})

	t.Run("when the blob is not stored, it should return ErrArtifactsNotReady", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		testee := rest.New(server.URL, 5*time.Second)

		if _, err := testee.ReadText(
			context.Background(), "ia-components", "outbox/pump/features.json",
		); !errors.Is(err, artifacts.ErrArtifactsNotReady) {
			t.Errorf("error: got %v, want ErrArtifactsNotReady", err)
		}
	})
}
