package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/modelyard/modelyard/cmd/yardd/handlers"
	httptestutil "github.com/modelyard/modelyard/internal/testutils/http"
	apiscoring "github.com/modelyard/modelyard/pkg/api/types/scoring"
	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/domain/artifacts"
	"github.com/modelyard/modelyard/pkg/domain/inference"
	"github.com/modelyard/modelyard/pkg/utils/cmp"
)

type scoreArgs struct {
	ComponentId string
	Record      domain.AssetRecord
	Settings    inference.EntitySettings
}

type mockScorer struct {
	Impl struct {
		Score func(
			context.Context, string, domain.AssetRecord, inference.EntitySettings,
		) (domain.AnomalyVerdict, map[string]string, error)
	}
	Calls struct {
		Score []scoreArgs
	}
}

var _ handlers.Scorer = &mockScorer{}

func (m *mockScorer) Score(
	ctx context.Context,
	componentId string,
	record domain.AssetRecord,
	settings inference.EntitySettings,
) (domain.AnomalyVerdict, map[string]string, error) {
	m.Calls.Score = append(m.Calls.Score, scoreArgs{
		ComponentId: componentId, Record: record, Settings: settings,
	})
	if m.Impl.Score != nil {
		return m.Impl.Score(ctx, componentId, record, settings)
	}

	panic(errors.New("should not be called"))
}

func TestScore(t *testing.T) {
	requestBody := `{
	"assetTypeId": "pump-station",
	"assetId": "a-1",
	"payload": {"pressure": 4.5, "temp": 21},
	"resultAttributes": ["anomaly_status", "anomaly_details"]
}`

	t.Run("it scores the record and responds the verdict", func(t *testing.T) {
		verdict := domain.AnomalyVerdict{
			AssetId:             "a-1",
			IsAnomaly:           true,
			IsAnomalyPercentage: 87.46,
			ContributingAttributes: []domain.ContributingAttribute{
				{Attribute: "pressure", Value: 4.5, ContributionPercentage: 100},
			},
		}
		results := map[string]string{
			"anomaly_status":  "87.46",
			"anomaly_details": `{"pressure":100}`,
		}

		engine := &mockScorer{}
		engine.Impl.Score = func(
			ctx context.Context, componentId string, record domain.AssetRecord, settings inference.EntitySettings,
		) (domain.AnomalyVerdict, map[string]string, error) {
			return verdict, results, nil
		}

		e := echo.New()
		c, resp := httptestutil.Post(
			e, "/api/score/anomaly/", strings.NewReader(requestBody),
			httptestutil.ContentType("application/json"),
		)
		c.SetParamNames("component")
		c.SetParamValues("anomaly")

		if err := handlers.ScoreHandler(engine, "component")(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Code != http.StatusOK {
			t.Errorf("status: got %d, want %d", resp.Code, http.StatusOK)
		}

		if len(engine.Calls.Score) != 1 {
			t.Fatalf("Score: called %d times, want 1", len(engine.Calls.Score))
		}
		scored := engine.Calls.Score[0]
		if scored.ComponentId != "anomaly" {
			t.Errorf("component: got %s", scored.ComponentId)
		}
		if scored.Record.AssetTypeId != "pump-station" || scored.Record.AssetId != "a-1" {
			t.Errorf("record: got %+v", scored.Record)
		}
		if p, ok := scored.Record.Payload["pressure"].AsNumber(); !ok || p != 4.5 {
			t.Errorf("payload pressure: got %v", scored.Record.Payload["pressure"])
		}
		if !cmp.SliceEq(scored.Settings.ResultAttributes, []string{"anomaly_status", "anomaly_details"}) {
			t.Errorf("settings: got %v", scored.Settings.ResultAttributes)
		}

		var response apiscoring.Response
		if err := json.Unmarshal(resp.Body.Bytes(), &response); err != nil {
			t.Fatalf("response is not a scoring Response: %v", err)
		}
		if !response.IsAnomaly || response.IsAnomalyPercentage != 87.46 {
			t.Errorf("verdict: got %+v", response)
		}
		if !cmp.MapEq(response.Results, results) {
			t.Errorf("results: got %v, want %v", response.Results, results)
		}
	})

	type Then struct {
		Body     string
		ScoreErr error
		Status   int
	}
	for name, testcase := range map[string]Then{
		"it rejects an unknown asset id": {
			Body:     requestBody,
			ScoreErr: fmt.Errorf("%w: a-1", inference.ErrUnknownAssetID),
			Status:   http.StatusBadRequest,
		},
		"it responds 503 while artifacts are not ready": {
			Body:     requestBody,
			ScoreErr: fmt.Errorf("%w: pump-station", artifacts.ErrArtifactsNotReady),
			Status:   http.StatusServiceUnavailable,
		},
		"it responds 500 on other engine trouble": {
			Body:     requestBody,
			ScoreErr: errors.New("fake model host error"),
			Status:   http.StatusInternalServerError,
		},
		"it rejects a record without asset id": {
			Body:   `{"assetTypeId": "pump-station", "payload": {}}`,
			Status: http.StatusBadRequest,
		},
		"it rejects a broken body": {
			Body:   `{`,
			Status: http.StatusBadRequest,
		},
	} {
		t.Run(name, func(t *testing.T) {
			engine := &mockScorer{}
			engine.Impl.Score = func(
				ctx context.Context, componentId string, record domain.AssetRecord, settings inference.EntitySettings,
			) (domain.AnomalyVerdict, map[string]string, error) {
				return domain.AnomalyVerdict{}, nil, testcase.ScoreErr
			}

			e := echo.New()
			c, _ := httptestutil.Post(
				e, "/api/score/anomaly/", strings.NewReader(testcase.Body),
				httptestutil.ContentType("application/json"),
			)
			c.SetParamNames("component")
			c.SetParamValues("anomaly")

			err := handlers.ScoreHandler(engine, "component")(c)
			if actual := statusOf(err); actual != testcase.Status {
				t.Errorf("status: got %d (err: %v), want %d", actual, err, testcase.Status)
			}
			if testcase.ScoreErr == nil && len(engine.Calls.Score) != 0 {
				t.Error("a rejected request should not reach the engine")
			}
		})
	}
}
