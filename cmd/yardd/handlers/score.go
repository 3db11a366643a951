package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/modelyard/modelyard/pkg/api/types/errors"
	apiscoring "github.com/modelyard/modelyard/pkg/api/types/scoring"
	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/domain/artifacts"
	"github.com/modelyard/modelyard/pkg/domain/inference"
)

// Scorer scores one asset record against the trained artifacts.
type Scorer interface {
	Score(
		ctx context.Context,
		componentId string,
		record domain.AssetRecord,
		settings inference.EntitySettings,
	) (domain.AnomalyVerdict, map[string]string, error)
}

func ScoreHandler(engine Scorer, componentKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()
		componentId := c.Param(componentKey)

		scoreReq := new(apiscoring.Request)
		if err := json.NewDecoder(req.Body).Decode(scoreReq); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}
		if scoreReq.AssetTypeId == "" || scoreReq.AssetId == "" {
			return apierr.BadRequest("assetTypeId and assetId are required", nil)
		}

		verdict, results, err := engine.Score(
			ctx,
			componentId,
			domain.AssetRecord{
				AssetTypeId: scoreReq.AssetTypeId,
				AssetId:     scoreReq.AssetId,
				Payload:     scoreReq.Payload,
			},
			inference.EntitySettings{ResultAttributes: scoreReq.ResultAttributes},
		)
		if err != nil {
			if errors.Is(err, inference.ErrUnknownAssetID) {
				return apierr.BadRequest(
					"the asset id is not covered by the trained artifacts", err,
				)
			}
			if errors.Is(err, artifacts.ErrArtifactsNotReady) {
				return apierr.NewErrorMessage(
					http.StatusServiceUnavailable,
					"trained artifacts are not ready for the asset type",
					apierr.WithAdvice("wait for a training pipeline run to finish"),
					apierr.WithError(err),
				)
			}
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, apiscoring.ComposeResponse(verdict, results))
	}
}
