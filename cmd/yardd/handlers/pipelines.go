package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	apierr "github.com/modelyard/modelyard/pkg/api/types/errors"
	apipipelines "github.com/modelyard/modelyard/pkg/api/types/pipelines"
	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/domain/analytics"
	kdb "github.com/modelyard/modelyard/pkg/domain/pipeline/db"
)

// analytics rows younger than this survive an uninstall,
// so a re-install keeps its freshest telemetry.
const purgeWindow = 90 * time.Minute

func InstallPipelineHandler(dbpipeline kdb.PipelineInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()
		if strings.ToLower(req.Header.Get("content-type")) != "application/json" {
			return apierr.BadRequest(
				"unexpected content type. it shoule be application/json", nil,
			)
		}

		spec := new(apipipelines.InstallSpec)
		if err := json.NewDecoder(req.Body).Decode(spec); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}
		if spec.AssetTypeId == "" || spec.ComponentId == "" {
			return apierr.BadRequest("assetTypeId and componentId are required", nil)
		}

		frequency := domain.Never
		if spec.RunFrequency != "" {
			f, err := domain.AsRunFrequency(spec.RunFrequency)
			if err != nil {
				return apierr.BadRequest(err.Error(), err)
			}
			frequency = f
		}
		if spec.DataThreshold != nil && *spec.DataThreshold < 0 {
			return apierr.BadRequest("dataThreshold should not be negative", nil)
		}

		record := domain.PipelineRecord{
			AssetTypeId:       spec.AssetTypeId,
			ComponentId:       spec.ComponentId,
			FeatureAttributes: spec.FeatureAttributes,
			DataThreshold:     spec.DataThreshold,
			RunFrequency:      frequency,
		}

		if err := dbpipeline.Create(ctx, record); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return apierr.Conflict(
					"pipeline is already installed for the asset type & component",
					apierr.WithError(err),
				)
			}
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, apipipelines.ComposeDetail(record))
	}
}

func UpdatePipelineHandler(
	dbpipeline kdb.PipelineInterface, assetTypeKey string, componentKey string,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()
		assetTypeId := c.Param(assetTypeKey)
		componentId := c.Param(componentKey)

		spec := new(apipipelines.UpdateSpec)
		if err := json.NewDecoder(req.Body).Decode(spec); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}

		attributes := domain.PipelineAttributes{
			FeatureAttributes: spec.FeatureAttributes,
			DataThreshold:     spec.DataThreshold,
		}
		if spec.RunFrequency != nil {
			f, err := domain.AsRunFrequency(*spec.RunFrequency)
			if err != nil {
				return apierr.BadRequest(err.Error(), err)
			}
			attributes.RunFrequency = &f
		}
		if spec.DataThreshold != nil && *spec.DataThreshold < 0 {
			return apierr.BadRequest("dataThreshold should not be negative", nil)
		}

		if err := dbpipeline.Update(ctx, assetTypeId, componentId, attributes); err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return apierr.NotFound()
			}
			return apierr.InternalServerError(err)
		}

		record, err := dbpipeline.Get(ctx, assetTypeId, componentId)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, apipipelines.ComposeDetail(record))
	}
}

func GetPipelineHandler(
	dbpipeline kdb.PipelineInterface, assetTypeKey string, componentKey string,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		record, err := dbpipeline.Get(ctx, c.Param(assetTypeKey), c.Param(componentKey))
		if err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return apierr.NotFound()
			}
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, apipipelines.ComposeDetail(record))
	}
}

func FindPipelineHandler(dbpipeline kdb.PipelineInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		records, err := dbpipeline.GetAll(ctx)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		details := make([]apipipelines.Detail, 0, len(records))
		for _, r := range records {
			details = append(details, apipipelines.ComposeDetail(r))
		}
		return c.JSON(http.StatusOK, details)
	}
}

// UninstallPipelineHandler removes the record and purges the asset type's
// stale analytics rows, so a later re-install does not count them.
func UninstallPipelineHandler(
	dbpipeline kdb.PipelineInterface,
	warehouse analytics.Interface,
	assetTypeKey string, componentKey string,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		assetTypeId := c.Param(assetTypeKey)
		componentId := c.Param(componentKey)

		if _, err := dbpipeline.Get(ctx, assetTypeId, componentId); err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return apierr.NotFound()
			}
			return apierr.InternalServerError(err)
		}

		if err := dbpipeline.Delete(ctx, assetTypeId, componentId); err != nil {
			return apierr.InternalServerError(err)
		}

		if err := warehouse.Purge(ctx, assetTypeId, purgeWindow); err != nil {
			// the record is gone already; leave the rows for the ingest TTL
			c.Logger().Warnf("failed to purge analytics rows of %s: %s", assetTypeId, err)
		}

		return c.NoContent(http.StatusNoContent)
	}
}
