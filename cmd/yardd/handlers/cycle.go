package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	apipipelines "github.com/modelyard/modelyard/pkg/api/types/pipelines"
)

// Cycler runs one pipeline lifecycle sweep on demand.
type Cycler interface {
	Cycle(ctx context.Context) (bool, error)
}

// CycleHandler triggers a sweep outside the recurring loop's cadence.
// The response is coarse on purpose; per-record trouble is in the server log.
func CycleHandler(manager Cycler) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if _, err := manager.Cycle(ctx); err != nil {
			c.Logger().Errorf("lifecycle cycle failed: %s", err)
			return c.JSON(
				http.StatusInternalServerError,
				apipipelines.CycleResult{Status: apipipelines.CycleFailed},
			)
		}
		return c.JSON(
			http.StatusOK,
			apipipelines.CycleResult{Status: apipipelines.CycleSucceeded},
		)
	}
}
