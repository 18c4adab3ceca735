package dupescan

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	scan "github.com/Ramsey-B/fern/pkg/dupescan"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/progress"
)

var validate = validator.New()

// Register registers duplicate scan routes
func Register(g *echo.Group) {
	g.POST("/runs", StartScan)
	g.GET("/progress", GetProgress)
}

// StartScan launches a detached duplicate scan worker. The response is
// immediate: 202 with the run id, or 409 with the running scan's progress
// when the lock is already held.
func StartScan(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.StartScanRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, runner, err := ectoinject.GetContext[*scan.Runner](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	opts := scan.Options{
		Mode:     scan.Mode(req.Mode),
		AllPairs: req.AllPairs,
	}
	runID, err := runner.Start(ctx, opts)
	if err != nil {
		if scan.IsLockBusy(err) {
			return httperror.NewHTTPError(http.StatusConflict, err.Error())
		}
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"run_id":    runID,
			"mode":      req.Mode,
			"all_pairs": req.AllPairs,
		}).Info("Started duplicate scan")
	}

	return c.JSON(http.StatusAccepted, map[string]string{"run_id": runID})
}

// GetProgress returns the last known progress snapshot
func GetProgress(c echo.Context) error {
	ctx := c.Request().Context()

	_, bus, err := ectoinject.GetContext[*progress.Bus](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	last := bus.Last()
	if last == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "idle"})
	}
	return c.JSON(http.StatusOK, last)
}
