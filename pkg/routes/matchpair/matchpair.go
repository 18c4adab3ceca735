package matchpair

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/matchpair"
	"github.com/Ramsey-B/fern/pkg/models"
)

var validate = validator.New()

// Register registers match pair routes
func Register(g *echo.Group) {
	g.GET("", ListMatchPairs)
	g.GET("/pair", GetMatchPair)
	g.POST("/exclude", ExcludeMatchPair)
	g.POST("/conflict", ConflictMatchPair)
}

// ListMatchPairs lists pairs for review, most confident first
func ListMatchPairs(c echo.Context) error {
	ctx := c.Request().Context()

	status := c.QueryParam("status")
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = parsed
	}

	ctx, repo, err := ectoinject.GetContext[*matchpair.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	pairs, err := repo.List(ctx, repo.DB(), status, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, pairs)
}

// GetMatchPair gets a pair by its two person ids, in either order
func GetMatchPair(c echo.Context) error {
	ctx := c.Request().Context()

	aID := c.QueryParam("low_id")
	bID := c.QueryParam("high_id")
	if aID == "" || bID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "low_id and high_id query parameters are required")
	}

	ctx, repo, err := ectoinject.GetContext[*matchpair.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	pair, err := repo.Get(ctx, repo.DB(), aID, bID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, pair)
}

// ExcludeMatchPair marks a pair as reviewed and ruled out. The update runs
// under a brief shared table lock so it cannot interleave with a scan.
func ExcludeMatchPair(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.ExcludeMatchPairRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*matchpair.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	txCtx, tx, err := repo.DB().GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := repo.LockShare(txCtx, tx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to lock match pairs")
	}
	if err := repo.Exclude(txCtx, tx, req.LowID, req.HighID, req.Reason); err != nil {
		return err
	}
	if err := tx.Commit(txCtx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"low_id":  req.LowID,
			"high_id": req.HighID,
		}).Info("Excluded match pair")
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "excluded"})
}

// ConflictMatchPair records an identifier conflict between two people, also
// under a brief shared table lock
func ConflictMatchPair(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.ConflictMatchPairRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*matchpair.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	txCtx, tx, err := repo.DB().GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := repo.LockShare(txCtx, tx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to lock match pairs")
	}
	if err := repo.MarkConflict(txCtx, tx, req.LowID, req.HighID); err != nil {
		return err
	}
	if err := tx.Commit(txCtx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"low_id":  req.LowID,
			"high_id": req.HighID,
		}).Info("Marked match pair conflict")
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "conflict"})
}
