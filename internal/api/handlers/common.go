package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/api/middleware"
	"github.com/dealerops/incentive-engine/internal/api/response"
	"github.com/dealerops/incentive-engine/internal/metrickey"
	"github.com/dealerops/incentive-engine/internal/period"
	"github.com/dealerops/incentive-engine/internal/service"
)

// writeError maps service errors onto the response envelope.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, metrickey.ErrMalformedKey),
		errors.Is(err, period.ErrInvalidPeriod):
		response.BadRequest(c, err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, err.Error())
	default:
		slog.Default().Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()))
		_ = c.Error(err)
		response.InternalError(c, "internal error")
	}
}

// caller returns the authenticated user, writing a 401 when absent.
func caller(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user identity")
	}
	return id, ok
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, fmt.Sprintf("invalid %s format", name), nil)
		return uuid.Nil, false
	}
	return id, true
}

// listQuery reads a repeated or comma-separated query parameter.
func listQuery(c *gin.Context, name string) []string {
	var out []string
	for _, v := range c.QueryArray(name) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// storeIDs parses store_id; at least one is required.
func storeIDs(c *gin.Context) ([]uuid.UUID, bool) {
	raw := listQuery(c, "store_id")
	if len(raw) == 0 {
		response.BadRequest(c, "store_id is required", nil)
		return nil, false
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			response.BadRequest(c, "invalid store_id format", gin.H{"store_id": r})
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// maxMonths bounds a requested from/to range.
const maxMonths = 36

// monthRange expands from/to (YYYY-MM, inclusive). to defaults to from.
func monthRange(c *gin.Context) ([]string, bool) {
	from := c.Query("from")
	if from == "" {
		response.BadRequest(c, "from is required", nil)
		return nil, false
	}
	to := c.DefaultQuery("to", from)
	months, err := period.MonthRange(from, to)
	if err != nil {
		response.BadRequest(c, err.Error(), nil)
		return nil, false
	}
	if len(months) > maxMonths {
		response.BadRequest(c, fmt.Sprintf("month range exceeds %d months", maxMonths), nil)
		return nil, false
	}
	return months, true
}

// quarterYear parses the quarter and year query parameters.
func quarterYear(c *gin.Context) (int, int, bool) {
	quarter, err := strconv.Atoi(c.Query("quarter"))
	if err != nil {
		response.BadRequest(c, "quarter must be an integer 1-4", nil)
		return 0, 0, false
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.BadRequest(c, "year must be an integer", nil)
		return 0, 0, false
	}
	return quarter, year, true
}
