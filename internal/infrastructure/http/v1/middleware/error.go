package middleware

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/verify"
	"sdmox/internal/infrastructure/http/v1/dto"
	"sdmox/pkg/logger"
)

// ErrorHandler renders errors recorded on the gin context as JSON.
// Internal causes are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Code:    apperror.CodeInternal,
				Message: "Internal server error",
				Details: map[string]any{"request_id": c.GetString("request_id")},
			})
			return
		}

		if appErr.Err != nil {
			logger.Error(c.Request.Context(), "request error",
				"code", appErr.Code,
				"stage", appErr.Stage,
				"cause", appErr.Err,
			)
		}

		body := dto.ErrorResponse{
			Code:    appErr.Code,
			Message: Describe(appErr),
			Stage:   string(appErr.Stage),
			Details: appErr.Details,
		}
		if appErr.Code == apperror.CodeInternal {
			body.Details = map[string]any{"request_id": c.GetString("request_id")}
		}
		c.JSON(appErr.HTTPStatus, body)
	}
}

// Describe renders an error as operator-facing text. The engine carries
// only structured details; wording lives here.
func Describe(appErr *apperror.AppError) string {
	switch appErr.Code {
	case apperror.CodeUnitCode:
		if v, ok := appErr.Details["violations"].([]string); ok && len(v) > 0 {
			return fmt.Sprintf("%s: %s", appErr.Message, strings.Join(v, ", "))
		}
	case apperror.CodeConvergence:
		if mm, ok := appErr.Details["mismatches"].([]verify.FieldMismatch); ok && len(mm) > 0 {
			parts := make([]string, 0, len(mm))
			for _, m := range mm {
				parts = append(parts, fmt.Sprintf("%s expected %q got %q", m.Field, m.Expected, m.Observed))
			}
			sort.Strings(parts)
			return fmt.Sprintf("%s: %s", appErr.Message, strings.Join(parts, "; "))
		}
	}
	return appErr.Message
}
