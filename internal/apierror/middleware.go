package apierror

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ErrorHandler logs the last error attached to the context, at warn level
// for 4xx and error level for 5xx. The response itself is written by Abort,
// which attaches the error to c.Errors and then calls AbortWithStatusJSON;
// this middleware only observes and records, it never writes again.
func ErrorHandler(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		if appErr, ok := err.Err.(*AppError); ok {
			event := logger.Warn()
			if appErr.StatusCode >= 500 {
				event = logger.Error()
			}
			event.Str("code", appErr.Code).Str("details", appErr.Details).Msg(appErr.Message)
			return
		}

		logger.Error().Err(err.Err).Msg("unhandled error")
	}
}

// Recovery recovers from panics in downstream handlers and reports them as 500s.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("recovered from panic")
				c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "an unexpected error occurred"})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// Abort aborts the request with the given AppError, attaching it for ErrorHandler.
func Abort(c *gin.Context, err *AppError) {
	c.Error(err)
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}
