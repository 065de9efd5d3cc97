package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/syncqueue/common"
)

// ErrorHandler renders the last error recorded on the context. APIErrors keep
// their status, message and fields; anything else becomes an opaque 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		apiErr, ok := common.AsAPIError(err)
		if !ok {
			slog.Error("unhandled request error", "path", c.FullPath(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		if apiErr.Status >= http.StatusInternalServerError && apiErr.Err != nil {
			slog.Error(apiErr.Message, "path", c.FullPath(), "cause", apiErr.Err)
		}

		response := gin.H{"error": apiErr.Message}
		if apiErr.Fields != nil {
			response["fields"] = apiErr.Fields
		}
		c.JSON(apiErr.Status, response)
	}
}
