package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/joshu-sajeev/syncqueue/common"
)

var validate = validator.New()

// Bind decodes the JSON body into dest and validates it. On failure it
// records an APIError on c and returns false.
func Bind[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "invalid json: %v", err.Error()))
		return false
	}

	if err := ValidateStruct(dest); err != nil {
		c.Error(err)
		return false
	}

	return true
}

// ValidateStruct runs the validate tags of v and converts failures to an APIError.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return common.APIError{
			Status:  http.StatusBadRequest,
			Message: "validation failed",
			Fields:  FormatValidationErrors(err),
		}
	}
	return nil
}

func FormatValidationErrors(err error) map[string]any {
	fields := map[string]any{}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["_"] = err.Error()
		return fields
	}

	for _, e := range verrs {
		fields[e.Field()] = "failed " + e.Tag()
	}
	return fields
}
