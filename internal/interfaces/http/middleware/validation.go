package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/marketplace/returns/internal/interfaces/http/dto"
)

// RequestIDKey is the header, and gin context key, carrying the request id
const RequestIDKey = "X-Request-ID"

// messages by validator tag; %s is replaced with the tag parameter
var tagMessages = map[string]string{
	"required": "This field is required",
	"uuid":     "Invalid UUID format",
	"oneof":    "Must be one of: %s",
	"datetime": "Must be a date formatted as %s",
	"gt":       "Must be greater than %s",
	"gte":      "Must be at least %s",
	"dive":     "Invalid list entry",
}

// SetupValidator makes field errors report json names, falling back to form
// names for query structs
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(fieldName)
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return ""
}

// FormatValidationErrors turns a binding error into a BAD_REQUEST response.
// Only validator failures carry per-field details.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return dto.NewValidationErrorResponse("Malformed request: "+err.Error(), requestID, nil)
	}

	details := make([]dto.ValidationDetail, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes the 400 for a failed ShouldBind call
func HandleValidationError(c *gin.Context, err error) {
	requestID := c.GetString("request_id")
	if requestID == "" {
		requestID = c.GetHeader(RequestIDKey)
	}
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, requestID))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		msg := "Must be " + bound + " " + fe.Param()
		if fe.Kind() == reflect.String {
			msg += " characters"
		} else if fe.Kind() == reflect.Slice {
			msg += " items"
		}
		return msg
	}
	if tmpl, ok := tagMessages[fe.Tag()]; ok {
		return strings.Replace(tmpl, "%s", fe.Param(), 1)
	}
	return "Invalid value"
}
