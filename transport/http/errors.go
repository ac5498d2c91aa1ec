package http

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/layer-3/gatekeeper/core"
)

// statusByKind maps core.Kind codes to HTTP status codes.
var statusByKind = map[string]int{
	"validation_error":    http.StatusBadRequest,
	"invalid_credentials": http.StatusUnauthorized,
	"challenge_not_found": http.StatusBadRequest,
	"challenge_expired":   http.StatusBadRequest,
	"invalid_signature":   http.StatusBadRequest,
	"claim_mismatch":      http.StatusUnauthorized,
	"malformed_token":     http.StatusUnauthorized,
	"identity_not_found":  http.StatusNotFound,
	"duplicate_identity":  http.StatusConflict,
	"store_unavailable":   http.StatusServiceUnavailable,
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  []core.FieldError `json:"fields,omitempty"`
}

func statusOf(err error) int {
	if status, ok := statusByKind[core.Kind(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func errorResponse(err error) ErrorResponse {
	kind := core.Kind(err)
	resp := ErrorResponse{Error: kind}

	switch kind {
	case "internal":
		resp.Message = "internal error"
	case "store_unavailable":
		resp.Message = core.ErrStoreUnavailable.Error()
	default:
		resp.Message = err.Error()
	}

	var verr core.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
		resp.Message = core.ErrValidation.Error()
	}
	return resp
}

// abortWithError writes err as JSON with its mapped status and stops the chain.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusOf(err), errorResponse(err))
}

// bindingError turns a gin binding failure into a core.ValidationError.
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.NewValidationError(core.FieldError{Field: "body", Reason: "must be a valid JSON object"})
	}

	fields := make([]core.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, core.FieldError{Field: fe.Field(), Reason: fe.Tag()})
	}
	return core.NewValidationError(fields...)
}

// jsonFieldName makes validator report fields by their JSON name.
func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}
