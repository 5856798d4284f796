package server

import (
	"errors"
	"net/http"
	"strings"

	authdomain "github.com/chrisfit/storefront/internal/auth/domain"
	"github.com/chrisfit/storefront/internal/authorization"
	mediadomain "github.com/chrisfit/storefront/internal/media/domain"
	productdomain "github.com/chrisfit/storefront/internal/product/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// validationSentinels are reported as 400 with their text as the code.
var validationSentinels = []error{
	ErrInvalidRequest,
	authdomain.ErrWeakPassword,
	productdomain.ErrInvalidID,
	productdomain.ErrInvalidCode,
	productdomain.ErrInvalidName,
	productdomain.ErrInvalidPrice,
	productdomain.ErrInvalidPromoPrice,
	productdomain.ErrInvalidSizes,
	productdomain.ErrInvalidColors,
	productdomain.ErrPromoPriceRequired,
	productdomain.ErrProductInactive,
	mediadomain.ErrInvalidMediaCount,
	mediadomain.ErrInvalidProductID,
	mediadomain.ErrUnsupportedMedia,
	mediadomain.ErrMediaTooLarge,
	mediadomain.ErrVideoTooLong,
}

var validationMessages = map[string]string{
	"invalid_request":        "invalid request",
	"promo_price_required":   "promo price must be greater than zero to enable the promotion",
	"product_inactive":       "product is inactive",
	"invalid_media_count":    "a product holds at most 5 images or videos",
	"invalid_media_type":     "unsupported media type",
	"invalid_media_size":     "file is too large",
	"invalid_video_duration": "video is too long",
	"weak_password":          "password must be at least 8 characters",
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if sentinel := validationSentinel(err); sentinel != nil {
		code := sentinel.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code, err),
				},
			},
		}
	}

	var uploadErr *mediadomain.UploadError
	var reconcileErr *mediadomain.ReconcileError
	var stageErr *productdomain.StageError

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrUnauthenticated),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "please log in",
		}
	case errors.Is(err, authdomain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "invalid email or password",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, productdomain.ErrConfirmationRequired):
		return http.StatusConflict, errorPayload{
			Type:    "confirmation_required",
			Message: "confirm the deletion to continue",
		}
	case errors.Is(err, authdomain.ErrUserExists):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many attempts, try again later",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.As(err, &uploadErr):
		return http.StatusBadGateway, errorPayload{
			Type:    "upload_error",
			Message: uploadErr.Error(),
		}
	case errors.Is(err, mediadomain.ErrStorageNotConfigured):
		return http.StatusBadGateway, errorPayload{
			Type:    "upload_error",
			Message: "media storage is not configured",
		}
	case errors.As(err, &reconcileErr):
		return http.StatusBadGateway, errorPayload{
			Type:    "reconciliation_error",
			Message: reconcileErr.Error(),
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.As(err, &stageErr) && stageErr.Stage == "persist":
		return http.StatusInternalServerError, errorPayload{
			Type:    "product_error",
			Message: stageErr.Err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger a low-cardinality type and code.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return "server", code
	}
	return "client", code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationSentinel(err error) error {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "promo_price_required":
		return "promo_price"
	case "product_inactive":
		return "is_active"
	case "weak_password":
		return "new_password"
	case "invalid_media_count", "invalid_media_type", "invalid_media_size", "invalid_video_duration":
		return "media"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

// validationErrorMessage prefers the detail a caller attached with
// fmt.Errorf("%w: detail", sentinel).
func validationErrorMessage(code string, err error) string {
	if _, detail, ok := strings.Cut(err.Error(), code+": "); ok && strings.TrimSpace(detail) != "" {
		return strings.TrimSpace(detail)
	}
	if msg, ok := validationMessages[code]; ok {
		return msg
	}
	return "invalid value"
}
