package relay

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/chat-relay/internal/domain"
	"github.com/go-playground/validator/v10"
)

// sessionIDPattern bounds caller-supplied session ids.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

var relayValidate *validator.Validate

func init() {
	relayValidate = validator.New()
	if err := relayValidate.RegisterValidation("sessionid", validateSessionID); err != nil {
		panic(fmt.Sprintf("failed to register sessionid validator: %v", err))
	}
}

func validateSessionID(fl validator.FieldLevel) bool {
	return sessionIDPattern.MatchString(fl.Field().String())
}

// validateStruct runs tag validation and converts failures into a
// validation error naming the first offending field.
func validateStruct(v any) error {
	err := relayValidate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "sessionid":
			return domain.Validation("sessionId must be 1-128 characters of letters, digits, '.', '_', ':' or '-'")
		case "max":
			return domain.Validation(fmt.Sprintf("%s exceeds maximum length of %s", field, fe.Param()))
		case "required":
			return domain.Validation(field + " is required")
		default:
			return domain.Validation(fmt.Sprintf("%s is invalid", field))
		}
	}
	return domain.NewError(domain.KindValidation, "invalid request", domain.WithCause(err))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func validateChat(req *ChatRequest) error {
	if strings.TrimSpace(req.Message) == "" && req.Attachment == nil {
		return domain.Validation("message or attachment is required")
	}
	return validateStruct(req)
}
