package auth

import (
	"chat-relay/errors"
	stderrors "errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type SignupRequest struct {
	Username string `validate:"required,min=3,max=20"`
	Password string `validate:"required,min=8,max=72"`
}

// NormalizeUsername is applied before storing or comparing usernames.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidateSignup checks the account rules and reports the first broken one.
func ValidateSignup(req SignupRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !stderrors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return err
	}
	switch fieldErrors[0].Field() {
	case "Username":
		return errors.ErrInvalidUsername
	default:
		return errors.ErrInvalidPassword
	}
}

// ValidateStruct runs the tag rules of any request struct.
func ValidateStruct(s any) error {
	return validate.Struct(s)
}
