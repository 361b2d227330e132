package auth

import (
	"errors"
	"regexp"

	"AldebaranChat/internal/backend"

	"github.com/go-playground/validator/v10"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// SignupForm is what the signup screen collects
type SignupForm struct {
	UserName        string `validate:"required"`
	Email           string `validate:"required,signup_email"`
	Password        string `validate:"required"`
	ConfirmPassword string `validate:"eqfield=Password"`
}

// Request drops the confirmation field
func (f SignupForm) Request() backend.CreateUserRequest {
	return backend.CreateUserRequest{
		UserName: f.UserName,
		Email:    f.Email,
		Password: f.Password,
	}
}

// ValidationError is a form problem caught before anything is sent
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var ErrInvalidForm = errors.New("invalid form")

func (e *ValidationError) Unwrap() error {
	return ErrInvalidForm
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("signup_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks the form the way the signup screen does
func (f SignupForm) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	// the email format problem wins over missing fields
	for _, fe := range verrs {
		if fe.Field() == "Email" && fe.Tag() == "signup_email" {
			return &ValidationError{Field: "Email", Message: "Please input a valid email address"}
		}
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: fe.Field(), Message: "Please check required field"}
	case "eqfield":
		return &ValidationError{Field: fe.Field(), Message: "Passwords do not match"}
	}
	return &ValidationError{Field: fe.Field(), Message: "Invalid " + fe.Field()}
}
