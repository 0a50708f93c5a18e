package domain

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	UsernameMinLen = 3
	UsernameMaxLen = 32
	PasswordMinLen = 8
	// PasswordMaxLen is the bcrypt input limit in bytes.
	PasswordMaxLen = 72
	TaskTextMaxLen = 500
)

var (
	validate        *validator.Validate
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = validate.RegisterValidation("username", validateUsername)
	_ = validate.RegisterValidation("password", validatePassword)
}

// Registration is the input to Accounts.Register. Web forms bind into it directly.
type Registration struct {
	Username        string `form:"username" validate:"required,min=3,max=32,username"`
	Password        string `form:"password" validate:"required,min=8,max=72,password"`
	ConfirmPassword string `form:"confirmPassword" validate:"required,eqfield=Password"`
}

func validateUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

// validatePassword requires at least one upper, lower, digit and symbol.
func validatePassword(fl validator.FieldLevel) bool {
	var upper, lower, digit, symbol bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "username":
		return label + " may only contain letters, digits, '.', '_' and '-'"
	case "password":
		return label + " must contain an uppercase letter, a lowercase letter, a digit and a symbol"
	case "eqfield":
		return "Passwords do not match"
	default:
		return label + " is invalid"
	}
}

var fieldLabels = map[string]string{
	"username":        "Username",
	"password":        "Password",
	"confirmPassword": "Password confirmation",
	"text":            "Task text",
}
