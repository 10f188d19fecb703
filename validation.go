package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// PasswordPolicy mirrors the identity provider's password complexity rules so
// weak passwords are rejected before any provider call.
type PasswordPolicy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// DefaultPasswordPolicy matches the default user pool policy.
var DefaultPasswordPolicy = PasswordPolicy{
	MinLength:     8,
	RequireUpper:  true,
	RequireLower:  true,
	RequireDigit:  true,
	RequireSymbol: true,
}

// Check returns an error listing every rule the password misses.
func (p PasswordPolicy) Check(password string) error {
	var upper, lower, digit, symbol bool
	for _, r := range password {
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

	var missing []string
	if len([]rune(password)) < p.MinLength {
		missing = append(missing, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	if p.RequireUpper && !upper {
		missing = append(missing, "an uppercase letter")
	}
	if p.RequireLower && !lower {
		missing = append(missing, "a lowercase letter")
	}
	if p.RequireDigit && !digit {
		missing = append(missing, "a number")
	}
	if p.RequireSymbol && !symbol {
		missing = append(missing, "a symbol")
	}

	if len(missing) == 0 {
		return nil
	}

	return goerrors.New("password must contain "+strings.Join(missing, ", "), goerrors.CategoryValidation).
		WithTextCode(TextCodeWeakPassword).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"missing": missing})
}

// Rule adapts the policy to an ozzo validation rule.
func (p PasswordPolicy) Rule() validation.Rule {
	return validation.By(func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		if err := p.Check(s); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return fmt.Errorf("%s", richErr.Message)
			}
			return err
		}
		return nil
	})
}

// ValidateWith runs the sign up rules against policy.
func (in SignUpInput) ValidateWith(policy PasswordPolicy) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.Length(1, 128)),
		validation.Field(&in.Password, validation.Required, policy.Rule()),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Name, validation.Length(0, 256)),
	)
}

// Validate runs the sign up rules against DefaultPasswordPolicy.
func (in SignUpInput) Validate() error {
	return in.ValidateWith(DefaultPasswordPolicy)
}

func invalidInput(message string, err error) error {
	richErr := goerrors.Wrap(err, goerrors.CategoryValidation, message).
		WithTextCode(TextCodeInvalidInput).
		WithCode(goerrors.CodeBadRequest)

	if fields, ok := err.(validation.Errors); ok {
		details := make(map[string]any, len(fields))
		for name, ferr := range fields {
			details[name] = ferr.Error()
		}
		richErr = richErr.WithMetadata(map[string]any{"fields": details})
	}

	return richErr
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalidInput(name+" is required", validation.Errors{name: errors.New("cannot be blank")})
	}
	return nil
}
