package inspection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"acta-go/internal/fault"
	"acta-go/internal/rut"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	mustRegister(v, "rut", func(fl validator.FieldLevel) bool {
		return rut.Validate(fl.Field().String())
	})
	return v
}

// mustRegister panics when tag cannot be registered.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering %q validation: %v", tag, err))
	}
}

type contact struct {
	RUT   string `validate:"omitempty,rut"`
	Email string `validate:"omitempty,email"`
	Phone string `validate:"omitempty,e164"`
}

var contactMessages = map[string]string{
	"RUT":   "RUT del propietario inválido",
	"Email": "email del propietario inválido",
	"Phone": "teléfono del propietario inválido",
}

// ValidateContact checks the owner fields a patch sets. Empty fields pass;
// filled ones must be well formed.
func ValidateContact(p UnitPatch) error {
	c := contact{}
	if p.OwnerRUT != nil {
		c.RUT = strings.TrimSpace(*p.OwnerRUT)
	}
	if p.OwnerEmail != nil {
		c.Email = strings.TrimSpace(*p.OwnerEmail)
	}
	if p.OwnerPhone != nil {
		c.Phone = NormalizePhone(*p.OwnerPhone)
	}

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fault.Wrap(fault.Validation, err, "datos de contacto inválidos")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, contactMessages[fe.Field()])
	}
	return fault.New(fault.Validation, "%s", strings.Join(msgs, "; "))
}

// NormalizePhone strips separators and adds the Chilean country code to
// bare nine-digit mobile numbers.
func NormalizePhone(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(s))

	switch {
	case s == "":
		return ""
	case len(s) == 9 && s[0] == '9' && allDigits(s):
		return "+56" + s
	case len(s) == 11 && strings.HasPrefix(s, "56") && allDigits(s):
		return "+" + s
	default:
		return s
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isEmail reports whether s looks like an email login.
func isEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}
