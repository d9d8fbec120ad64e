// Package rut parses and validates Chilean national identity numbers (RUT).
//
// A RUT is a numeric body followed by a check character computed with a
// modulus-11 weighted sum: weights 2,3,4,5,6,7 applied from the least
// significant digit, restarting at 2 after 7. A remainder-derived value of
// 11 maps to "0" and 10 maps to "K".
package rut

import (
	"fmt"
	"strconv"
	"strings"
)

// Clean strips every character except digits and K/k and upper-cases the K.
// "12.345.678-k" becomes "12345678K".
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'k' || r == 'K':
			b.WriteRune('K')
		}
	}
	return b.String()
}

// Key returns the lower-cased digits-and-k form used to compare identities
// coming from different sources (login input, assignee columns).
func Key(s string) string {
	return strings.ToLower(Clean(s))
}

// CheckDigit computes the check character for a numeric body.
func CheckDigit(body string) (string, error) {
	if body == "" {
		return "", fmt.Errorf("empty RUT body")
	}

	sum := 0
	mul := 2
	for i := len(body) - 1; i >= 0; i-- {
		d := body[i]
		if d < '0' || d > '9' {
			return "", fmt.Errorf("invalid digit %q in RUT body", d)
		}
		sum += int(d-'0') * mul
		if mul == 7 {
			mul = 2
		} else {
			mul++
		}
	}

	switch res := 11 - sum%11; res {
	case 11:
		return "0", nil
	case 10:
		return "K", nil
	default:
		return strconv.Itoa(res), nil
	}
}

// Split returns the body and check character of a RUT after cleaning.
func Split(s string) (body, dv string, ok bool) {
	clean := Clean(s)
	if len(clean) < 2 {
		return "", "", false
	}
	return clean[:len(clean)-1], clean[len(clean)-1:], true
}

// Validate reports whether s is a well-formed RUT with a matching check digit.
func Validate(s string) bool {
	body, dv, ok := Split(s)
	if !ok {
		return false
	}
	want, err := CheckDigit(body)
	if err != nil {
		return false
	}
	return want == dv
}

// Format renders a RUT as "12.345.678-5". Inputs that cannot be split are
// returned cleaned but otherwise unchanged.
func Format(s string) string {
	body, dv, ok := Split(s)
	if !ok {
		return Clean(s)
	}

	var groups []string
	for len(body) > 3 {
		groups = append([]string{body[len(body)-3:]}, groups...)
		body = body[:len(body)-3]
	}
	groups = append([]string{body}, groups...)
	return strings.Join(groups, ".") + "-" + dv
}
