package rut

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12.345.678-5", "123456785"},
		{"12345678-k", "12345678K"},
		{"  7.654.321-K ", "7654321K"},
		{"abc", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCheckDigit(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		// 8*2+7*3+6*4+5*5+4*6+3*7+2*2+1*3 = 138; 11 - 138%11 = 5
		{"12345678", "5"},
		{"11111111", "1"},
		{"22222222", "2"},
		// 11 - 34%11 = 10 maps to "K"
		{"11111112", "K"},
		{"1", "9"},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got, err := CheckDigit(tt.body)
			if err != nil {
				t.Fatalf("CheckDigit(%q) error = %v", tt.body, err)
			}
			if got != tt.want {
				t.Errorf("CheckDigit(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}

	if _, err := CheckDigit(""); err == nil {
		t.Error("CheckDigit(\"\") expected error")
	}
	if _, err := CheckDigit("12a4"); err == nil {
		t.Error("CheckDigit with letter expected error")
	}
}

func TestCheckDigit_ZeroAndK(t *testing.T) {
	// Search a small range for bodies that produce "0" and "K" and make sure
	// Validate agrees with CheckDigit for both.
	var sawZero, sawK bool
	for n := 1000000; n < 1000200; n++ {
		body := itoa(n)
		dv, err := CheckDigit(body)
		if err != nil {
			t.Fatalf("CheckDigit(%s) error = %v", body, err)
		}
		if dv == "0" {
			sawZero = true
		}
		if dv == "K" {
			sawK = true
			if !Validate(body + "-k") {
				t.Errorf("Validate(%s-k) = false, lower-case k must be accepted", body)
			}
		}
		if !Validate(body + dv) {
			t.Errorf("Validate(%s%s) = false", body, dv)
		}
	}
	if !sawZero || !sawK {
		t.Errorf("expected both 0 and K check digits in range (zero=%v, k=%v)", sawZero, sawK)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"12345678-5", true},
		{"12.345.678-5", true},
		{"12345678-9", false},
		{"11111111-1", true},
		{"11111111-2", false},
		{"5", false},
		{"", false},
		{"K", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Validate(tt.in); got != tt.want {
				t.Errorf("Validate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate_MutatedCheckDigit(t *testing.T) {
	for _, dv := range []string{"0", "1", "2", "3", "4", "6", "7", "8", "9", "K"} {
		if Validate("12345678-" + dv) {
			t.Errorf("Validate(12345678-%s) = true, want false", dv)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123456785", "12.345.678-5"},
		{"7654321k", "7.654.321-K"},
		{"1-9", "1-9"},
		{"9", "9"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Format(tt.in); got != tt.want {
				t.Errorf("Format(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestKey(t *testing.T) {
	if got := Key("12.345.678-K"); got != "12345678k" {
		t.Errorf("Key() = %q, want %q", got, "12345678k")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
