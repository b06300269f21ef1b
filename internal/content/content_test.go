package content

import (
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain text", "Hello World", "Hello World"},
		{"HTML tags", "Hello <b>World</b>", "Hello <b>World</b>"},
		{"Script tag", "<script>alert('xss')</script>Hello", "Hello"},
		{"Complex HTML", "<a href='javascript:alert(1)'>Click me</a>", "Click me"},
		{"Emoji", "salut 👋", "salut 👋"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.expected {
				t.Errorf("Sanitize() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestValidInlineImage(t *testing.T) {
	// 1x1 transparent PNG.
	png := "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"Valid PNG", png, true},
		{"Empty", "", false},
		{"Not a data URL", "https://example.com/cat.png", false},
		{"Wrong media type", "data:text/plain;base64,aGVsbG8=", false},
		{"Missing base64 marker", "data:image/png,rawbytes", false},
		{"Invalid base64", "data:image/png;base64,!!!", false},
		{"Text posing as image", "data:image/png;base64,aGVsbG8gd29ybGQ=", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidInlineImage(tt.input); got != tt.want {
				t.Errorf("ValidInlineImage() = %v, want %v", got, tt.want)
			}
		})
	}
}
