package util

import (
	"errors"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "card.jpg", want: "card.jpg"},
		{name: "trims", in: "  card.png ", want: "card.png"},
		{name: "slashes", in: "a/b\\c.jpg", want: "a_b_c.jpg"},
		{name: "traversal flattened", in: "../etc/passwd", want: ".._etc_passwd"},
		{name: "dots inside name", in: "J..Doe.jpg", want: "J..Doe.jpg"},
		{name: "dot", in: " . ", wantErr: true},
		{name: "dot dot", in: "..", wantErr: true},
		{name: "empty", in: "   ", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeFileName(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFileName) {
					t.Fatalf("expected ErrInvalidFileName, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsImageName(t *testing.T) {
	tests := map[string]bool{
		"card.jpg":   true,
		"CARD.JPEG":  true,
		"scan.png":   true,
		"doc.pdf":    false,
		"notes.docx": false,
		"noext":      false,
	}
	for name, want := range tests {
		if got := IsImageName(name); got != want {
			t.Fatalf("IsImageName(%q) = %v, want %v", name, got, want)
		}
	}
}
