package uploads

import (
	"archive/zip"
	"bytes"
	"image"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func docxBytes(t *testing.T, entry string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(entry)
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := f.Write([]byte("<w:document/>")); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestInspectImage(t *testing.T) {
	in := Inspect("card.png", pngBytes(t, 12, 7))
	if !in.Displayable || in.Width != 12 || in.Height != 7 || in.Warning != "" {
		t.Fatalf("unexpected inspection %+v", in)
	}

	bad := Inspect("card.jpg", []byte("text pretending to be a jpeg"))
	if !bad.Displayable || bad.Warning == "" {
		t.Fatalf("expected displayable with warning, got %+v", bad)
	}
}

func TestInspectDocuments(t *testing.T) {
	if in := Inspect("notes.docx", docxBytes(t, "word/document.xml")); in.Displayable || in.Warning != "" {
		t.Fatalf("unexpected docx inspection %+v", in)
	}
	if in := Inspect("notes.docx", docxBytes(t, "other.xml")); in.Warning == "" {
		t.Fatalf("expected warning for docx without document.xml")
	}
	if in := Inspect("scan.pdf", []byte("%PDF-1.4 truncated")); in.Displayable || in.PageCount != 0 || in.Warning == "" {
		t.Fatalf("expected parse warning for broken pdf, got %+v", in)
	}
}

func TestCheckName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{name: "card.JPG"},
		{name: "card.jpeg"},
		{name: "card.png"},
		{name: "deck.pdf"},
		{name: "notes.docx"},
		{name: "card.gif", wantErr: true},
		{name: "script.sh", wantErr: true},
		{name: "J..Doe.jpg"},
		{name: "../escape.png"},
		{name: "..", wantErr: true},
		{name: ".", wantErr: true},
		{name: "", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		_, err := CheckName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Fatalf("CheckName(%q) err=%v wantErr=%v", tt.name, err, tt.wantErr)
		}
	}
}
