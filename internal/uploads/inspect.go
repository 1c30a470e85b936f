package uploads

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/ledongthuc/pdf"

	"cardscan-backend/internal/shared/util"
)

// Inspection summarizes what an uploaded file is. PDF and DOCX files are kept
// but never processed by the card pipeline.
type Inspection struct {
	Displayable bool
	PageCount   int
	Width       int
	Height      int
	Warning     string
}

// Inspect looks at an upload without rejecting it; problems become a warning.
func Inspect(name string, data []byte) Inspection {
	switch util.Ext(name) {
	case ".pdf":
		pages, err := pdfPageCount(data)
		if err != nil {
			return Inspection{Warning: "pdf could not be parsed: " + err.Error()}
		}
		return Inspection{PageCount: pages}
	case ".docx":
		if err := checkDOCX(data); err != nil {
			return Inspection{Warning: "docx could not be parsed: " + err.Error()}
		}
		return Inspection{}
	default:
		in := Inspection{Displayable: util.IsImageName(name)}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			in.Warning = "not a decodable image: " + err.Error()
			return in
		}
		in.Width, in.Height = cfg.Width, cfg.Height
		return in
	}
}

func pdfPageCount(data []byte) (pages int, err error) {
	if len(data) == 0 {
		return 0, errors.New("empty pdf data")
	}
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = 0, fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}

func checkDOCX(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return nil
		}
	}
	return errors.New("document.xml file not found")
}
