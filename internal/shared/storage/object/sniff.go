package object

import (
	"bytes"
	"io"
	"net/http"
)

// SniffReader reads up to 512 bytes from r to detect the content type. The
// returned reader yields the full original stream.
func SniffReader(r io.Reader) (string, io.Reader, error) {
	var sniff [512]byte
	n, err := io.ReadFull(r, sniff[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head := append([]byte(nil), sniff[:n]...)
	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), r), nil
}
