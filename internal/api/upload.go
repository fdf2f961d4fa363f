package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxUploadSize is the largest receipt image accepted for upload
const MaxUploadSize = 10 << 20 // 10MB

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// Upload is a receipt image about to be sent to the backend
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ValidateUpload rejects files that are too large or not JPEG/PNG
// before any network call is made.
func ValidateUpload(u Upload) error {
	if u.Size > MaxUploadSize {
		return &ValidationError{Message: "File too large. Max size is 10MB"}
	}
	if !allowedTypes[normalizeContentType(u.ContentType)] {
		return &ValidationError{Message: "Invalid file type. Please upload JPG or PNG"}
	}
	return nil
}

// DetectContentType determines the MIME type of an upload from its file
// extension, falling back to sniffing the first bytes.
func DetectContentType(filename string, head []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	if len(head) == 0 {
		return "application/octet-stream"
	}
	return normalizeContentType(http.DetectContentType(head))
}

func normalizeContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return contentType
}
