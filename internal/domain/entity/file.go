package entity

import "strings"

// UploadedFile is a document converted to a transport-safe form
type UploadedFile struct {
	EncodedData  string `json:"encodedData"` // base64, no data: prefix
	MimeType     string `json:"mimeType"`
	OriginalName string `json:"originalName"`
}

// IsPDF reports whether the document is a PDF
func (f UploadedFile) IsPDF() bool {
	return f.MimeType == "application/pdf"
}

// IsImage reports whether the document is an image
func (f UploadedFile) IsImage() bool {
	return strings.HasPrefix(f.MimeType, "image/")
}

// IsAcceptedMimeType reports whether the picker accepts the MIME type
func IsAcceptedMimeType(mimeType string) bool {
	return mimeType == "application/pdf" || strings.HasPrefix(mimeType, "image/")
}
