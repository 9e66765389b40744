package models

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	DefaultUploadMaxBytes = 5 * 1024 * 1024
	thumbnailWidth        = 200
)

// Attachment is an uploaded binary kept inline as a data URL.
type Attachment struct {
	Id         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Size       int       `json:"size"`
	Data       string    `json:"data"`
	Thumbnail  string    `json:"thumbnail,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Bytes decodes the attachment's data URL.
func (a Attachment) Bytes() ([]byte, error) {
	_, payload, ok := strings.Cut(a.Data, ";base64,")
	if !ok {
		return nil, fmt.Errorf("attachment %s: not a base64 data url", a.Id)
	}
	return base64.StdEncoding.DecodeString(payload)
}

// UploadPolicy limits what an upload may be.
type UploadPolicy struct {
	MaxBytes     int
	AllowedTypes map[string]bool
	Thumbnail    bool
}

var (
	// additional documents
	DocumentUploadPolicy = UploadPolicy{
		MaxBytes: DefaultUploadMaxBytes,
		AllowedTypes: map[string]bool{
			"application/pdf":          true,
			"application/msword":       true,
			"application/vnd.ms-excel": true,
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
			"image/jpeg": true,
			"image/png":  true,
		},
	}
	CertificateUploadPolicy = UploadPolicy{
		MaxBytes: DefaultUploadMaxBytes,
		AllowedTypes: map[string]bool{
			"application/pdf": true,
			"image/jpeg":      true,
			"image/png":       true,
		},
	}
	ChequeUploadPolicy = UploadPolicy{
		MaxBytes: DefaultUploadMaxBytes,
		AllowedTypes: map[string]bool{
			"image/jpeg":      true,
			"image/png":       true,
			"application/pdf": true,
		},
		Thumbnail: true,
	}
)

// WithMaxBytes returns a copy of the policy with another size limit; n <= 0 keeps the current one.
func (p UploadPolicy) WithMaxBytes(n int) UploadPolicy {
	if n > 0 {
		p.MaxBytes = n
	}
	return p
}

// DetectMimeType sniffs content, using the file extension to tell office formats apart.
func DetectMimeType(name string, content []byte) string {
	mimeType := http.DetectContentType(content)
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	ext := strings.ToLower(filepath.Ext(name))

	// Manually set MIME type for office files
	switch mimeType {
	case "application/zip":
		switch ext {
		case ".docx":
			mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		case ".xlsx":
			mimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
	case "application/octet-stream":
		switch ext {
		case ".doc":
			mimeType = "application/msword"
		case ".xls":
			mimeType = "application/vnd.ms-excel"
		}
	}
	return mimeType
}

func humanLimit(n int) string {
	if n%(1024*1024) == 0 {
		return fmt.Sprintf("%dMB", n/(1024*1024))
	}
	if n%1024 == 0 {
		return fmt.Sprintf("%dKB", n/1024)
	}
	return fmt.Sprintf("%d bytes", n)
}

// NewAttachment checks content against policy and encodes it for storage.
func NewAttachment(name string, content []byte, policy UploadPolicy) (Attachment, error) {
	maxBytes := policy.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	if len(content) > maxBytes {
		return Attachment{}, fmt.Errorf("file size exceeds %s limit: %w", humanLimit(maxBytes), utils.ErrFileTooLarge)
	}
	if len(content) == 0 {
		return Attachment{}, fmt.Errorf("empty file: %w", utils.ErrUnsupportedFileType)
	}

	mimeType := DetectMimeType(name, content)
	if !policy.AllowedTypes[mimeType] {
		return Attachment{}, fmt.Errorf("unsupported file type %s: %w", mimeType, utils.ErrUnsupportedFileType)
	}

	a := Attachment{
		Id:         uuid.NewString(),
		Name:       strings.TrimSpace(filepath.Base(name)),
		Type:       mimeType,
		Size:       len(content),
		Data:       "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(content),
		UploadedAt: time.Now().UTC(),
	}
	if policy.Thumbnail && strings.HasPrefix(mimeType, "image/") {
		thumb, err := createThumbnail(content)
		if err != nil {
			return Attachment{}, fmt.Errorf("failed to generate thumbnail: %w", err)
		}
		a.Thumbnail = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(thumb)
	}
	return a, nil
}

func createThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumbnail := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
