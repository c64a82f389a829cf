package uploads

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/errors"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/receipts"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/storage"
)

type PresignRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	ExpenseRef  string `json:"expense_ref"`
}

type PresignResponse struct {
	UploadURL string            `json:"uploadUrl"`
	FormData  map[string]string `json:"fields"`
	Key       string            `json:"key"`
}

// FileConstraint bounds what the signed POST policy will accept. The
// storage provider enforces it, not us; we only refuse to sign.
type FileConstraint struct {
	MaxSize          int64
	AllowedMimeTypes []string
}

// ReceiptConstraint covers the formats plan administrators accept as
// reimbursement evidence.
func ReceiptConstraint() FileConstraint {
	return FileConstraint{
		MaxSize: 10 << 20, // 10 MiB
		AllowedMimeTypes: []string{
			"image/jpeg",
			"image/png",
			"image/webp",
			"application/pdf",
		},
	}
}

type service struct {
	storage               storage.Provider
	constraint            FileConstraint
	fileExtensionMappings map[string]string
	validationWindowHours int
}

func NewUploadService(storage storage.Provider, validationWindowHours int, constraint FileConstraint) *service {

	fileExtensionMappings := map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".pdf":  "application/pdf",
	}

	return &service{
		storage:               storage,
		constraint:            constraint,
		fileExtensionMappings: fileExtensionMappings,
		validationWindowHours: validationWindowHours,
	}
}

const bucket = storage.BucketIncoming

func (s *service) PresignUpload(ctx context.Context, accountID string, req PresignRequest) (*PresignResponse, error) {
	// 1. The ref becomes a path segment of the object key
	if req.ExpenseRef == "" {
		return nil, errors.New(errors.ErrInvalidInput, "expense_ref is required", nil)
	}
	if strings.ContainsAny(req.ExpenseRef, "/\\") {
		return nil, errors.New(errors.ErrInvalidInput, "expense_ref must not contain path separators", nil)
	}

	ext := strings.ToLower(filepath.Ext(req.Filename))
	if ext == "" {
		return nil, errors.New(errors.ErrInvalidInput, "Filename must have an extension", nil)
	}

	// 2. Validate Mime Type
	mimeType := req.ContentType
	if mimeType == "" {
		mimeType = s.fileExtensionMappings[ext]
	}
	if !slices.Contains(s.constraint.AllowedMimeTypes, mimeType) {
		return nil, errors.New(errors.ErrInvalidInput, fmt.Sprintf("File type '%s' is not allowed for receipt uploads", mimeType), nil)
	}

	// 3. Generate Secure Path (Key)
	key := receipts.BuildKey(accountID, req.ExpenseRef, req.Filename, ext)

	// 4. Ask Provider for the POST Policy
	config := storage.UploadConfig{
		Bucket:      bucket,
		Key:         key,
		ContentType: mimeType,
		MaxFileSize: s.constraint.MaxSize,
		Expiry:      time.Duration(s.validationWindowHours) * time.Hour,
	}

	url, formData, err := s.storage.GenerateUploadURL(ctx, config)
	if err != nil {
		return nil, errors.New(errors.ErrInternal, "Failed to generate upload signature", err)
	}

	return &PresignResponse{
		UploadURL: url,
		FormData:  formData,
		Key:       key,
	}, nil
}
