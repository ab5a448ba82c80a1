package service

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// AttachmentPolicy bounds inline attachments.
type AttachmentPolicy struct {
	MaxBytes int64
	Allowed  []string
}

// Normalize checks the attachment and fills in its MIME type from the
// decoded bytes when the client did not send one. A nil attachment is valid.
func (p AttachmentPolicy) Normalize(att *models.Attachment) error {
	if att == nil {
		return nil
	}
	att.Name = strings.TrimSpace(att.Name)
	if att.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "attachment name is required")
	}

	data, err := base64.StdEncoding.DecodeString(att.Data)
	if err != nil {
		return validationError(err, "attachment data must be base64")
	}
	if len(data) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "attachment is empty")
	}
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment exceeds %d bytes", p.MaxBytes))
	}

	if att.MimeType == "" {
		att.MimeType = mimetype.Detect(data).String()
	}
	if len(p.Allowed) > 0 && !mimetype.EqualsAny(att.MimeType, p.Allowed...) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment type %s is not allowed", att.MimeType))
	}
	return nil
}
