package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
	"github.com/noah-isme/lms-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type gradebookSource interface {
	Get(ctx context.Context, actor models.Actor, id string) (*models.Assignment, error)
	SubmissionsForAssignment(ctx context.Context, actor models.Actor, assignmentID string) ([]dto.GradeRow, error)
}

var gradebookHeaders = []string{"Student", "Email", "Status", "Submitted At", "Grade", "Feedback"}

// ExportConfig tunes export behaviour. ResultTTL is how long rendered files
// are kept; it never drops below the signer's link lifetime.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportFile is an opened export ready to stream.
type ExportFile struct {
	File        *os.File
	Name        string
	ContentType string
}

// ExportService renders gradebooks to files and hands out signed links.
type ExportService struct {
	gradebook gradebookSource
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(gradebook gradebookSource, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, metrics *MetricsService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if signer != nil && cfg.ResultTTL < signer.TTL() {
		cfg.ResultTTL = signer.TTL()
	}
	return &ExportService{
		gradebook: gradebook,
		storage:   files,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		signer:    signer,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Gradebook renders an assignment's submission rows and returns a signed
// download link for the stored file.
func (s *ExportService) Gradebook(ctx context.Context, actor models.Actor, assignmentID string, req dto.ExportRequest) (*dto.ExportResult, error) {
	format := export.Format(strings.ToLower(req.Format))
	if format == "" {
		format = export.FormatCSV
	}
	if format != export.FormatCSV && format != export.FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	assignment, err := s.gradebook.Get(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}
	rows, err := s.gradebook.SubmissionsForAssignment(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}

	dataset := gradebookDataset(rows)
	var payload []byte
	switch format {
	case export.FormatPDF:
		payload, err = s.pdf.Render(dataset, "Gradebook: "+assignment.Title)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, internalError(err, "failed to render gradebook")
	}

	id := uuid.NewString()
	filename := fmt.Sprintf("gradebook_%s_%s.%s", sanitizeFilename(assignment.Title), s.now().Format("20060102_150405"), format)
	relPath, err := s.storage.Save(id+"/"+filename, payload)
	if err != nil {
		return nil, internalError(err, "failed to store gradebook")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, internalError(err, "failed to sign download link")
	}
	s.metrics.RecordExport(string(format))

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &dto.ExportResult{
		ID:        id,
		Format:    string(format),
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// Open validates a download token and opens the file it points at.
func (s *ExportService) Open(token string) (*ExportFile, error) {
	signed, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrGone, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "download link not found")
	}
	file, err := s.storage.Open(signed.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrGone, "export file no longer available")
		}
		return nil, internalError(err, "failed to open export")
	}
	name := signed.Path
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	format := export.FormatCSV
	if strings.HasSuffix(name, ".pdf") {
		format = export.FormatPDF
	}
	return &ExportFile{File: file, Name: name, ContentType: format.ContentType()}, nil
}

// Cleanup removes stored exports older than the configured TTL.
func (s *ExportService) Cleanup() (int, error) {
	deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		return 0, err
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
	}
	return len(deleted), nil
}

func gradebookDataset(rows []dto.GradeRow) export.Dataset {
	data := export.Dataset{Headers: gradebookHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		record := map[string]string{
			"Student": row.StudentName,
			"Email":   row.StudentEmail,
			"Status":  "NOT SUBMITTED",
		}
		if sub := row.Submission; sub != nil {
			record["Status"] = string(sub.Status)
			record["Submitted At"] = sub.SubmittedAt.Format(time.RFC3339)
			if sub.Grade != nil {
				record["Grade"] = strconv.Itoa(*sub.Grade)
			}
			if sub.Feedback != nil {
				record["Feedback"] = *sub.Feedback
			}
		}
		data.Rows = append(data.Rows, record)
	}
	return data
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_", "\"", "")
	result := []rune(strings.ToLower(replacer.Replace(raw)))
	if len(result) > 60 {
		result = result[:60]
	}
	return string(result)
}
