package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"shoppinglist/internal/models"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

const (
	FormatJSON = "json"
	FormatPDF  = "pdf"

	exportURLExpiry = 24 * time.Hour
)

// ErrStorageDisabled is returned by Publish when no object storage is configured.
var ErrStorageDisabled = errors.New("export storage is not configured")

// ErrUnsupportedFormat is returned for an export format other than json or pdf.
var ErrUnsupportedFormat = errors.New("unsupported export format")

type ExportService interface {
	Snapshot(ctx context.Context) (*models.ShoppingListSnapshot, error)
	RenderPDF(ctx context.Context) ([]byte, error)
	Publish(ctx context.Context, format string) (*models.ExportResult, error)
	StorageEnabled() bool
}

type exportService struct {
	itemService ShoppingItemService
	minioSvc    MinioService
	bucket      string
	now         func() time.Time
	newID       func() string
}

// NewExportService builds the export service. minioSvc may be nil, in which
// case rendering still works but Publish returns ErrStorageDisabled.
func NewExportService(itemService ShoppingItemService, minioSvc MinioService, bucket string) ExportService {
	return &exportService{
		itemService: itemService,
		minioSvc:    minioSvc,
		bucket:      bucket,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
	}
}

func (s *exportService) StorageEnabled() bool {
	return s.minioSvc != nil
}

func (s *exportService) Snapshot(ctx context.Context) (*models.ShoppingListSnapshot, error) {
	items, err := s.itemService.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items for export: %w", err)
	}
	categories, err := s.itemService.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories for export: %w", err)
	}
	total, err := s.itemService.TotalCost(ctx)
	if err != nil {
		return nil, fmt.Errorf("total cost for export: %w", err)
	}

	return &models.ShoppingListSnapshot{
		GeneratedAt: s.now(),
		ItemCount:   len(items),
		TotalCost:   models.Money(total),
		Categories:  categories,
		Items:       items,
	}, nil
}

func (s *exportService) RenderPDF(ctx context.Context) ([]byte, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return renderSnapshotPDF(snapshot)
}

// Publish renders the list in the given format, uploads it and returns a
// presigned download URL.
func (s *exportService) Publish(ctx context.Context, format string) (*models.ExportResult, error) {
	if !s.StorageEnabled() {
		return nil, ErrStorageDisabled
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatJSON
	}

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case FormatJSON:
		body, err = json.MarshalIndent(snapshot, "", "  ")
		contentType = "application/json"
	case FormatPDF:
		body, err = renderSnapshotPDF(snapshot)
		contentType = "application/pdf"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", format, err)
	}

	if err := s.minioSvc.EnsureBucketExists(ctx, s.bucket); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", s.bucket, err)
	}

	createdAt := snapshot.GeneratedAt
	objectKey := fmt.Sprintf("exports/%s/%s.%s", createdAt.Format("2006/01/02"), s.newID(), format)
	if err := s.minioSvc.UploadObject(ctx, s.bucket, objectKey, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
		return nil, fmt.Errorf("upload export %s: %w", objectKey, err)
	}

	url, err := s.minioSvc.GetPresignedURL(ctx, s.bucket, objectKey, exportURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign export %s: %w", objectKey, err)
	}

	log.Printf("Published %s export %s/%s (%d items)", format, s.bucket, objectKey, snapshot.ItemCount)

	return &models.ExportResult{
		Bucket:    s.bucket,
		ObjectKey: objectKey,
		URL:       url,
		Format:    format,
		CreatedAt: createdAt,
	}, nil
}

func renderSnapshotPDF(snapshot *models.ShoppingListSnapshot) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	marginX := 20.0
	marginY := 20.0
	pdf.SetMargins(marginX, marginY, marginX)
	pdf.SetAutoPageBreak(true, marginY)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(33, 37, 41)
	pdf.Cell(0, 10, "SHOPPING LIST")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", snapshot.GeneratedAt.Format("02-Jan-2006 15:04 MST")))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Items: %d", snapshot.ItemCount))
	pdf.Ln(10)

	headers := []string{"Item", "Category", "Qty", "Price", "Cost"}
	colWidths := []float64{60, 40, 15, 25, 30}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	for i, header := range headers {
		pdf.CellFormat(colWidths[i], 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	for _, item := range snapshot.Items {
		category := ""
		if item.Category != nil {
			category = *item.Category
		}
		pdf.CellFormat(colWidths[0], 8, tr(item.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths[1], 8, tr(category), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths[2], 8, strconv.Itoa(item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colWidths[3], 8, item.Price.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colWidths[4], 8, item.Cost().StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(8)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(colWidths[0]+colWidths[1]+colWidths[2]+colWidths[3], 8, "TOTAL:", "", 0, "R", false, 0, "")
	pdf.CellFormat(colWidths[4], 8, snapshot.TotalCost.String(), "", 0, "R", false, 0, "")
	pdf.Ln(8)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
