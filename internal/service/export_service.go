package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
	"github.com/noah-isme/fyp-supervision-api/pkg/export"
)

type exportProjectRepo interface {
	List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectDetail, int, error)
}

// ExportFile is a rendered roster document ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the project roster as CSV or PDF for admins.
type ExportService struct {
	projects exportProjectRepo
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(projects exportProjectRepo, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		projects: projects,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

var rosterColumns = []string{"Title", "Student", "Supervisor", "Status", "Deadline", "Submitted"}

// ProjectRoster renders the filtered project roster in the requested
// format ("csv" or "pdf").
func (s *ExportService) ProjectRoster(ctx context.Context, filter models.ProjectFilter, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	// Exports cover the whole filtered roster, fetched page by page.
	filter.Page = 1
	filter.PageSize = 100
	var rows [][]string
	for {
		page, total, err := s.projects.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
		}
		for _, p := range page {
			rows = append(rows, rosterRow(p))
		}
		if len(rows) >= total || len(page) == 0 {
			break
		}
		filter.Page++
	}

	table := export.Table{Columns: rosterColumns, Rows: rows}
	stamp := time.Now().UTC().Format("20060102")

	switch format {
	case "csv":
		data, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("project-roster-%s.csv", stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	default:
		data, err := s.pdf.Render(table, "Project Roster")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("project-roster-%s.pdf", stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	}
}

// rosterRow flattens a project into cells ordered like rosterColumns.
func rosterRow(p models.ProjectDetail) []string {
	supervisor := ""
	if p.SupervisorName != nil {
		supervisor = *p.SupervisorName
	}
	deadline := ""
	if p.Deadline != nil {
		deadline = p.Deadline.Format("2006-01-02")
	}
	return []string{
		p.Title,
		p.StudentName,
		supervisor,
		string(p.Status),
		deadline,
		p.CreatedAt.Format("2006-01-02"),
	}
}
