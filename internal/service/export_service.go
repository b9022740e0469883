package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/section-allocator/internal/models"
	appErrors "github.com/noah-isme/section-allocator/pkg/errors"
	"github.com/noah-isme/section-allocator/pkg/export"
)

// Roster export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type csvRenderer interface {
	Render(rows []export.RosterRow) ([]byte, error)
}

type pdfRenderer interface {
	Render(title string, rows []export.RosterRow, fills []export.SectionFill) ([]byte, error)
}

// ExportFile is a rendered roster ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the current roster.
type ExportService struct {
	snapshots snapshotReader
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(snapshots snapshotReader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{snapshots: snapshots, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Roster renders the latest assignment of every student in format.
func (s *ExportService) Roster(ctx context.Context, format string) (*ExportFile, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	snap, err := s.snapshots.Load(ctx, models.SnapshotScope{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	rows, fills := buildRoster(snap)

	stamp := s.now().UTC()
	name := fmt.Sprintf("roster-%s.%s", stamp.Format("20060102-150405"), format)

	var (
		data        []byte
		contentType string
	)
	switch format {
	case ExportFormatPDF:
		data, err = s.pdf.Render(fmt.Sprintf("Section roster %s", stamp.Format("2006-01-02 15:04 MST")), rows, fills)
		contentType = "application/pdf"
	default:
		data, err = s.csv.Render(rows)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	s.logger.Info("roster exported", zap.String("format", format), zap.Int("rows", len(rows)))
	return &ExportFile{Filename: name, ContentType: contentType, Data: data}, nil
}

func buildRoster(snap *models.Snapshot) ([]export.RosterRow, []export.SectionFill) {
	names := make(map[string]string, len(snap.Students))
	for _, st := range snap.Students {
		names[st.ID] = st.FullName
	}
	sections := make(map[string]models.Section, len(snap.Sections))
	for _, sec := range snap.Sections {
		sections[sec.ID] = sec
	}

	assigned := make(map[string]int)
	rows := make([]export.RosterRow, 0, len(snap.Current))
	for studentID, a := range snap.Current {
		row := export.RosterRow{StudentID: studentID, StudentName: names[studentID], Status: string(a.Status)}
		if a.IsAssigned() {
			sec, ok := sections[*a.SectionID]
			if ok {
				row.CourseID = sec.CourseID
				row.SectionCode = sec.Code
				row.Day = sec.Day
				row.Start = sec.StartTime
				row.End = sec.EndTime
				row.Room = sec.Room
			}
			assigned[*a.SectionID]++
		}
		rows = append(rows, row)
	}
	export.SortRows(rows)

	fills := make([]export.SectionFill, 0, len(snap.Sections))
	for _, sec := range snap.Sections {
		fills = append(fills, export.SectionFill{CourseID: sec.CourseID, SectionCode: sec.Code, Capacity: sec.Capacity, Assigned: assigned[sec.ID]})
	}
	sort.SliceStable(fills, func(i, j int) bool { return fills[i].Label() < fills[j].Label() })
	return rows, fills
}
