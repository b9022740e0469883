package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []RosterRow {
	return []RosterRow{
		{StudentID: "S003", StudentName: "Cara", Status: "not_assigned"},
		{StudentID: "S002", StudentName: "Bo", CourseID: "CS101", SectionCode: "B", Day: "Tue", Start: "10:00", End: "11:00", Room: "R2", Status: "assigned"},
		{StudentID: "S001", StudentName: "Ada", CourseID: "CS101", SectionCode: "A", Day: "Mon", Start: "08:00", End: "09:00", Room: "R1", Status: "assigned"},
	}
}

func TestSortRowsPutsUnassignedLast(t *testing.T) {
	rows := sampleRows()
	SortRows(rows)

	assert.Equal(t, []string{"S001", "S002", "S003"}, []string{rows[0].StudentID, rows[1].StudentID, rows[2].StudentID})
}

func TestCSVExporterRender(t *testing.T) {
	rows := sampleRows()
	SortRows(rows)

	out, err := NewCSVExporter().Render(rows)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, RosterHeaders, records[0])
	assert.Equal(t, []string{"S001", "Ada", "CS101", "A", "Mon", "08:00", "09:00", "R1", "assigned"}, records[1])
	assert.Equal(t, "not_assigned", records[3][8])
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render("Spring roster", sampleRows(), []SectionFill{
		{CourseID: "CS101", SectionCode: "A", Capacity: 30, Assigned: 1},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
