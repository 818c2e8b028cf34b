package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterTable() Table {
	return Table{
		Columns: []string{"Title", "Student", "Status"},
		Rows: [][]string{
			{"Chatbot for Enrolment", "Amina Yusuf", "approved"},
			{"Energy Forecasting", "Liam Chen", "pending"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	data, err := NewCSVExporter().Render(rosterTable())
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Equal(t, "Title,Student,Status", string(bytes.TrimSpace(lines[0])))
	assert.Contains(t, string(lines[1]), "Amina Yusuf")
}

func TestCSVExporterRejectsEmptyColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Table{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data, err := NewPDFExporter().Render(rosterTable(), "Project Roster")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestPDFExporterPadsShortRows(t *testing.T) {
	table := rosterTable()
	table.Rows = append(table.Rows, []string{"Only a title"})

	data, err := NewPDFExporter().Render(table, "Project Roster")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
