package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"Token", "Name", "Symptoms"},
		Rows: [][]string{
			{"CARDI-001", "Asha Rao", "chest pain, dizziness"},
			{"CARDI-002", "Vikram Shah"},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Token,Name,Symptoms\nCARDI-001,Asha Rao,\"chest pain, dizziness\"\nCARDI-002,Vikram Shah,\n", string(out))
}

func TestCSVExporterRejectsBadShape(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)

	_, err = NewCSVExporter().Render(Dataset{Headers: []string{"a"}, Rows: [][]string{{"1", "2"}}})
	assert.Error(t, err)
}

func TestCSVExporterNeutralizesFormulas(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"Name", "Symptoms"},
		Rows:    [][]string{{"=HYPERLINK(\"x\")", "-2 days fever"}, {"Ravi", "cough"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Name,Symptoms\n\"'=HYPERLINK(\"\"x\"\")\",'-2 days fever\nRavi,cough\n", string(out))
}

func TestCSVExporterOptions(t *testing.T) {
	out, err := NewCSVExporter(WithBOM(), WithCRLF()).Render(Dataset{
		Headers: []string{"Token"},
		Rows:    [][]string{{"CARDI-001"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "\xEF\xBB\xBFToken\r\nCARDI-001\r\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(Dataset{
		Title:   "Visits 2024-03-01",
		Headers: []string{"Token", "Name", "Department", "Status", "Time In", "Time Out"},
		Rows:    [][]string{{"CARDI-001", "Asha Rao", "Cardiology", "Completed", "2024-03-01 09:00:00", "2024-03-01 09:20:00"}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	empty, err := NewPDFExporter().Render(Dataset{Headers: []string{"Token"}})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(empty, []byte("%PDF")))
}

func TestPDFExporterRenderSlip(t *testing.T) {
	out, err := NewPDFExporter().RenderSlip(Slip{
		Clinic: "City Clinic", Token: "CARDI-001", Name: "Asha Rao",
		Department: "Cardiology", TimeIn: "2024-03-01 09:00:00",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().RenderSlip(Slip{})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 30))
	assert.Equal(t, "abcdefghij...", truncate("abcdefghijklmnopqrstuvwxyz", 30))
}
