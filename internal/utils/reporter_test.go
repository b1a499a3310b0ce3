package utils

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() *models.Summary {
	start := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	s := models.NewSummary(start)
	s.Record(models.NewSuccess("u1", models.KindStructured, nil))
	s.Record(models.NewSuccess("u2", models.KindLink, nil))
	s.Record(models.NewInsufficient("u3", "API 정보 부족"))
	s.Finish(start.Add(90 * time.Second))
	return s
}

func TestSaveSummary(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	path, err := SaveSummary(dir, sampleSummary())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SummaryFileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.EqualValues(t, 3, decoded["total"])
	assert.EqualValues(t, 2, decoded["success"])
	assert.EqualValues(t, 1, decoded["insufficient_info"])
	assert.Equal(t, "66.7%", decoded["success_rate"])
	assert.EqualValues(t, 90, decoded["duration_seconds"])
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, sampleSummary())

	out := buf.String()
	assert.Contains(t, out, "총 처리: 3")
	assert.Contains(t, out, "✅ 성공: 2 (66.7%)")
	assert.Contains(t, out, "   - 정보 부족: 1")
	assert.NotContains(t, out, "기타")
	assert.NotContains(t, out, "건너뜀")
}

func TestNewProgressBarTo(t *testing.T) {
	bar := NewProgressBarTo(io.Discard, 3, "크롤링")
	for i := 0; i < 3; i++ {
		require.NoError(t, bar.Add(1))
	}
	assert.True(t, bar.IsFinished())
}
