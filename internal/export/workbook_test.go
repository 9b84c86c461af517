package export

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"voice-agent-console/internal/logger"
	"voice-agent-console/internal/types"
)

func sampleRows() []types.ConversationRecord {
	return []types.ConversationRecord{
		{
			ID:                "12",
			CreatedAt:         types.Timestamp{Time: time.Date(2025, 12, 1, 9, 30, 0, 0, time.UTC)},
			LoadNumber:        "7891-B",
			Status:            "completed",
			Scenario:          "Normal Check-in",
			Transcript:        "Agent: hi\nDriver: driving now",
			StructuredPayload: map[string]any{"driver_status": "Driving"},
			Driver:            &types.Driver{Name: "Mike", PhoneNumber: "+15550001111"},
		},
		{
			ID:         "13",
			LoadNumber: "LDN-1",
			Status:     "completed",
			Scenario:   "Breakdown / Emergency",
			Transcript: strings.Repeat("x", 200),
		},
	}
}

func TestWriteConversations(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConversations(&buf, sampleRows(), logger.Discard()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetConversations, SheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(SheetConversations)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "transcript_snippet", rows[0][7])
	assert.Equal(t, []string{
		"12", "2025-12-01T09:30:00Z", "Mike", "+15550001111", "7891-B",
		"Driving", "Normal Check-in", "Agent: hi Driver: driving now",
	}, rows[1])
	assert.Equal(t, "", rows[2][2])
	assert.Equal(t, "completed", rows[2][5])
	assert.Equal(t, strings.Repeat("x", 140)+"…", rows[2][7])

	total, err := f.GetCellValue(SheetSummary, "B1")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
	title, _ := f.GetCellValue(SheetSummary, "A3")
	assert.Equal(t, "driver_status", title)
	first, _ := f.GetCellValue(SheetSummary, "A4")
	assert.Equal(t, "Driving", first)
}

type pagedLister struct {
	total int
	calls []int
	fail  error
}

func (p *pagedLister) ListConversations(_ context.Context, _ types.ConversationFilters, page, limit int) (types.ConversationPage, error) {
	p.calls = append(p.calls, limit)
	if p.fail != nil {
		return types.ConversationPage{}, p.fail
	}
	start := (page - 1) * limit
	var items []types.ConversationRecord
	for i := start; i < start+limit && i < p.total; i++ {
		items = append(items, types.ConversationRecord{ID: types.ID(strconv.Itoa(i))})
	}
	return types.ConversationPage{Items: items, Page: page, Limit: limit, Total: p.total}, nil
}

func TestCollect(t *testing.T) {
	l := &pagedLister{total: 450}
	got, err := Collect(context.Background(), l, types.ConversationFilters{}, 5000)
	require.NoError(t, err)
	assert.Len(t, got, 450)
	assert.Equal(t, []int{200, 200, 200}, l.calls)

	l = &pagedLister{total: 450}
	got, err = Collect(context.Background(), l, types.ConversationFilters{}, 250)
	require.NoError(t, err)
	assert.Len(t, got, 250)
	assert.Equal(t, []int{200, 200}, l.calls)
}

func TestCollectError(t *testing.T) {
	_, err := Collect(context.Background(), &pagedLister{fail: errors.New("down")}, types.ConversationFilters{}, 10)
	assert.ErrorContains(t, err, "down")
}
