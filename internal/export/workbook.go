// Package export builds the XLSX download of the conversation list.
package export

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"voice-agent-console/internal/api"
	"voice-agent-console/internal/logger"
	"voice-agent-console/internal/types"
)

const (
	SheetConversations = "Conversations"
	SheetSummary       = "Summary"

	snippetLen = 140
)

var header = []interface{}{
	"id", "created_at", "driver_name", "driver_phone", "load_number",
	"driver_status", "scenario", "transcript_snippet",
}

// Lister is the slice of the API facade used to page through conversations.
type Lister interface {
	ListConversations(ctx context.Context, f types.ConversationFilters, page, limit int) (types.ConversationPage, error)
}

// Collect pages through the filtered conversation list until maxRows rows are
// gathered or the server runs out.
func Collect(ctx context.Context, l Lister, f types.ConversationFilters, maxRows int) ([]types.ConversationRecord, error) {
	out := []types.ConversationRecord{}
	limit := maxRows
	if limit > api.MaxPageLimit {
		limit = api.MaxPageLimit
	}
	for page := 1; len(out) < maxRows; page++ {
		p, err := l.ListConversations(ctx, f, page, limit)
		if err != nil {
			return nil, fmt.Errorf("collect page %d: %w", page, err)
		}
		out = append(out, p.Items...)
		if len(p.Items) == 0 || len(p.Items) < limit || (p.Total > 0 && len(out) >= p.Total) {
			break
		}
	}
	if len(out) > maxRows {
		out = out[:maxRows]
	}
	return out, nil
}

// WriteConversations renders rows plus a per-status and per-scenario summary
// sheet as an XLSX workbook.
func WriteConversations(w io.Writer, rows []types.ConversationRecord, log *logger.Logger) error {
	if log == nil {
		log = logger.Discard()
	}
	log = log.Component("export")

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetConversations); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetConversations, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(SheetConversations, "A1", "H1", bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	_ = f.SetColWidth(SheetConversations, "H", "H", 80)

	byStatus := map[string]int{}
	byScenario := map[string]int{}
	for i, c := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var name, phone string
		if c.Driver != nil {
			name, phone = c.Driver.Name, c.Driver.PhoneNumber
		}
		created := ""
		if !c.CreatedAt.IsZero() {
			created = c.CreatedAt.UTC().Format(time.RFC3339)
		}
		status := c.DriverStatus()
		row := []interface{}{
			string(c.ID), created, name, phone, c.LoadNumber,
			status, c.Scenario, c.Snippet(snippetLen),
		}
		if err := f.SetSheetRow(SheetConversations, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
		byStatus[labelOr(status)]++
		byScenario[labelOr(c.Scenario)]++
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	line := 1
	put := func(vals ...interface{}) error {
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		line++
		return f.SetSheetRow(SheetSummary, cell, &vals)
	}
	if err := put("total_conversations", len(rows)); err != nil {
		return err
	}
	for _, section := range []struct {
		title  string
		counts map[string]int
	}{{"driver_status", byStatus}, {"scenario", byScenario}} {
		line++
		if err := put(section.title, "count"); err != nil {
			return err
		}
		for _, k := range sortedKeys(section.counts) {
			if err := put(k, section.counts[k]); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	log.WithField("rows", len(rows)).Info("conversation workbook written")
	return nil
}

func labelOr(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
