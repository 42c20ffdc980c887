// Package export renders archived scoping sessions into spreadsheet form
// for handoff outside the system.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/scopewell/scope-copilot/internal/model"
)

// WriteSessions writes one workbook with a summary sheet plus one
// per-session field sheet, and saves it to path.
func WriteSessions(path string, sessions []model.ArchivedSession) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Sessions")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	header := summary.AddRow()
	for _, h := range []string{"Thread", "Platform", "State", "Turns", "Archived"} {
		header.AddCell().SetString(h)
	}
	for _, s := range sessions {
		row := summary.AddRow()
		row.AddCell().SetString(s.ThreadID)
		row.AddCell().SetString(s.Platform)
		row.AddCell().SetString(string(s.State))
		row.AddCell().SetInt(s.TurnCount)
		row.AddCell().SetString(s.ArchivedAt.Format("2006-01-02 15:04"))
	}

	for _, s := range sessions {
		if err := addFieldSheet(f, s); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addFieldSheet(f *xlsx.File, s model.ArchivedSession) error {
	sheet, err := f.AddSheet(sheetName(s.ThreadID))
	if err != nil {
		return eris.Wrapf(err, "export: add sheet for %s", s.ThreadID)
	}

	header := sheet.AddRow()
	for _, h := range []string{"Field", "Value", "Confidence", "Provenance", "Turn"} {
		header.AddCell().SetString(h)
	}

	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := s.Fields[name]
		row := sheet.AddRow()
		row.AddCell().SetString(name)
		row.AddCell().SetString(renderCell(e.Value))
		row.AddCell().SetFloat(e.Confidence)
		row.AddCell().SetString(string(e.Provenance))
		row.AddCell().SetInt(e.TurnID)
	}
	return nil
}

// sheetName truncates to the 31-char sheet name limit.
func sheetName(threadID string) string {
	if len(threadID) > 31 {
		return threadID[:31]
	}
	return threadID
}

func renderCell(v any) string {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, ", ")
	default:
		return fmt.Sprintf("%v", t)
	}
}
