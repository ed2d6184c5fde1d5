package audit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/veilcampus/warden/moderation/authority"
)

// ExportColumns is the fixed export column order. Consumers depend on it; do not reorder without
// bumping ExportVersion.
var ExportColumns = []string{
	"id",
	"timestamp",
	"moderator_id",
	"action",
	"target_user_hash",
	"target_content_id",
	"reason",
	"metadata",
}

const ExportVersion = 1

// FormatAuditLog renders entries as comma separated text with a header row. Fields containing
// the delimiter, a quote, or a line break are quoted with internal quotes doubled.
func FormatAuditLog(actions []*ModAction) string {
	var buf bytes.Buffer
	// writing to a bytes.Buffer cannot fail
	_ = WriteAuditLog(&buf, actions)
	return buf.String()
}

// WriteAuditLog streams the same format as FormatAuditLog.
func WriteAuditLog(w io.Writer, actions []*ModAction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return err
	}
	for _, a := range actions {
		if a == nil {
			continue
		}
		row := []string{
			a.ID,
			a.CreatedAt.UTC().Format(time.RFC3339Nano),
			a.ModeratorID,
			string(a.ActionType),
			a.TargetUserHash,
			a.TargetContentID,
			a.Reason,
			a.Metadata.Text(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseAuditLog reads an export produced by FormatAuditLog back into entries.
func ParseAuditLog(r io.Reader) ([]*ModAction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(ExportColumns)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("audit export is missing its header row")
	}
	if strings.Join(rows[0], ",") != strings.Join(ExportColumns, ",") {
		return nil, fmt.Errorf("unexpected audit export header: %v", rows[0])
	}
	out := make([]*ModAction, 0, len(rows)-1)
	for i, row := range rows[1:] {
		ts, err := time.Parse(time.RFC3339Nano, row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: timestamp: %w", i+1, err)
		}
		meta, err := ParseMetadata(row[7])
		if err != nil {
			return nil, fmt.Errorf("row %d: metadata: %w", i+1, err)
		}
		out = append(out, &ModAction{
			ID:              row[0],
			CreatedAt:       ts,
			ModeratorID:     row[2],
			ActionType:      authority.Action(row[3]),
			TargetUserHash:  row[4],
			TargetContentID: row[5],
			Reason:          row[6],
			Metadata:        meta,
		})
	}
	return out, nil
}
