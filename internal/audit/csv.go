package audit

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

var csvHeader = []string{"occurred_at", "request_id", "actor_id", "action", "entity", "entity_id", "meta"}

// WriteCSV renders rows for download.
func WriteCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		actor := ""
		if row.ActorID != 0 {
			actor = strconv.FormatInt(row.ActorID, 10)
		}
		record := []string{row.At.UTC().Format(time.RFC3339), row.RequestID, actor, row.Action, row.Entity, row.EntityID, string(row.Meta)}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
