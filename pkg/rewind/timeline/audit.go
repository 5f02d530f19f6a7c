package timeline

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// auditHeaders are the CSV columns of the kept-event audit trail.
var auditHeaders = []string{
	"created_by_login",
	"created_by_user_id",
	"event_type",
	"item_type",
	"item_name",
	"item_id",
	"timestamp",
}

// auditWriter streams one CSV row per kept event.
type auditWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

func newAuditWriter(w io.Writer) *auditWriter {
	return &auditWriter{w: csv.NewWriter(w)}
}

func (a *auditWriter) write(ev types.Event) error {
	if !a.wroteHeader {
		if err := a.w.Write(auditHeaders); err != nil {
			return err
		}
		a.wroteHeader = true
	}
	return a.w.Write([]string{
		ev.CreatedBy.Login,
		ev.CreatedBy.ID,
		string(ev.Type),
		ev.Source.Type,
		ev.Source.Name,
		ev.Source.ID,
		ev.CreatedAt.Format(time.RFC3339),
	})
}

func (a *auditWriter) flush() error {
	a.w.Flush()
	return a.w.Error()
}
