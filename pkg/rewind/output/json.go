package output

import (
	"bytes"
	"encoding/json"
)

// JSONFormatter formats the result as a single indented JSON object,
// for machine consumption and archival next to the run snapshot.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}
