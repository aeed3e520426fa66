package detect

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrNoImage is returned when the visualize endpoint answers without an image.
var ErrNoImage = errors.New("no image data received")

// Image is one encoded picture submitted to the detection service.
type Image struct {
	Data        []byte
	Filename    string
	ContentType string
}

// LabelID accepts the detector's label id whether it arrives as a JSON number
// or a string.
type LabelID string

// UnmarshalJSON implements json.Unmarshaler.
func (l *LabelID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = LabelID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("label_id must be a number or string: %w", err)
	}
	*l = LabelID(n.String())
	return nil
}

// Region is one detected area. BBox is kept raw so a malformed box only
// fails its own record.
type Region struct {
	LabelID   LabelID         `json:"label_id"`
	LabelName string          `json:"label_name"`
	BBox      json.RawMessage `json:"bbox"`
}

// Result is the detect-and-replace response: stringified positional index to
// region.
type Result map[string]Region

// VisualizeResponse is the detect-and-visualize response.
type VisualizeResponse struct {
	Image string `json:"image"`
}

// StatusError reports a non-success answer from the detection service.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("detection service returned %d: %s", e.StatusCode, e.Detail)
	}
	return "detection service returned " + strconv.Itoa(e.StatusCode)
}

// RecordError is a per-record ingestion failure. The record is skipped and the
// rest of the batch continues.
type RecordError struct {
	Key string
	Err error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %q: %v", e.Key, e.Err)
}

func (e RecordError) Unwrap() error {
	return e.Err
}
