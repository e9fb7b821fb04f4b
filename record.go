package regsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// InputRecord names one image to replicate. InstanceID is opaque and
// kept as the raw JSON value it arrived as.
type InputRecord struct {
	InstanceID     json.RawMessage `json:"instance_id"`
	SourceImageRef string          `json:"source_image_ref"`
	DestImageRef   string          `json:"dest_image_ref"`
}

// OutputRecord is emitted once per InputRecord regardless of outcome.
type OutputRecord struct {
	InstanceID     json.RawMessage `json:"instance_id"`
	SourceImageRef string          `json:"source_image_ref"`
	DestImageRef   string          `json:"dest_image_ref"`
	Success        bool            `json:"success"`
}

// Result builds the output record for in.
func (in InputRecord) Result(success bool) OutputRecord {
	return OutputRecord{
		InstanceID:     in.InstanceID,
		SourceImageRef: in.SourceImageRef,
		DestImageRef:   in.DestImageRef,
		Success:        success,
	}
}

// ID renders the instance id for logs: strings unquoted, other values as raw JSON.
func (in InputRecord) ID() string { return instanceID(in.InstanceID) }

// ID renders the instance id for logs.
func (out OutputRecord) ID() string { return instanceID(out.InstanceID) }

func instanceID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

var requiredFields = []string{"instance_id", "source_image_ref", "dest_image_ref"}

// DecodeRecord parses one input line. Every field must be present; an
// empty or null reference is left for the copier to reject.
func DecodeRecord(line []byte) (InputRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return InputRecord{}, fmt.Errorf("invalid json at offset %d: %w", syntaxErr.Offset, err)
		}
		return InputRecord{}, err
	}
	if fields == nil {
		return InputRecord{}, errors.New("record is null")
	}

	var missing []string
	for _, key := range requiredFields {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return InputRecord{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	in := InputRecord{InstanceID: fields["instance_id"]}
	if err := json.Unmarshal(fields["source_image_ref"], &in.SourceImageRef); err != nil {
		return InputRecord{}, fmt.Errorf("source_image_ref: %w", err)
	}
	if err := json.Unmarshal(fields["dest_image_ref"], &in.DestImageRef); err != nil {
		return InputRecord{}, fmt.Errorf("dest_image_ref: %w", err)
	}
	return in, nil
}

// RecordState tracks a record through the processor.
type RecordState int

const (
	StatePending RecordState = iota
	StateCopying
	StateSucceeded
	StateFailed
	StateEmitted
)

func (s RecordState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCopying:
		return "copying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateEmitted:
		return "emitted"
	default:
		return fmt.Sprintf("RecordState(%d)", int(s))
	}
}
