package schema

import (
	"fmt"
	"strings"
)

// HeaderSentinel is the first field of the export header row.
const HeaderSentinel = "award_id_piid"

// Field names an offset inside a raw award record.
type Field string

const (
	AwardIDPIID   Field = "award_id_piid"
	ParentAwardID Field = "parent_award_id"
	ActionType    Field = "action_type"
)

// Schema describes one export layout. It is a value: copies never share
// mutable state, so two jobs can hold different schemas side by side.
type Schema struct {
	Name   string `json:"name"`
	Header string `json:"header"`

	// Length is the exact field count a record must have. Zero disables the check.
	Length int           `json:"length"`
	Fields map[Field]int `json:"fields"`
}

// Termination is the 277 column export consumed by the termination flag job.
var Termination = Schema{
	Name:   "termination",
	Length: 277,
	Header: HeaderSentinel,
	Fields: map[Field]int{
		AwardIDPIID:   2,
		ParentAwardID: 7,
		ActionType:    78,
	},
}

// Latest is the looser export consumed by the latest record job. Records of
// any length are accepted.
var Latest = Schema{
	Name:   "latest",
	Length: 0,
	Header: HeaderSentinel,
	Fields: map[Field]int{
		AwardIDPIID:   0,
		ParentAwardID: 3,
	},
}

func (s *Schema) withDefaults() {
	if s.Header == "" {
		s.Header = HeaderSentinel
	}
}

// Validate checks that the key offsets exist and fit the declared length.
func (s Schema) Validate(required ...Field) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("schema name is required")
	}
	if s.Length < 0 {
		return fmt.Errorf("schema %s: negative record length %d", s.Name, s.Length)
	}
	need := append([]Field{AwardIDPIID, ParentAwardID}, required...)
	for _, f := range need {
		if _, ok := s.Fields[f]; !ok {
			return fmt.Errorf("schema %s: missing field %s", s.Name, f)
		}
	}
	for f, idx := range s.Fields {
		if idx < 0 {
			return fmt.Errorf("schema %s: field %s has negative index %d", s.Name, f, idx)
		}
		if s.Length > 0 && idx >= s.Length {
			return fmt.Errorf("schema %s: field %s index %d outside record length %d", s.Name, f, idx, s.Length)
		}
	}
	return nil
}

// minFields is the smallest record that can serve every named offset.
func (s Schema) minFields() int {
	n := 0
	for _, idx := range s.Fields {
		if idx+1 > n {
			n = idx + 1
		}
	}
	return n
}

// Clone returns a copy whose field map is not shared with s.
func (s Schema) Clone() Schema {
	out := s
	out.Fields = make(map[Field]int, len(s.Fields))
	for k, v := range s.Fields {
		out.Fields[k] = v
	}
	out.withDefaults()
	return out
}
