package schema

// Record is one decoded award row bound to the schema it was validated
// against. Fields are read by name, never by raw offset.
type Record struct {
	schema *Schema
	fields []string
}

func (r Record) get(f Field) string {
	idx, ok := r.schema.Fields[f]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return r.fields[idx]
}

func (r Record) PIID() string          { return r.get(AwardIDPIID) }
func (r Record) ParentAwardID() string { return r.get(ParentAwardID) }
func (r Record) ActionType() string    { return r.get(ActionType) }

// Fields returns the raw field sequence. Callers must not modify it.
func (r Record) Fields() []string { return r.fields }

func (r Record) Len() int { return len(r.fields) }
