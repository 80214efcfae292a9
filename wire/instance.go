package wire

// Instance is the host message a codec reads and writes by field name.
type Instance interface {
	// Get returns the value stored for a field and whether it is set.
	Get(name string) (interface{}, bool)
	// Set stores a field value.
	Set(name string, value interface{})
}

// UnknownFieldHolder is implemented by instances that can retain fields the
// schema did not recognize.
type UnknownFieldHolder interface {
	UnknownFields() []UnknownField
	AddUnknownField(f UnknownField)
}

// BeforeSerializer is called before encoding when the schema enables hooks.
type BeforeSerializer interface {
	BeforeSerialize() error
}

// AfterDeserializer is called after decoding when the schema enables hooks.
type AfterDeserializer interface {
	AfterDeserialize() error
}

// Record is the default map-backed Instance.
type Record struct {
	fields  map[string]interface{}
	unknown []UnknownField
}

// NewRecord returns a Record holding fields. Nested maps are converted to
// records lazily by the encoder, so fields may be used as given.
func NewRecord(fields map[string]interface{}) *Record {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	return &Record{fields: fields}
}

// Get implements Instance.
func (r *Record) Get(name string) (interface{}, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Set implements Instance.
func (r *Record) Set(name string, value interface{}) {
	if r.fields == nil {
		r.fields = make(map[string]interface{})
	}
	r.fields[name] = value
}

// Fields returns the underlying field map.
func (r *Record) Fields() map[string]interface{} {
	return r.fields
}

// UnknownFields implements UnknownFieldHolder.
func (r *Record) UnknownFields() []UnknownField {
	return r.unknown
}

// AddUnknownField implements UnknownFieldHolder.
func (r *Record) AddUnknownField(f UnknownField) {
	r.unknown = append(r.unknown, f)
}

// ToMap converts the record, and every nested record, into plain maps.
// Unknown fields are dropped.
func (r *Record) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(r.fields))
	for name, v := range r.fields {
		out[name] = plainValue(v)
	}
	return out
}

func plainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case *Record:
		return t.ToMap()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	default:
		return v
	}
}
