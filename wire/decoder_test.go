package wire

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"

	"github.com/anirudhraja/protosynth/schema"
)

func primitiveField(name string, number int32, pt schema.PrimitiveType) *schema.Field {
	return &schema.Field{
		Name:   name,
		Number: number,
		Label:  schema.LabelOptional,
		Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: pt},
	}
}

func mustSynthesize(t *testing.T, msg *schema.Message, cfg Config) *MessageCodec {
	t.Helper()
	c, err := Synthesize(msg, nil, cfg)
	if err != nil {
		t.Fatalf("Synthesize(%s) failed: %v", msg.Name, err)
	}
	return c
}

func mustUnmarshal(t *testing.T, c *MessageCodec, data []byte) *Record {
	t.Helper()
	inst, err := c.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	rec, ok := inst.(*Record)
	if !ok {
		t.Fatalf("decoded instance must be *Record, got %T", inst)
	}
	return rec
}

func TestDecoder_AllTypes(t *testing.T) {
	msg := &schema.Message{
		Name: "ComprehensiveMessage",
		Fields: []*schema.Field{
			primitiveField("test_int32", 1, schema.TypeInt32),
			primitiveField("test_int64", 2, schema.TypeInt64),
			primitiveField("test_uint32", 3, schema.TypeUint32),
			primitiveField("test_uint64", 4, schema.TypeUint64),
			primitiveField("test_bool", 5, schema.TypeBool),
			primitiveField("test_float", 6, schema.TypeFloat),
			primitiveField("test_double", 7, schema.TypeDouble),
			primitiveField("test_string", 8, schema.TypeString),
			primitiveField("test_bytes", 9, schema.TypeBytes),
			primitiveField("test_sint32", 10, schema.TypeSint32),
			primitiveField("test_sint64", 11, schema.TypeSint64),
			primitiveField("test_fixed32", 12, schema.TypeFixed32),
			primitiveField("test_fixed64", 13, schema.TypeFixed64),
			primitiveField("test_sfixed32", 14, schema.TypeSfixed32),
			primitiveField("test_sfixed64", 15, schema.TypeSfixed64),
			{
				Name:       "legacy_code",
				Number:     16,
				Label:      schema.LabelOptional,
				Deprecated: true,
				Type:       schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeInt32},
			},
		},
	}

	testData := map[string]interface{}{
		"test_int32":    int32(-123),
		"test_int64":    int64(-456789),
		"test_uint32":   uint32(123),
		"test_uint64":   uint64(456789),
		"test_bool":     true,
		"test_float":    float32(3.14),
		"test_double":   float64(2.718281828),
		"test_string":   "Hello, protosynth!",
		"test_bytes":    []byte("binary data"),
		"test_sint32":   int32(-64),
		"test_sint64":   int64(math.MinInt64),
		"test_fixed32":  uint32(math.MaxUint32),
		"test_fixed64":  uint64(math.MaxUint64),
		"test_sfixed32": int32(-7),
		"test_sfixed64": int64(-9),
		"legacy_code":   int32(404),
	}

	c := mustSynthesize(t, msg, Config{})
	encoded, err := c.Marshal(NewRecord(testData))
	if err != nil {
		t.Fatalf("Failed to encode message: %v", err)
	}

	decoded := mustUnmarshal(t, c, encoded)
	if !reflect.DeepEqual(decoded.ToMap(), testData) {
		t.Errorf("round trip mismatch (-want +got):\n%s", cmp.Diff(testData, decoded.ToMap()))
	}
}

func TestDecoder_PackedScenario(t *testing.T) {
	msg := &schema.Message{
		Name: "Packed",
		Fields: []*schema.Field{{
			Name:   "values",
			Number: 1,
			Label:  schema.LabelRepeated,
			Packed: true,
			Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeInt32},
		}},
	}
	c := mustSynthesize(t, msg, Config{})

	encoded, err := c.Marshal(NewRecord(map[string]interface{}{"values": []int32{1, 2, 3}}))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := []byte{0x0A, 0x03, 0x01, 0x02, 0x03}
	if !bytes.Equal(encoded, want) {
		t.Fatalf("encoded = % x, want % x", encoded, want)
	}

	decoded := mustUnmarshal(t, c, want)
	got, _ := decoded.Get("values")
	if diff := cmp.Diff([]interface{}{int32(1), int32(2), int32(3)}, got); diff != "" {
		t.Errorf("decoded values mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoder_PackedSignedAndEmpty(t *testing.T) {
	msg := &schema.Message{
		Name: "Packed",
		Fields: []*schema.Field{{
			Name:   "nums",
			Number: 4,
			Label:  schema.LabelRepeated,
			Packed: true,
			Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeSint32},
		}},
	}
	c := mustSynthesize(t, msg, Config{})

	encoded, err := c.Marshal(NewRecord(map[string]interface{}{"nums": []int32{-1, 1, -64}}))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if want := []byte{0x22, 0x03, 0x01, 0x02, 0x7F}; !bytes.Equal(encoded, want) {
		t.Fatalf("encoded = % x, want % x", encoded, want)
	}

	empty, err := c.Marshal(NewRecord(map[string]interface{}{"nums": []int32{}}))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("empty packed field must not be written, got % x", empty)
	}

	// a value running past the packed span
	_, err = c.Unmarshal([]byte{0x22, 0x01, 0x80, 0x01})
	if !errors.Is(err, ErrFramingViolation) {
		t.Errorf("expected ErrFramingViolation, got %v", err)
	}
}

func TestDecoder_UnpackedRepeated(t *testing.T) {
	msg := &schema.Message{
		Name: "Tags",
		Fields: []*schema.Field{{
			Name:   "tags",
			Number: 2,
			Label:  schema.LabelRepeated,
			Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeString},
		}, {
			Name:   "ids",
			Number: 3,
			Label:  schema.LabelRepeated,
			Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeUint32},
		}},
	}
	c := mustSynthesize(t, msg, Config{})

	encoded, err := c.Marshal(NewRecord(map[string]interface{}{
		"tags": []string{"a", "bc"},
		"ids":  []uint32{7, 300},
	}))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := []byte{
		0x12, 0x01, 'a', 0x12, 0x02, 'b', 'c',
		0x18, 0x07, 0x18, 0xAC, 0x02,
	}
	if !bytes.Equal(encoded, want) {
		t.Fatalf("encoded = % x, want % x", encoded, want)
	}

	decoded := mustUnmarshal(t, c, encoded)
	wantMap := map[string]interface{}{
		"tags": []interface{}{"a", "bc"},
		"ids":  []interface{}{uint32(7), uint32(300)},
	}
	if diff := cmp.Diff(wantMap, decoded.ToMap()); diff != "" {
		t.Errorf("decoded mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoder_EmptyInputAppliesDefaults(t *testing.T) {
	msg := &schema.Message{
		Name: "Defaults",
		NestedEnums: []*schema.Enum{{
			Name: "Color",
			Values: []*schema.EnumValue{
				{Name: "RED", Number: 2},
				{Name: "GREEN", Number: 1},
			},
		}},
		Fields: []*schema.Field{
			{
				Name:         "count",
				Number:       1,
				Label:        schema.LabelOptional,
				DefaultValue: "42",
				Type:         schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeInt32},
			},
			{
				Name:   "color",
				Number: 2,
				Label:  schema.LabelOptional,
				Type:   schema.FieldType{Kind: schema.KindEnum, EnumType: "Color"},
			},
			{
				Name:         "shade",
				Number:       3,
				Label:        schema.LabelOptional,
				DefaultValue: "GREEN",
				Type:         schema.FieldType{Kind: schema.KindEnum, EnumType: "Color"},
			},
			{
				Name:   "tags",
				Number: 4,
				Label:  schema.LabelRepeated,
				Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeString},
			},
			{
				Name:         "title",
				Number:       5,
				Label:        schema.LabelOptional,
				DefaultValue: `"untitled"`,
				Type:         schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeString},
			},
			primitiveField("note", 6, schema.TypeString),
		},
	}
	c := mustSynthesize(t, msg, Config{})

	decoded := mustUnmarshal(t, c, nil)
	want := map[string]interface{}{
		"count": int32(42),
		"color": int32(2),
		"shade": int32(1),
		"tags":  []interface{}{},
		"title": "untitled",
	}
	if diff := cmp.Diff(want, decoded.ToMap()); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}

	t.Run("populate_zero_values", func(t *testing.T) {
		c := mustSynthesize(t, msg, Config{PopulateDefaultsOnDecode: true})
		decoded := mustUnmarshal(t, c, nil)
		if v, ok := decoded.Get("note"); !ok || v != "" {
			t.Errorf("note = %v (set %v), want empty string", v, ok)
		}
	})

	t.Run("wire_value_overrides_default", func(t *testing.T) {
		decoded := mustUnmarshal(t, c, []byte{0x08, 0x07, 0x10, 0x01})
		if v, _ := decoded.Get("count"); v != int32(7) {
			t.Errorf("count = %v, want 7", v)
		}
		if v, _ := decoded.Get("color"); v != int32(1) {
			t.Errorf("color = %v, want 1", v)
		}
	})
}

func TestDecoder_BytesDefaultNotShared(t *testing.T) {
	msg := &schema.Message{
		Name: "Blob",
		Fields: []*schema.Field{{
			Name:         "magic",
			Number:       1,
			Label:        schema.LabelOptional,
			DefaultValue: `"PK"`,
			Type:         schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeBytes},
		}},
	}
	c := mustSynthesize(t, msg, Config{})

	first := mustUnmarshal(t, c, nil)
	v, _ := first.Get("magic")
	v.([]byte)[0] = 'X'

	second := mustUnmarshal(t, c, nil)
	if got, _ := second.Get("magic"); !bytes.Equal(got.([]byte), []byte("PK")) {
		t.Errorf("magic = %q, want %q", got, "PK")
	}
}

func TestDecoder_ReadOnlyRepeated(t *testing.T) {
	repeated := func(name string, number int32, packed, readOnly bool) *schema.Field {
		return &schema.Field{
			Name:     name,
			Number:   number,
			Label:    schema.LabelRepeated,
			Packed:   packed,
			ReadOnly: readOnly,
			Type:     schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeInt32},
		}
	}
	msg := &schema.Message{
		Name: "Owned",
		Fields: []*schema.Field{
			repeated("tags", 1, false, true),
			repeated("items", 2, false, false),
			repeated("marks", 3, true, true),
		},
	}
	c := mustSynthesize(t, msg, Config{})

	t.Run("appends_to_host_sequence", func(t *testing.T) {
		rec := NewRecord(map[string]interface{}{
			"tags":  []interface{}{int32(7)},
			"marks": []interface{}{int32(5)},
		})
		data := []byte{
			0x08, 0x01, 0x08, 0x02, // tags = 1, 2
			0x1A, 0x01, 0x06,       // marks = [6], packed
		}
		if err := c.Deserialize(NewBufferSource(data, 0), rec); err != nil {
			t.Fatalf("Deserialize failed: %v", err)
		}
		want := map[string]interface{}{
			"tags":  []interface{}{int32(7), int32(1), int32(2)},
			"items": []interface{}{},
			"marks": []interface{}{int32(5), int32(6)},
		}
		if diff := cmp.Diff(want, rec.ToMap()); diff != "" {
			t.Errorf("sequence mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("absent_not_created", func(t *testing.T) {
		decoded := mustUnmarshal(t, c, nil)
		want := map[string]interface{}{"items": []interface{}{}}
		if diff := cmp.Diff(want, decoded.ToMap()); diff != "" {
			t.Errorf("defaults mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("created_on_first_element", func(t *testing.T) {
		decoded := mustUnmarshal(t, c, []byte{0x08, 0x01})
		if v, _ := decoded.Get("tags"); !reflect.DeepEqual(v, []interface{}{int32(1)}) {
			t.Errorf("tags = %v, want [1]", v)
		}
		if _, ok := decoded.Get("marks"); ok {
			t.Error("marks must stay unset")
		}
	})
}

func TestDecoder_DispatchTierEquivalence(t *testing.T) {
	values := map[schema.PrimitiveType]interface{}{
		schema.TypeInt32:    int32(-5),
		schema.TypeInt64:    int64(1) << 40,
		schema.TypeUint32:   uint32(99),
		schema.TypeUint64:   uint64(math.MaxUint64),
		schema.TypeSint32:   int32(-300),
		schema.TypeSint64:   int64(-1) << 50,
		schema.TypeBool:     true,
		schema.TypeFixed32:  uint32(0xDEADBEEF),
		schema.TypeSfixed32: int32(-2),
		schema.TypeFloat:    float32(-1.5),
		schema.TypeFixed64:  uint64(1) << 63,
		schema.TypeSfixed64: int64(-3),
		schema.TypeDouble:   math.Pi,
		schema.TypeString:   "tier",
		schema.TypeBytes:    []byte{0, 1, 2},
	}

	for pt, value := range values {
		t.Run(string(pt), func(t *testing.T) {
			var got []interface{}
			for _, number := range []int32{5, 20} {
				msg := &schema.Message{
					Name:   "Tier",
					Fields: []*schema.Field{primitiveField("v", number, pt)},
				}
				c := mustSynthesize(t, msg, Config{})
				encoded, err := c.Marshal(NewRecord(map[string]interface{}{"v": value}))
				if err != nil {
					t.Fatalf("Marshal failed: %v", err)
				}
				decoded := mustUnmarshal(t, c, encoded)
				v, _ := decoded.Get("v")
				got = append(got, v)
			}
			if !reflect.DeepEqual(got[0], got[1]) || !reflect.DeepEqual(got[0], value) {
				t.Errorf("id 5 decoded %v, id 20 decoded %v, want %v", got[0], got[1], value)
			}
		})
	}
}

func TestDecoder_WireTypeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		number int32
		data   []byte
		tag    Tag
	}{
		// field declared varint, sent as fixed32
		{name: "fast_tier", number: 3, data: []byte{0x1D, 0x01, 0x00, 0x00, 0x00}, tag: 0x1D},
		{name: "general_tier", number: 20, data: []byte{0xA5, 0x01, 0x01, 0x00, 0x00, 0x00}, tag: 0xA5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &schema.Message{
				Name:   "Mismatch",
				Fields: []*schema.Field{primitiveField("count", tt.number, schema.TypeInt32)},
			}

			c := mustSynthesize(t, msg, Config{})
			decoded := mustUnmarshal(t, c, tt.data)
			if _, ok := decoded.Get("count"); ok {
				t.Error("mismatched field must not be decoded")
			}
			if len(decoded.UnknownFields()) != 0 {
				t.Error("unknown fields must be discarded without preserve-unknown")
			}

			msg.PreserveUnknown = true
			c = mustSynthesize(t, msg, Config{})
			decoded = mustUnmarshal(t, c, tt.data)
			want := []UnknownField{{Tag: tt.tag, Value: []byte{0x01, 0x00, 0x00, 0x00}}}
			if diff := cmp.Diff(want, decoded.UnknownFields()); diff != "" {
				t.Errorf("unknown fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecoder_UnknownFieldsRoundTrip(t *testing.T) {
	full := &schema.Message{
		Name: "Full",
		Fields: []*schema.Field{
			primitiveField("id", 1, schema.TypeInt32),
			primitiveField("name", 2, schema.TypeString),
			primitiveField("stamp", 3, schema.TypeFixed64),
			primitiveField("ratio", 4, schema.TypeFloat),
			primitiveField("big", 20, schema.TypeUint64),
		},
	}
	partial := &schema.Message{
		Name:            "Partial",
		PreserveUnknown: true,
		Fields:          []*schema.Field{primitiveField("id", 1, schema.TypeInt32)},
	}

	fullCodec := mustSynthesize(t, full, Config{})
	original, err := fullCodec.Marshal(NewRecord(map[string]interface{}{
		"id":    int32(9),
		"name":  "keep me",
		"stamp": uint64(1234567890123),
		"ratio": float32(0.25),
		"big":   uint64(1) << 62,
	}))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	// an overlong varint must survive untouched
	original = append(original, 0xB0, 0x01, 0x96, 0x81, 0x80, 0x00)

	partialCodec := mustSynthesize(t, partial, Config{})
	decoded := mustUnmarshal(t, partialCodec, original)
	if got := len(decoded.UnknownFields()); got != 5 {
		t.Fatalf("expected 5 unknown fields, got %d", got)
	}
	numbers := []FieldNumber{}
	wireTypes := []WireType{}
	for _, f := range decoded.UnknownFields() {
		numbers = append(numbers, f.FieldNumber())
		wireTypes = append(wireTypes, f.WireType())
	}
	if diff := cmp.Diff([]FieldNumber{2, 3, 4, 20, 22}, numbers); diff != "" {
		t.Errorf("unknown field order mismatch (-want +got):\n%s", diff)
	}
	wantTypes := []WireType{WireBytes, WireFixed64, WireFixed32, WireVarint, WireVarint}
	if diff := cmp.Diff(wantTypes, wireTypes); diff != "" {
		t.Errorf("unknown wire types mismatch (-want +got):\n%s", diff)
	}

	reencoded, err := partialCodec.Marshal(decoded)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !bytes.Equal(reencoded, original) {
		t.Errorf("re-encoded bytes differ\n got % x\nwant % x", reencoded, original)
	}

	t.Run("config_forces_preserve", func(t *testing.T) {
		plain := &schema.Message{Name: "Plain", Fields: partial.Fields}
		c := mustSynthesize(t, plain, Config{PreserveUnknownFields: true})
		decoded := mustUnmarshal(t, c, original)
		if len(decoded.UnknownFields()) != 5 {
			t.Errorf("expected 5 unknown fields, got %d", len(decoded.UnknownFields()))
		}
	})
}

func TestDecoder_FatalConditions(t *testing.T) {
	msg := &schema.Message{
		Name:   "Fatal",
		Fields: []*schema.Field{primitiveField("id", 1, schema.TypeUint32)},
	}
	c := mustSynthesize(t, msg, Config{})

	tests := []struct {
		name   string
		decode func(inst Instance) error
		want   error
	}{
		{
			name: "length_exceeds_input",
			decode: func(inst Instance) error {
				return c.DeserializeLength(NewBufferSource([]byte{0x08, 0x96, 0x01}, 0), 10, inst)
			},
			want: ErrTruncated,
		},
		{
			name: "length_exceeds_stream",
			decode: func(inst Instance) error {
				return c.DeserializeLength(NewStreamSource(bytes.NewReader([]byte{0x08, 0x96, 0x01})), 10, inst)
			},
			want: ErrTruncated,
		},
		{
			name: "delimited_prefix_exceeds_input",
			decode: func(inst Instance) error {
				return c.DeserializeLengthDelimited(NewBufferSource([]byte{0x05, 0x08, 0x01}, 0), inst)
			},
			want: ErrTruncated,
		},
		{
			name: "read_past_limit",
			decode: func(inst Instance) error {
				return c.DeserializeLength(NewBufferSource([]byte{0x08, 0x96, 0x01}, 0), 2, inst)
			},
			want: ErrFramingViolation,
		},
		{
			name: "field_zero_fast_byte",
			decode: func(inst Instance) error {
				return c.Deserialize(NewBufferSource([]byte{0x00, 0x01}, 0), inst)
			},
			want: ErrCorruptKey,
		},
		{
			name: "field_zero_bytes_type",
			decode: func(inst Instance) error {
				return c.Deserialize(NewBufferSource([]byte{0x02, 0x00}, 0), inst)
			},
			want: ErrCorruptKey,
		},
		{
			name: "truncated_varint_value",
			decode: func(inst Instance) error {
				return c.Deserialize(NewBufferSource([]byte{0x08, 0x96}, 0), inst)
			},
			want: ErrTruncated,
		},
		{
			name: "truncated_fixed_unknown",
			decode: func(inst Instance) error {
				return c.Deserialize(NewBufferSource([]byte{0x15, 0x01, 0x02}, 0), inst)
			},
			want: ErrTruncated,
		},
		{
			name: "group_wire_type",
			decode: func(inst Instance) error {
				return c.Deserialize(NewBufferSource([]byte{0x13}, 0), inst)
			},
			want: ErrUnsupportedWireType,
		},
		{
			name: "varint_too_long",
			decode: func(inst Instance) error {
				data := append([]byte{0x08}, bytes.Repeat([]byte{0xFF}, 11)...)
				return c.Deserialize(NewBufferSource(data, 0), inst)
			},
			want: ErrVarintTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode(NewRecord(nil))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecoder_FramingExactness(t *testing.T) {
	msg := &schema.Message{
		Name: "Frame",
		Fields: []*schema.Field{
			primitiveField("id", 1, schema.TypeInt64),
			primitiveField("body", 2, schema.TypeString),
		},
	}
	c := mustSynthesize(t, msg, Config{})

	var stream bytes.Buffer
	first := NewRecord(map[string]interface{}{"id": int64(1), "body": "first"})
	second := NewRecord(map[string]interface{}{"id": int64(2), "body": "second message"})
	for _, rec := range []*Record{first, second} {
		if err := c.SerializeLengthDelimited(&stream, rec); err != nil {
			t.Fatalf("SerializeLengthDelimited failed: %v", err)
		}
	}
	total := int64(stream.Len())

	readers := map[string]Source{
		"buffer":   NewBufferSource(stream.Bytes(), 0),
		"stream":   NewStreamSource(bytes.NewReader(stream.Bytes())),
		"one_byte": NewStreamSource(iotest.OneByteReader(bytes.NewReader(stream.Bytes()))),
		"half":     NewStreamSource(iotest.HalfReader(bytes.NewReader(stream.Bytes()))),
	}
	for name, src := range readers {
		t.Run(name, func(t *testing.T) {
			for _, want := range []*Record{first, second} {
				got := NewRecord(nil)
				if err := c.DeserializeLengthDelimited(src, got); err != nil {
					t.Fatalf("DeserializeLengthDelimited failed: %v", err)
				}
				if diff := cmp.Diff(want.ToMap(), got.ToMap()); diff != "" {
					t.Errorf("message mismatch (-want +got):\n%s", diff)
				}
			}
			if src.Position() != total {
				t.Errorf("consumed %d bytes, want %d", src.Position(), total)
			}
			if b := src.NextByte(); b != EOF {
				t.Errorf("expected end of input, got byte %d", b)
			}
		})
	}
}

func TestDecoder_BufferOffset(t *testing.T) {
	msg := &schema.Message{
		Name:   "Offset",
		Fields: []*schema.Field{primitiveField("id", 1, schema.TypeInt32)},
	}
	c := mustSynthesize(t, msg, Config{})

	data := []byte{0xFF, 0xFF, 0x08, 0x05, 0x08, 0x06}
	src := NewBufferSource(data, 2)
	rec := NewRecord(nil)
	if err := c.DeserializeLength(src, 2, rec); err != nil {
		t.Fatalf("DeserializeLength failed: %v", err)
	}
	if v, _ := rec.Get("id"); v != int32(5) {
		t.Errorf("id = %v, want 5", v)
	}
	if src.Offset() != 4 {
		t.Errorf("offset = %d, want 4", src.Offset())
	}

	inst, n, err := c.UnmarshalLengthDelimited([]byte{0x02, 0x08, 0x07, 0xAA})
	if err != nil {
		t.Fatalf("UnmarshalLengthDelimited failed: %v", err)
	}
	if n != 3 {
		t.Errorf("consumed %d bytes, want 3", n)
	}
	if v, _ := inst.Get("id"); v != int32(7) {
		t.Errorf("id = %v, want 7", v)
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) { return 0, nil }

func TestStreamSource_Reads(t *testing.T) {
	t.Run("zero_byte_read_is_truncation", func(t *testing.T) {
		src := NewStreamSource(zeroReader{})
		err := src.ReadFull(make([]byte, 4))
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("expected ErrTruncated, got %v", err)
		}
	})

	t.Run("partial_reads_accumulate", func(t *testing.T) {
		src := NewStreamSource(iotest.OneByteReader(bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8})))
		d := NewDecoder(src)
		v, err := d.DecodeFixed64()
		if err != nil {
			t.Fatalf("DecodeFixed64 failed: %v", err)
		}
		if v != 0x0807060504030201 {
			t.Errorf("value = %#x", v)
		}
	})

	t.Run("io_error_surfaces", func(t *testing.T) {
		boom := errors.New("boom")
		msg := &schema.Message{Name: "Err", Fields: []*schema.Field{primitiveField("id", 1, schema.TypeInt32)}}
		c := mustSynthesize(t, msg, Config{})
		err := c.Deserialize(NewStreamSource(iotest.ErrReader(boom)), NewRecord(nil))
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})

	t.Run("next_byte_sentinel_matches_buffer", func(t *testing.T) {
		stream := NewStreamSource(bytes.NewReader([]byte{0x42}))
		buffer := NewBufferSource([]byte{0x42}, 0)
		for i := 0; i < 2; i++ {
			if a, b := stream.NextByte(), buffer.NextByte(); a != b {
				t.Errorf("read %d: stream %d, buffer %d", i, a, b)
			}
		}
	})
}

func TestVarint_Codec(t *testing.T) {
	tests := []struct {
		value   uint64
		encoded []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{150, []byte{0x96, 0x01}},
		{300, []byte{0xAC, 0x02}},
		{math.MaxUint64, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		if err := NewEncoder(&buf).EncodeVarint(tt.value); err != nil {
			t.Fatalf("EncodeVarint(%d) failed: %v", tt.value, err)
		}
		if !bytes.Equal(buf.Bytes(), tt.encoded) {
			t.Errorf("EncodeVarint(%d) = % x, want % x", tt.value, buf.Bytes(), tt.encoded)
		}
		if VarintSize(tt.value) != len(tt.encoded) {
			t.Errorf("VarintSize(%d) = %d, want %d", tt.value, VarintSize(tt.value), len(tt.encoded))
		}
		got, err := NewBufferDecoder(tt.encoded).DecodeVarint()
		if err != nil || got != tt.value {
			t.Errorf("DecodeVarint(% x) = %d, %v; want %d", tt.encoded, got, err, tt.value)
		}
	}

	t.Run("uint32_truncates", func(t *testing.T) {
		d := NewBufferDecoder([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x1F})
		v, err := NewVarintDecoder(d).DecodeUint32()
		if err != nil || v != math.MaxUint32 {
			t.Errorf("DecodeUint32 = %d, %v", v, err)
		}
	})

	t.Run("negative_int32_takes_ten_bytes", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewVarintEncoder(NewEncoder(&buf)).EncodeInt32(-1); err != nil {
			t.Fatal(err)
		}
		if buf.Len() != 10 {
			t.Errorf("encoded length = %d, want 10", buf.Len())
		}
	})
}

func TestZigZag(t *testing.T) {
	for _, v := range []int32{0, -1, 1, -2, math.MaxInt32, math.MinInt32} {
		if got := DecodeZigZag32(EncodeZigZag32(v)); got != v {
			t.Errorf("zigzag32 %d -> %d", v, got)
		}
	}
	for _, v := range []int64{0, -1, 1, math.MaxInt64, math.MinInt64} {
		if got := DecodeZigZag64(EncodeZigZag64(v)); got != v {
			t.Errorf("zigzag64 %d -> %d", v, got)
		}
	}
	if EncodeZigZag32(-1) != 1 || EncodeZigZag32(1) != 2 {
		t.Error("unexpected zigzag mapping")
	}
}

func TestFixed_FloatBits(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	fe := NewFixedEncoder(e)
	if err := fe.EncodeFloat32(float32(math.Inf(-1))); err != nil {
		t.Fatal(err)
	}
	if err := fe.EncodeFloat64(math.NaN()); err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x00, 0x00, 0x80, 0xFF}; !bytes.Equal(buf.Bytes()[:4], want) {
		t.Errorf("float32 -inf = % x, want % x", buf.Bytes()[:4], want)
	}

	fd := NewFixedDecoder(NewBufferDecoder(buf.Bytes()))
	f, err := fd.DecodeFloat32()
	if err != nil || !math.IsInf(float64(f), -1) {
		t.Errorf("DecodeFloat32 = %v, %v", f, err)
	}
	d, err := fd.DecodeFloat64()
	if err != nil || !math.IsNaN(d) {
		t.Errorf("DecodeFloat64 = %v, %v", d, err)
	}
}
