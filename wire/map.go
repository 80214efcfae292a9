package wire

import (
	"fmt"
	"reflect"
	"sort"
)

// Map fields travel as repeated entry messages with the key at field 1 and
// the value at field 2. A decoded map field is therefore a sequence of entry
// instances; MapEntries and EntriesToMap convert between that form and Go
// maps.

const (
	mapKeyField   = "key"
	mapValueField = "value"
)

// MapEntries converts a Go map into entry records ordered by key, so the
// same map always encodes to the same bytes. Any map type is accepted.
func MapEntries(m interface{}) ([]interface{}, error) {
	switch t := m.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]interface{}, len(keys))
		for i, k := range keys {
			entries[i] = newMapEntry(k, t[k])
		}
		return entries, nil
	case map[interface{}]interface{}:
		keys := make([]interface{}, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sortMapKeys(keys)
		entries := make([]interface{}, len(keys))
		for i, k := range keys {
			entries[i] = newMapEntry(k, t[k])
		}
		return entries, nil
	}

	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("map field value must be a map or entry list, got %T", m)
	}
	keys := make([]interface{}, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.Interface())
	}
	sortMapKeys(keys)
	entries := make([]interface{}, len(keys))
	for i, k := range keys {
		entries[i] = newMapEntry(k, rv.MapIndex(reflect.ValueOf(k)).Interface())
	}
	return entries, nil
}

// EntriesToMap folds decoded entries into a map. A key repeated on the wire
// keeps its last value. Entries missing a key or value contribute the zero
// the decoder populated, or nil.
func EntriesToMap(entries []interface{}) (map[interface{}]interface{}, error) {
	out := make(map[interface{}]interface{}, len(entries))
	for i, e := range entries {
		var key, value interface{}
		switch t := e.(type) {
		case Instance:
			key, _ = t.Get(mapKeyField)
			value, _ = t.Get(mapValueField)
		case map[string]interface{}:
			key, value = t[mapKeyField], t[mapValueField]
		default:
			return nil, fmt.Errorf("map entry %d: unexpected %T", i, e)
		}
		if key != nil && !reflect.TypeOf(key).Comparable() {
			return nil, fmt.Errorf("map entry %d: key of type %T is not comparable", i, key)
		}
		if rec, ok := value.(*Record); ok {
			value = rec.ToMap()
		}
		out[key] = value
	}
	return out, nil
}

func newMapEntry(key, value interface{}) *Record {
	fields := map[string]interface{}{mapKeyField: key}
	if value != nil {
		fields[mapValueField] = value
	}
	return NewRecord(fields)
}

// sortMapKeys orders keys of one dynamic type. Mixed key types fall back to
// their printed form.
func sortMapKeys(keys []interface{}) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := reflect.ValueOf(keys[i]), reflect.ValueOf(keys[j])
		if a.Kind() == b.Kind() {
			switch a.Kind() {
			case reflect.String:
				return a.String() < b.String()
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				return a.Int() < b.Int()
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
				return a.Uint() < b.Uint()
			case reflect.Bool:
				return !a.Bool() && b.Bool()
			}
		}
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})
}
