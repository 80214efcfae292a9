package main

import (
	"encoding/base64"

	"github.com/pkg/errors"

	"github.com/anirudhraja/protosynth/registry"
	"github.com/anirudhraja/protosynth/schema"
)

// decodeBytesFields replaces the base64 strings that decode writes for bytes
// fields with the raw bytes, walking nested messages and map values.
func decodeBytesFields(reg *registry.Registry, messageType string, obj map[string]interface{}) error {
	msg, err := reg.GetMessage(messageType)
	if err != nil {
		return err
	}
	for _, field := range msg.Fields {
		v, ok := obj[field.Name]
		if !ok || v == nil {
			continue
		}
		converted, err := decodeFieldBytes(reg, field, v)
		if err != nil {
			return errors.Wrap(err, field.Name)
		}
		obj[field.Name] = converted
	}
	return nil
}

func decodeFieldBytes(reg *registry.Registry, field *schema.Field, v interface{}) (interface{}, error) {
	if !field.IsRepeated() {
		return decodeSingleBytes(reg, field, v)
	}
	switch seq := v.(type) {
	case []interface{}:
		for i, elem := range seq {
			converted, err := decodeSingleBytes(reg, field, elem)
			if err != nil {
				return nil, errors.Wrapf(err, "[%d]", i)
			}
			seq[i] = converted
		}
	case map[string]interface{}:
		// object form of a map field
		if field.Type.Kind != schema.KindMessage {
			return v, nil
		}
		entry, err := reg.GetMessage(field.Type.MessageType)
		if err != nil {
			return nil, err
		}
		if !entry.MapEntry {
			return v, nil
		}
		var valueField *schema.Field
		for _, f := range entry.Fields {
			if f.Number == 2 {
				valueField = f
			}
		}
		if valueField == nil {
			return v, nil
		}
		for key, elem := range seq {
			converted, err := decodeSingleBytes(reg, valueField, elem)
			if err != nil {
				return nil, errors.Wrapf(err, "[%q]", key)
			}
			seq[key] = converted
		}
	}
	return v, nil
}

func decodeSingleBytes(reg *registry.Registry, field *schema.Field, v interface{}) (interface{}, error) {
	switch field.Type.Kind {
	case schema.KindPrimitive:
		s, ok := v.(string)
		if !ok || field.Type.PrimitiveType != schema.TypeBytes {
			return v, nil
		}
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.Wrap(err, "bytes value must be standard base64")
		}
		return data, nil
	case schema.KindMessage:
		obj, ok := v.(map[string]interface{})
		if !ok {
			return v, nil
		}
		if err := decodeBytesFields(reg, field.Type.MessageType, obj); err != nil {
			return nil, err
		}
	}
	return v, nil
}
