package apiv1

import (
	"encoding/json"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts v to a Struct through its JSON encoding. v must encode to
// a JSON object.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "error encoding message")
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, "error converting message")
	}
	return s, nil
}

// FromStruct decodes s into v, the inverse of ToStruct.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "error converting message")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "error decoding message")
	}
	return nil
}
