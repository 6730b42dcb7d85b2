package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"dongpa/internal/domain"
)

// toStruct converts v, which must encode to a JSON object, into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("converting %T: %w", v, err)
	}
	return out, nil
}

// fromStruct decodes in into v. A nil Struct leaves v unchanged.
func fromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		return nil
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// decodeRequest is fromStruct for incoming calls. Malformed requests are
// reported as invalid configuration.
func decodeRequest(in *structpb.Struct, v any) error {
	err := fromStruct(in, v)
	if err == nil || domain.IsClientError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
}
