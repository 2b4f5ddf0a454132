package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docbatch/internal/common"
)

// toStruct encodes v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes s into out through its JSON form.
func fromStruct(s *structpb.Struct, out any) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

type batchRef struct {
	BatchID string `json:"batch_id"`
}

func parseBatchID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, common.InvalidArgumentError("batch_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, common.InvalidArgumentError("batch_id must be a UUID")
	}
	return id, nil
}

func batchIDFrom(s *structpb.Struct) (uuid.UUID, error) {
	var ref batchRef
	if err := fromStruct(s, &ref); err != nil {
		return uuid.Nil, common.InvalidArgumentError(err.Error())
	}
	return parseBatchID(ref.BatchID)
}
