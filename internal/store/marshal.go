package store

import (
	"fmt"

	"github.com/roach88/sieve/internal/ir"
)

// marshalBody encodes a record body as plain JSON. Keys are sorted so the
// same record always produces the same text.
func marshalBody(body ir.Object) (string, error) {
	if body == nil {
		body = ir.Object{}
	}
	data, err := ir.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}
	return string(data), nil
}

func unmarshalBody(data string) (ir.Object, error) {
	body, err := ir.DecodeObject([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal body: %w", err)
	}
	return body, nil
}
