package toolserver

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/pkg/schema"
)

// Func is a typed tool implementation. The returned value is serialized as
// the call result.
type Func[I any] func(ctx context.Context, req *I) (any, error)

type tool[I any] struct {
	name        string
	description string
	inputSchema json.RawMessage
	fn          Func[I]
}

// NewTool wraps a typed function as an ITool. The input schema is reflected
// from I's jsonschema tags.
func NewTool[I any](name, description string, fn Func[I]) (ITool, error) {
	var zero I
	sc, err := schema.New(reflect.TypeOf(zero))
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to build schema for tool %s", name)
	}
	raw, err := sc.MarshalParameters()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to marshal schema for tool %s", name)
	}
	return &tool[I]{
		name:        name,
		description: description,
		inputSchema: raw,
		fn:          fn,
	}, nil
}

func (t *tool[I]) Name() string {
	return t.name
}

func (t *tool[I]) Description() string {
	return t.description
}

func (t *tool[I]) InputSchema() json.RawMessage {
	return t.inputSchema
}

func (t *tool[I]) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in I
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, errors.WithMessagef(err, "invalid arguments for tool %s", t.name)
	}
	out, err := t.fn(ctx, &in)
	if err != nil {
		return nil, err
	}
	res, err := json.Marshal(out)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to marshal result of tool %s", t.name)
	}
	return res, nil
}
