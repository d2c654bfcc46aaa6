// Package llm talks to the language model. Adapters return the model's narrative text and the
// operations it asked for; they never execute anything.
package llm

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/nikitkaralius/pollmate/internal/catalogue"
	"github.com/nikitkaralius/pollmate/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedResponse means the provider answered but the answer could not be understood.
// It is not retried.
var ErrMalformedResponse = errors.New("malformed model response")

// Model is the port the orchestrator calls once per turn.
type Model interface {
	Generate(ctx context.Context, req Request) (*Reply, error)
}

type Request struct {
	Transcript []session.Turn
	Catalogue  *catalogue.Catalogue
}

// Reply is the model's answer. Text may be empty; Actions keep the order the model gave them.
type Reply struct {
	Text    string
	Actions []catalogue.ActionRequest
}

// normalizeArgs turns provider tool input (a decoded map, a JSON string or raw bytes) into an
// argument bag.
func normalizeArgs(in any) (map[string]any, error) {
	var raw []byte
	switch v := in.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		if v == "" {
			return map[string]any{}, nil
		}
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: tool input: %v", ErrMalformedResponse, err)
		}
		raw = b
	}

	args := map[string]any{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: tool input is not an object: %v", ErrMalformedResponse, err)
	}
	return args, nil
}
