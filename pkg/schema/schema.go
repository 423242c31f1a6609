// Package schema checks canonical activities against the direction-specific
// JSON schemas shared by both sides of the adapter.
package schema

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"smsbridge/pkg/activity"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

// ErrInvalid matches every ValidationError.
var ErrInvalid = errors.New("activity failed schema validation")

// Validator checks a candidate activity for one direction. Implementations
// must not mutate the candidate.
type Validator interface {
	Validate(ctx context.Context, doc activity.Activity, direction activity.Direction) error
}

// ValidationError carries the rejection reason for one candidate.
type ValidationError struct {
	Direction activity.Direction
	Reason    string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid %s activity: %s", e.Direction, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// JSONValidator validates activities with the embedded JSON schemas.
type JSONValidator struct {
	resolved map[activity.Direction]*jsonschema.Resolved
}

// NewJSONValidator compiles the receive and send schemas.
func NewJSONValidator() (*JSONValidator, error) {
	resolved := make(map[activity.Direction]*jsonschema.Resolved, 2)
	for _, direction := range []activity.Direction{activity.DirectionReceive, activity.DirectionSend} {
		content, err := schemaFiles.ReadFile("schemas/" + string(direction) + ".json")
		if err != nil {
			return nil, fmt.Errorf("read %s schema: %w", direction, err)
		}

		var s jsonschema.Schema
		if err := json.Unmarshal(content, &s); err != nil {
			return nil, fmt.Errorf("parse %s schema: %w", direction, err)
		}

		r, err := s.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("resolve %s schema: %w", direction, err)
		}
		resolved[direction] = r
	}

	return &JSONValidator{resolved: resolved}, nil
}

// Validate returns nil when doc satisfies the schema for direction, or a
// *ValidationError otherwise.
func (v *JSONValidator) Validate(_ context.Context, doc activity.Activity, direction activity.Direction) error {
	r, ok := v.resolved[direction]
	if !ok {
		return &ValidationError{Direction: direction, Reason: "unknown direction"}
	}

	// The schema library validates generic JSON values, so work on a decoded
	// copy and leave doc untouched.
	encoded, err := json.Marshal(doc)
	if err != nil {
		return &ValidationError{Direction: direction, Reason: err.Error()}
	}
	var instance any
	if err := json.Unmarshal(encoded, &instance); err != nil {
		return &ValidationError{Direction: direction, Reason: err.Error()}
	}

	if err := r.Validate(instance); err != nil {
		return &ValidationError{Direction: direction, Reason: err.Error()}
	}

	return nil
}
