package pipeline

import (
	"fmt"

	"github.com/leeforge/imagevise/json"
	"github.com/leeforge/imagevise/media/operator"
)

// Step is one serialized operator: ["name", {params}] on the wire.
type Step struct {
	Name   string
	Params operator.Params
}

func (s Step) MarshalJSON() ([]byte, error) {
	params := s.Params
	if params == nil {
		params = operator.Params{}
	}
	return json.Marshal([]any{s.Name, params})
}

func (s *Step) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("pipeline step must be a [name, params] pair: %w", err)
	}
	if len(parts) < 1 || len(parts) > 2 {
		return fmt.Errorf("pipeline step must be a [name, params] pair, got %d elements", len(parts))
	}
	if err := json.Unmarshal(parts[0], &s.Name); err != nil {
		return fmt.Errorf("pipeline step name must be a string: %w", err)
	}
	s.Params = nil
	if len(parts) == 2 {
		if err := json.Unmarshal(parts[1], &s.Params); err != nil {
			return fmt.Errorf("parameters of %s must be an object: %w", s.Name, err)
		}
	}
	return nil
}
