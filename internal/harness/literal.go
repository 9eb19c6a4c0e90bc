package harness

import (
	"fmt"

	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/value"
)

// parseLiteral decodes a YAML value literal against the staged resources.
func parseLiteral(lit Literal, staged []resource.ID) (value.Value, error) {
	if len(lit) != 1 {
		return nil, fmt.Errorf("value literal must have exactly one key, got %d", len(lit))
	}

	for key, raw := range lit {
		switch key {
		case "unit":
			return value.Unit{}, nil
		case "bool":
			b, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("bool literal: got %T", raw)
			}
			return value.Bool(b), nil
		case "int":
			n, err := asInt64(raw)
			if err != nil {
				return nil, fmt.Errorf("int literal: %w", err)
			}
			return value.Int(n), nil
		case "pair":
			parts, ok := raw.([]any)
			if !ok || len(parts) != 2 {
				return nil, fmt.Errorf("pair literal needs a two-element list")
			}
			first, err := parseAny(parts[0], staged)
			if err != nil {
				return nil, err
			}
			second, err := parseAny(parts[1], staged)
			if err != nil {
				return nil, err
			}
			return value.Pair{First: first, Second: second}, nil
		case "left", "right":
			inner, err := parseAny(raw, staged)
			if err != nil {
				return nil, err
			}
			side := value.Left
			if key == "right" {
				side = value.Right
			}
			return value.Sum{Side: side, Inner: inner}, nil
		case "resource":
			idx, err := asInt64(raw)
			if err != nil {
				return nil, fmt.Errorf("resource literal: %w", err)
			}
			if idx < 0 || int(idx) >= len(staged) {
				return nil, fmt.Errorf("resource literal: index %d out of range (%d staged)", idx, len(staged))
			}
			return value.ResourceRef{ID: staged[idx]}, nil
		case "channel":
			n, err := asInt64(raw)
			if err != nil {
				return nil, fmt.Errorf("channel literal: %w", err)
			}
			if n < 0 {
				return nil, fmt.Errorf("channel literal: id must be non-negative")
			}
			return value.ChannelID(uint64(n)), nil
		default:
			return nil, fmt.Errorf("unknown value literal %q", key)
		}
	}
	return nil, fmt.Errorf("empty value literal")
}

// parseAny handles nested literal positions, where YAML gives us
// map[string]any rather than Literal.
func parseAny(raw any, staged []resource.ID) (value.Value, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("nested value literal: got %T", raw)
	}
	return parseLiteral(Literal(m), staged)
}

func asInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
}
