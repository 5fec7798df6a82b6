package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// StoredValue is the serializable projection of Value used for carrying
// state across Execute RPC calls (C1 "Stored Value"). Functions, modules,
// and bound callables have no Stored representation — they are re-seeded
// every call instead.
type StoredValue struct {
	Kind           string
	Bool           bool
	Int            int64
	Str            string // also the base64 payload for BytesB64
	List           []StoredValue
	Dict           map[string]StoredValue
	MatchGroups    []string
	MatchSpanStart int
	MatchSpanEnd   int
}

// StateMap is the wire shape carried in Execute RPC requests/responses.
type StateMap map[string]StoredValue

type storedEnvelope struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

type matchPayload struct {
	Groups    []string `json:"groups"`
	SpanStart int      `json:"span_start"`
	SpanEnd   int       `json:"span_end"`
}

// MarshalJSON renders the {"t":kind,"v":payload} wire shape.
func (s StoredValue) MarshalJSON() ([]byte, error) {
	var v any
	switch s.Kind {
	case "None":
		v = nil
	case "Bool":
		v = s.Bool
	case "Int":
		v = s.Int
	case "Str":
		v = s.Str
	case "BytesB64":
		v = s.Str
	case "List":
		v = s.List
	case "Dict":
		v = s.Dict
	case "Match":
		v = matchPayload{Groups: s.MatchGroups, SpanStart: s.MatchSpanStart, SpanEnd: s.MatchSpanEnd}
	default:
		return nil, fmt.Errorf("sandbox: unknown stored value kind %q", s.Kind)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(storedEnvelope{T: s.Kind, V: raw})
}

// UnmarshalJSON parses the {"t":kind,"v":payload} wire shape.
func (s *StoredValue) UnmarshalJSON(data []byte) error {
	var env storedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	s.Kind = env.T
	switch env.T {
	case "None":
		return nil
	case "Bool":
		return json.Unmarshal(env.V, &s.Bool)
	case "Int":
		return json.Unmarshal(env.V, &s.Int)
	case "Str", "BytesB64":
		return json.Unmarshal(env.V, &s.Str)
	case "List":
		return json.Unmarshal(env.V, &s.List)
	case "Dict":
		return json.Unmarshal(env.V, &s.Dict)
	case "Match":
		var m matchPayload
		if err := json.Unmarshal(env.V, &m); err != nil {
			return err
		}
		s.MatchGroups = m.Groups
		s.MatchSpanStart = m.SpanStart
		s.MatchSpanEnd = m.SpanEnd
		return nil
	default:
		return fmt.Errorf("sandbox: unknown stored value kind %q", env.T)
	}
}

// ProjectValue converts a runtime Value into its serializable projection.
// Func/Callable/Module values have no projection — callers must filter
// reserved/non-serializable names before calling this (see env.go
// DumpState), but as a safety net this returns an error rather than
// silently dropping data.
func ProjectValue(v Value) (StoredValue, error) {
	switch v.Kind {
	case KNone:
		return StoredValue{Kind: "None"}, nil
	case KBool:
		return StoredValue{Kind: "Bool", Bool: v.Bool}, nil
	case KInt:
		return StoredValue{Kind: "Int", Int: v.Int}, nil
	case KStr:
		return StoredValue{Kind: "Str", Str: v.Str}, nil
	case KBytes:
		return StoredValue{Kind: "BytesB64", Str: base64.StdEncoding.EncodeToString(v.Bytes)}, nil
	case KList:
		out := make([]StoredValue, len(v.List))
		for i, x := range v.List {
			sv, err := ProjectValue(x)
			if err != nil {
				return StoredValue{}, err
			}
			out[i] = sv
		}
		return StoredValue{Kind: "List", List: out}, nil
	case KDict:
		out := make(map[string]StoredValue, len(v.Dict))
		for k, x := range v.Dict {
			sv, err := ProjectValue(x)
			if err != nil {
				return StoredValue{}, err
			}
			out[k] = sv
		}
		return StoredValue{Kind: "Dict", Dict: out}, nil
	case KMatch:
		return StoredValue{
			Kind:           "Match",
			MatchGroups:    append([]string(nil), v.Match.Groups...),
			MatchSpanStart: v.Match.SpanStart,
			MatchSpanEnd:   v.Match.SpanEnd,
		}, nil
	default:
		return StoredValue{}, fmt.Errorf("sandbox: value of kind %q is not serializable", v.TypeName())
	}
}

// RehydrateValue converts a Stored Value back into a runtime Value.
func RehydrateValue(s StoredValue) (Value, error) {
	switch s.Kind {
	case "None":
		return None(), nil
	case "Bool":
		return Bool(s.Bool), nil
	case "Int":
		return Int(s.Int), nil
	case "Str":
		return Str(s.Str), nil
	case "BytesB64":
		b, err := base64.StdEncoding.DecodeString(s.Str)
		if err != nil {
			return Value{}, errValue("invalid base64 in carried state: %v", err)
		}
		return Bytes(b), nil
	case "List":
		out := make([]Value, len(s.List))
		for i, x := range s.List {
			v, err := RehydrateValue(x)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return List(out), nil
	case "Dict":
		out := make(map[string]Value, len(s.Dict))
		for k, x := range s.Dict {
			v, err := RehydrateValue(x)
			if err != nil {
				return Value{}, err
			}
			out[k] = v
		}
		return Dict(out), nil
	case "Match":
		full := ""
		if len(s.MatchGroups) > 0 {
			full = s.MatchGroups[0]
		}
		return Match(&MatchObject{
			Full:      full,
			Groups:    append([]string(nil), s.MatchGroups...),
			SpanStart: s.MatchSpanStart,
			SpanEnd:   s.MatchSpanEnd,
		}), nil
	default:
		return Value{}, errValue("unknown stored value kind %q", s.Kind)
	}
}

// reservedNames are never written to Stored State — they are re-seeded on
// every request instead.
var reservedNames = map[string]bool{
	"context":  true,
	"query":    true,
	"re":       true,
	"json":     true,
	"base64":   true,
	"binascii": true,
	"zlib":     true,
}

func isReservedName(name string) bool { return reservedNames[name] }
