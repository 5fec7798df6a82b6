package sandbox

import (
	"encoding/json"
	"testing"
)

func TestProjectRehydrateRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{name: "none", v: None()},
		{name: "bool true", v: Bool(true)},
		{name: "int", v: Int(-42)},
		{name: "str", v: Str("hello world")},
		{name: "bytes", v: Bytes([]byte{0x00, 0xff, 0x10})},
		{name: "list of mixed primitives", v: List([]Value{Int(1), Str("a"), Bool(false), None()})},
		{name: "dict", v: Dict(map[string]Value{"id": Str("doc-1"), "score": Int(3)})},
		{name: "nested list of dicts", v: List([]Value{
			Dict(map[string]Value{"a": Int(1)}),
			Dict(map[string]Value{"b": List([]Value{Str("x"), Str("y")})}),
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sv, err := ProjectValue(tt.v)
			if err != nil {
				t.Fatalf("ProjectValue: %v", err)
			}
			back, err := RehydrateValue(sv)
			if err != nil {
				t.Fatalf("RehydrateValue: %v", err)
			}
			if !primitiveEqual(tt.v, back) {
				t.Errorf("round trip mismatch: got %+v, want %+v", back, tt.v)
			}
		})
	}
}

// Match objects round-trip through their span/groups fields directly since
// primitiveEqual does not compare KMatch values (it treats them, like
// functions and modules, as never structurally equal).
func TestProjectRehydrateMatchObject(t *testing.T) {
	m := Match(&MatchObject{Full: "abc", Groups: []string{"abc", "a"}, SpanStart: 0, SpanEnd: 3})
	sv, err := ProjectValue(m)
	if err != nil {
		t.Fatalf("ProjectValue: %v", err)
	}
	back, err := RehydrateValue(sv)
	if err != nil {
		t.Fatalf("RehydrateValue: %v", err)
	}
	if back.Kind != KMatch {
		t.Fatalf("Kind = %v, want KMatch", back.Kind)
	}
	if back.Match.SpanStart != 0 || back.Match.SpanEnd != 3 {
		t.Errorf("span = (%d, %d), want (0, 3)", back.Match.SpanStart, back.Match.SpanEnd)
	}
	if len(back.Match.Groups) != 2 || back.Match.Groups[1] != "a" {
		t.Errorf("groups = %v, want [abc a]", back.Match.Groups)
	}
}

func TestProjectValueRejectsNonSerializableKinds(t *testing.T) {
	tests := []Value{
		Func(&UserFunc{Name: "f"}),
		CallableValue(&Callable{Kind: CallModuleFunc, Module: "builtins", Attr: "print"}),
		ModuleValue("re"),
	}
	for _, v := range tests {
		if _, err := ProjectValue(v); err == nil {
			t.Errorf("ProjectValue(%s) = nil error, want an error for non-serializable kind", v.TypeName())
		}
	}
}

func TestStoredValueJSONWireShape(t *testing.T) {
	sv := StoredValue{Kind: "Int", Int: 7}
	raw, err := json.Marshal(sv)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var round StoredValue
	if err := json.Unmarshal(raw, &round); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if round.Kind != "Int" || round.Int != 7 {
		t.Errorf("round trip = %+v, want Kind=Int Int=7", round)
	}
}

func TestApplyStateSkipsReservedNames(t *testing.T) {
	env := NewEnvironment()
	env.SeedGlobal("context", Str("original context"))
	err := env.ApplyState(StateMap{
		"context": {Kind: "Str", Str: "smuggled"},
		"total":   {Kind: "Int", Int: 5},
	})
	if err != nil {
		t.Fatalf("ApplyState: %v", err)
	}
	v, _ := env.Get("context")
	if v.Str != "original context" {
		t.Errorf("context = %q, want the reserved name to be left untouched by ApplyState", v.Str)
	}
	total, ok := env.Get("total")
	if !ok || total.Int != 5 {
		t.Errorf("total = %+v, ok=%v, want Int(5)", total, ok)
	}
}

func TestDumpStateSkipsReservedAndNonSerializableKinds(t *testing.T) {
	env := NewEnvironment()
	env.SeedGlobal("context", Str("ctx"))
	env.SeedGlobal("query", Str("q"))
	env.Set("count", Int(3))
	env.Set("helper", Func(&UserFunc{Name: "helper"}))

	state, err := env.DumpState()
	if err != nil {
		t.Fatalf("DumpState: %v", err)
	}
	if _, ok := state["context"]; ok {
		t.Error("DumpState leaked the reserved name 'context'")
	}
	if _, ok := state["helper"]; ok {
		t.Error("DumpState leaked a non-serializable function value")
	}
	if sv, ok := state["count"]; !ok || sv.Int != 3 {
		t.Errorf("count = %+v, ok=%v, want Int(3)", sv, ok)
	}
}
