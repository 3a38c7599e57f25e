package schema

import "testing"

type testInput struct {
	Name  string `flow:"name" validate:"required"`
	Limit int    `flow:"limit" default:"10"`
}

func TestDecodeInput_AppliesDefaultsThenValues(t *testing.T) {
	var in testInput
	if err := DecodeInput(map[string]any{"name": "a"}, &in); err != nil {
		t.Fatalf("DecodeInput: %v", err)
	}
	if in.Name != "a" || in.Limit != 10 {
		t.Fatalf("expected default limit 10 to survive, got %+v", in)
	}
}

func TestDecodeInput_SuppliedValueOverridesDefault(t *testing.T) {
	var in testInput
	if err := DecodeInput(map[string]any{"name": "a", "limit": 5}, &in); err != nil {
		t.Fatalf("DecodeInput: %v", err)
	}
	if in.Limit != 5 {
		t.Fatalf("expected supplied limit 5, got %d", in.Limit)
	}
}

func TestDecodeInput_MissingRequiredFieldFails(t *testing.T) {
	var in testInput
	if err := DecodeInput(map[string]any{}, &in); err == nil {
		t.Fatalf("expected validation error for missing required field")
	}
}

func TestDecodeInput_MapTargetSkipsDefaultsAndValidation(t *testing.T) {
	var m map[string]any
	if err := DecodeInput(map[string]any{"anything": 1}, &m); err != nil {
		t.Fatalf("DecodeInput into map target: %v", err)
	}
	if m["anything"] != 1 {
		t.Fatalf("expected passthrough value, got %v", m)
	}
}

func TestEncodeOutput_PlainMapPassesThrough(t *testing.T) {
	in := map[string]any{"x": 1}
	out, err := EncodeOutput(in)
	if err != nil {
		t.Fatalf("EncodeOutput: %v", err)
	}
	if out["x"] != 1 {
		t.Fatalf("expected passthrough, got %v", out)
	}
}

func TestEncodeOutput_RecordReturnsItsFieldsDirectly(t *testing.T) {
	rec := NewRecord(map[string]any{"y": 2})
	out, err := EncodeOutput(rec)
	if err != nil {
		t.Fatalf("EncodeOutput: %v", err)
	}
	if out["y"] != 2 {
		t.Fatalf("expected record fields flattened, got %v", out)
	}
}

func TestEncodeOutput_StructIsFlattenedByFlowTag(t *testing.T) {
	type out struct {
		Sum float64 `flow:"sum"`
	}
	encoded, err := EncodeOutput(out{Sum: 4.5})
	if err != nil {
		t.Fatalf("EncodeOutput: %v", err)
	}
	if encoded["sum"] != 4.5 {
		t.Fatalf("expected sum 4.5, got %v", encoded)
	}
}

func TestRecord_CacheableFieldsExcludesSuppressed(t *testing.T) {
	rec := NewRecord(map[string]any{"public": 1, "secret": 2})
	rec.SuppressCache("secret")
	cacheable := rec.CacheableFields()
	if _, ok := cacheable["secret"]; ok {
		t.Fatalf("expected secret to be suppressed from cacheable fields")
	}
	if cacheable["public"] != 1 {
		t.Fatalf("expected public field to survive, got %v", cacheable)
	}
}

func TestRecord_DefaultOutputField(t *testing.T) {
	rec := NewRecord(map[string]any{"body": "x"})
	if _, ok := rec.DefaultOutputField(); ok {
		t.Fatalf("expected no default output before SetDefaultOutput")
	}
	rec.SetDefaultOutput("body")
	name, ok := rec.DefaultOutputField()
	if !ok || name != "body" {
		t.Fatalf("expected default output %q, got %q (ok=%v)", "body", name, ok)
	}
}
