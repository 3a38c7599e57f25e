package builtin

import (
	"context"
	"testing"
)

func TestAddAction_Run(t *testing.T) {
	a := NewAddAction()
	out, err := a.Run(context.Background(), &AddInput{A: 2, B: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	sum, ok := out.(SumOutput)
	if !ok || sum.Sum != 5 {
		t.Fatalf("unexpected output: %#v", out)
	}
	if !a.Cache() {
		t.Fatalf("add should be cacheable")
	}
}

func TestDoubleAddAction_Stream_EmitsSumThenDouble(t *testing.T) {
	a := NewDoubleAddAction()
	var got []float64
	err := a.Stream(context.Background(), &AddInput{A: 1, B: 2}, func(v any) error {
		got = append(got, v.(SumOutput).Sum)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 6 {
		t.Fatalf("expected [3 6], got %v", got)
	}
}
