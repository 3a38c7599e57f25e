package builtin

import "context"

// AddInput is the shared input shape of add and double_add: two numbers.
type AddInput struct {
	A float64 `flow:"a"`
	B float64 `flow:"b"`
}

// SumOutput is a running sum.
type SumOutput struct {
	Sum float64 `flow:"sum"`
}

// AddAction sums its two inputs in a single shot (§8 seed scenario E1:
// "addition chain, cache determinism").
type AddAction struct{ base }

func NewAddAction() *AddAction {
	return &AddAction{base{name: "add", cache: true}}
}

func (a *AddAction) NewInput() any { return &AddInput{} }

func (a *AddAction) Run(_ context.Context, input any) (any, error) {
	in := input.(*AddInput)
	return SumOutput{Sum: in.A + in.B}, nil
}

// DoubleAddAction streams two outputs per invocation: the sum, then its
// double (§8 seed scenario E2: against inputs a=1, b=2 it emits 3, then 6,
// which a streaming `add ... b=1` sink turns into [4, 7]).
type DoubleAddAction struct{ base }

func NewDoubleAddAction() *DoubleAddAction {
	return &DoubleAddAction{base{name: "double_add", cache: true}}
}

func (a *DoubleAddAction) NewInput() any { return &AddInput{} }

func (a *DoubleAddAction) Stream(_ context.Context, input any, emit func(any) error) error {
	in := input.(*AddInput)
	sum := in.A + in.B
	if err := emit(SumOutput{Sum: sum}); err != nil {
		return err
	}
	return emit(SumOutput{Sum: sum * 2})
}
