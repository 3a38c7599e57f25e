package schema

import (
	"fmt"
	"reflect"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// validate is shared across every DecodeInput call the way the teacher
// keeps a single package-level *validator.Validate (runtime/config.go).
var validate = validator.New()

// DecodeInput decodes a context-assembled input map into target (a
// pointer to the action's declared input struct) using the "flow" tag for
// field mapping, then validates it (§3.3: "validate inputs assembled from
// context against the declared input type"). Target may also be
// *map[string]any for an action with no fixed input schema.
func DecodeInput(values map[string]any, target any) error {
	if isStructPtr(target) {
		if err := defaults.Set(target); err != nil {
			return fmt.Errorf("schema: apply defaults: %w", err)
		}
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "flow",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("schema: build decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return fmt.Errorf("schema: decode input: %w", err)
	}

	elem := reflect.ValueOf(target)
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return nil
	}
	if err := validate.Struct(elem.Interface()); err != nil {
		return fmt.Errorf("schema: %w", describeValidation(err))
	}
	return nil
}

// EncodeOutput converts a struct output value into a field map, the form
// the engine broadcasts and the cache stores.
func EncodeOutput(out any) (map[string]any, error) {
	if m, ok := out.(map[string]any); ok {
		return m, nil
	}
	if rec, ok := out.(*Record); ok {
		return rec.Fields, nil
	}
	var generic map[string]any
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &generic,
		TagName: "flow",
	})
	if err != nil {
		return nil, fmt.Errorf("schema: build encoder: %w", err)
	}
	if err := decoder.Decode(out); err != nil {
		return nil, fmt.Errorf("schema: encode output: %w", err)
	}
	return generic, nil
}

func isStructPtr(target any) bool {
	v := reflect.ValueOf(target)
	return v.Kind() == reflect.Ptr && !v.IsNil() && v.Elem().Kind() == reflect.Struct
}

func describeValidation(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msg := ""
	for _, fe := range verrs {
		if msg != "" {
			msg += "; "
		}
		msg += fmt.Sprintf("field %q failed %q", fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%s", msg)
}
