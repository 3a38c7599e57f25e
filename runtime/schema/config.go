package schema

import (
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

func init() {
	validate.RegisterValidation("hostname_port", func(fl validator.FieldLevel) bool {
		host, port, err := net.SplitHostPort(fl.Field().String())
		if err != nil || host == "" || port == "" {
			return false
		}
		_, err = net.LookupPort("tcp", port)
		return err == nil
	})
	validate.RegisterValidation("dsn", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if strings.Contains(s, "://") {
			_, err := url.Parse(s)
			return err == nil
		}
		return strings.Contains(s, "@") && strings.Contains(s, "/")
	})
}

// InitializeConfig is the single entry point backend configs (cache/blob)
// go through: defaults → raw value merge → validation, exactly the
// teacher's runtime/config.go InitializeConfig. The root ActionConfig is
// decoded by the flow loader and does not pass through it.
func InitializeConfig(config any, rawValues map[string]any) error {
	if err := defaults.Set(config); err != nil {
		return fmt.Errorf("schema: apply defaults: %w", err)
	}
	if len(rawValues) > 0 {
		decoder, err := mapstructureDecoder(config)
		if err != nil {
			return fmt.Errorf("schema: build config decoder: %w", err)
		}
		if err := decoder.Decode(rawValues); err != nil {
			return fmt.Errorf("schema: merge config values: %w", err)
		}
	}

	elem := reflect.ValueOf(config)
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if err := validate.Struct(elem.Interface()); err != nil {
		return fmt.Errorf("schema: %w", describeValidation(err))
	}
	return nil
}

func mapstructureDecoder(config any) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           config,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
}
