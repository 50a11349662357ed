package config

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DecoderOptions keeps viper's default conversions (durations and comma separated slices) and adds the given hooks.
func DecoderOptions(hooks ...mapstructure.DecodeHookFunc) viper.DecoderConfigOption {
	all := append([]mapstructure.DecodeHookFunc{
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	}, hooks...)
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(all...))
}

// StringEnumHookFunc validates strings decoded into T with parse, so that a typo in an enum-like
// setting fails config loading instead of surfacing later.
func StringEnumHookFunc[T ~string](parse func(string) (T, error)) mapstructure.DecodeHookFuncType {
	var zero T
	target := reflect.TypeOf(zero)
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// check that src and target types are valid
		if f.Kind() != reflect.String || t != target {
			return data, nil
		}
		return parse(data.(string))
	}
}
