package config

import (
	"reflect"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// durationDecodeHook lets every time.Duration field in Config accept Go's
// native format ("30s", "1h30m") as well as human-readable forms
// str2duration understands ("1 day", "2 hours"), so an operator writing
// container_idle_timeout: "1 day" in config.yaml doesn't need to convert
// it to "24h" by hand. Returned as a concrete func value (rather than the
// mapstructure.DecodeHookFunc interface alias) so it stays directly
// callable from tests.
func durationDecodeHook() func(reflect.Type, reflect.Type, any) (any, error) {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
		return str2duration.ParseDuration(s)
	}
}
