// FILE: strata/decode.go
package strata

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// scanTagName is the struct tag consulted when decoding resolved
// configuration into application structs.
const scanTagName = "config"

// Scan decodes the entire resolved tree into target, which must be a
// non-nil pointer to a struct. Field names are matched via the
// "config" tag, falling back to case-insensitive field names.
func (s *Store) Scan(target any) error {
	return s.scanSection("", target)
}

// ScanKey decodes the subtree at a dot-separated path into target.
func (s *Store) ScanKey(path string, target any) error {
	if err := validatePath(path); err != nil {
		return err
	}
	return s.scanSection(path, target)
}

// ScanValidated decodes like Scan and then runs struct-tag validation
// (the "validate" tag) on the result. All failing fields are reported.
func (s *Store) ScanValidated(target any) error {
	if err := s.Scan(target); err != nil {
		return err
	}
	if err := structValidator.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			var errs Errors
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("field %s fails validation rule %q", fe.Namespace(), fe.Tag()))
			}
			return errs.errOrNil()
		}
		return err
	}
	return nil
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// scanSection is the single authoritative decode path; Scan and
// ScanKey both delegate here.
func (s *Store) scanSection(path string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("scan target must be a non-nil pointer, got %T", target)
	}

	tree := s.Export()
	section := any(tree)
	if path != "" {
		raw, ok := lookupPath(tree, path)
		if !ok {
			return fmt.Errorf("key %q: %w", path, ErrKeyNotFound)
		}
		section = raw
	}
	sectionMap, ok := section.(map[string]any)
	if !ok {
		return &TypeMismatchError{Key: path, Expected: "table", Got: fmt.Sprintf("%T", section)}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          scanTagName,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		DecodeHook:       scanDecodeHook(),
	})
	if err != nil {
		return fmt.Errorf("decoder creation failed: %w", err)
	}
	if err := decoder.Decode(sectionMap); err != nil {
		return fmt.Errorf("decode failed for key %q: %w", path, err)
	}
	return nil
}

// scanDecodeHook composes the conversions applied during struct
// scanning: common network types, durations (with day units),
// RFC 3339 timestamps, and comma-separated lists. Network types go
// first: net.IP is itself a slice kind, so the generic slice hook
// would otherwise capture it.
func scanDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		stringToNetIPHookFunc(),
		stringToNetIPNetHookFunc(),
		stringToURLHookFunc(),
		stringToDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// stringToDurationHookFunc converts strings to time.Duration using
// parseDuration, so "2d" works in struct fields as well as GetDuration.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return parseDuration(data.(string))
	}
}

// stringToNetIPHookFunc converts strings to net.IP.
func stringToNetIPHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t != reflect.TypeOf(net.IP{}) {
			return data, nil
		}
		str := data.(string)
		if len(str) > 45 { // max textual IPv6 length
			return nil, fmt.Errorf("invalid IP length: %d", len(str))
		}
		ip := net.ParseIP(str)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address: %s", str)
		}
		return ip, nil
	}
}

// stringToNetIPNetHookFunc converts CIDR strings to net.IPNet.
func stringToNetIPNetHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		isPtr := t.Kind() == reflect.Ptr
		targetType := t
		if isPtr {
			targetType = t.Elem()
		}
		if targetType != reflect.TypeOf(net.IPNet{}) {
			return data, nil
		}
		str := data.(string)
		if len(str) > 49 { // max IPv6 CIDR length
			return nil, fmt.Errorf("invalid CIDR length: %d", len(str))
		}
		_, ipnet, err := net.ParseCIDR(str)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR: %w", err)
		}
		if isPtr {
			return ipnet, nil
		}
		return *ipnet, nil
	}
}

// stringToURLHookFunc converts strings to url.URL.
func stringToURLHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		isPtr := t.Kind() == reflect.Ptr
		targetType := t
		if isPtr {
			targetType = t.Elem()
		}
		if targetType != reflect.TypeOf(url.URL{}) {
			return data, nil
		}
		str := data.(string)
		if len(str) > 2048 {
			return nil, fmt.Errorf("URL too long: %d bytes", len(str))
		}
		u, err := url.Parse(str)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		if isPtr {
			return u, nil
		}
		return *u, nil
	}
}

// parseDuration is time.ParseDuration extended with a "d" unit of 24
// hours, which may carry a fractional count and be followed by the
// standard units, e.g. "1.5d" or "2d12h".
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	i := strings.IndexByte(s, 'd')
	if i <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	days, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	var tail time.Duration
	if rest := s[i+1:]; rest != "" {
		tail, err = time.ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
	}
	return time.Duration(days*24*float64(time.Hour)) + tail, nil
}
