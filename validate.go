// FILE: strata/validate.go
package strata

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// coerce converts a parsed value to the declared schema type. Values
// from text-only sources (env, .env, flags) arrive as strings; values
// from self-typed formats arrive native. Coercion rules live here and
// nowhere else.
func coerce(v Value, t Type) (Value, error) {
	switch t {
	case TypeString:
		switch v.kind {
		case KindString:
			return v, nil
		case KindInt, KindFloat, KindBool:
			return String(v.String()), nil
		}

	case TypeInt:
		switch v.kind {
		case KindInt:
			return v, nil
		case KindString:
			s := strings.TrimSpace(v.raw.(string))
			i, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return Null(), fmt.Errorf("cannot parse %q as int", s)
			}
			return Int(i), nil
		case KindFloat:
			f := v.raw.(float64)
			if f != math.Trunc(f) || f < -9.223372036854775e18 || f > 9.223372036854775e18 {
				return Null(), fmt.Errorf("float %v is not an integer", f)
			}
			return Int(int64(f)), nil
		}

	case TypeFloat:
		switch v.kind {
		case KindFloat:
			return v, nil
		case KindInt:
			return Float(float64(v.raw.(int64))), nil
		case KindString:
			s := strings.TrimSpace(v.raw.(string))
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Null(), fmt.Errorf("cannot parse %q as float", s)
			}
			return Float(f), nil
		}

	case TypeBool:
		switch v.kind {
		case KindBool:
			return v, nil
		case KindString:
			b, err := parseBoolString(v.raw.(string))
			if err != nil {
				return Null(), err
			}
			return Bool(b), nil
		}

	case TypeList:
		switch v.kind {
		case KindList:
			return v, nil
		case KindString:
			// Comma-split, matching the decode hook used for struct
			// scanning, so env vars can express lists.
			s := strings.TrimSpace(v.raw.(string))
			if s == "" {
				return List(), nil
			}
			parts := strings.Split(s, ",")
			elems := make([]Value, len(parts))
			for i, p := range parts {
				elems[i] = String(strings.TrimSpace(p))
			}
			return List(elems...), nil
		}
	}

	return Null(), fmt.Errorf("cannot coerce %s to %s", v.kind, t)
}

// parseBoolString accepts strconv.ParseBool forms plus the usual
// config spellings yes/no/on/off.
func parseBoolString(s string) (bool, error) {
	if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
		return b, nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("cannot parse %q as bool", s)
}

// describeValue renders a value for the Got side of mismatch errors.
func describeValue(v Value) string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return fmt.Sprintf("string %q", v.raw.(string))
	default:
		return v.kind.String() + " " + v.String()
	}
}

// validate applies the schema to a resolved tree: defaults for absent
// keys, required-key enforcement, type coercion, choices membership,
// custom checks, and the strict/lenient unknown-key policy. Every
// problem is collected before returning so one run reports them all.
func validate(res *Resolved, schema Schema, mode Mode, loadWarnings []string, logger *slog.Logger) (*Store, error) {
	tree := copyTree(res.tree)
	prov := make(map[string]Provenance, len(res.prov))
	for k, p := range res.prov {
		prov[k] = p
	}

	var errs Errors
	warnings := append([]string(nil), loadWarnings...)

	for _, key := range schema.Keys() {
		entry := schema[key]

		raw, present := res.lookupRaw(key)
		if !present {
			if entry.Default != nil {
				dv, err := fromRaw(entry.Default)
				if err == nil {
					dv, err = coerce(dv, entry.Type)
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("schema default for %q: %w", key, err))
					continue
				}
				setNestedValue(tree, key, dv)
				prov[key] = Provenance{Origin: OriginDefaults, Rank: RankDefaults}
			} else if entry.Required {
				errs = append(errs, &MissingRequiredKeyError{Key: key})
			}
			continue
		}

		val, isLeaf := raw.(Value)
		if !isLeaf {
			errs = append(errs, &TypeMismatchError{Key: key, Expected: entry.Type.String(), Got: "table"})
			continue
		}

		coerced, err := coerce(val, entry.Type)
		if err != nil {
			errs = append(errs, &TypeMismatchError{Key: key, Expected: entry.Type.String(), Got: describeValue(val)})
			continue
		}

		if len(entry.Choices) > 0 && !choiceAllowed(coerced, entry) {
			errs = append(errs, &TypeMismatchError{
				Key:      key,
				Expected: "one of " + choiceList(entry),
				Got:      coerced.String(),
			})
			continue
		}

		if entry.Validate != nil {
			if err := entry.Validate(coerced); err != nil {
				errs = append(errs, fmt.Errorf("invalid value for %q: %w", key, err))
				continue
			}
		}

		setNestedValue(tree, key, coerced)
	}

	for _, leaf := range res.Leaves() {
		if _, declared := schema[leaf]; declared {
			continue
		}
		p := res.prov[leaf]
		if mode == Strict {
			errs = append(errs, &UnknownKeyError{Key: leaf, Origin: p.Origin})
			continue
		}
		warnings = append(warnings, fmt.Sprintf("unknown key %q (set by %s) passed through", leaf, p.Origin))
		logger.Warn("unknown config key passed through", "key", leaf, "origin", p.Origin)
	}

	if err := errs.errOrNil(); err != nil {
		return nil, err
	}
	return newStore(tree, prov, schema, mode, warnings), nil
}

// choiceAllowed reports whether the coerced value matches one of the
// entry's choices, compared after coercing each choice the same way.
func choiceAllowed(v Value, entry Entry) bool {
	for _, c := range entry.Choices {
		cv, err := fromRaw(c)
		if err != nil {
			continue
		}
		cv, err = coerce(cv, entry.Type)
		if err != nil {
			continue
		}
		if v.Equal(cv) {
			return true
		}
	}
	return false
}

func choiceList(entry Entry) string {
	parts := make([]string, 0, len(entry.Choices))
	for _, c := range entry.Choices {
		if cv, err := fromRaw(c); err == nil {
			parts = append(parts, cv.String())
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
