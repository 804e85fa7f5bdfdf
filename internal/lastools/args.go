package lastools

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BuildArgs renders an argument list for the tool: "-i <input>" first, then
// the validated parameters in sorted order, then any extra arguments
// verbatim. Parameter values follow the suite's conventions:
//
//	switch        -> -flag
//	list "a b c"  -> -flag a b c
//	anything else -> -flag value
//
// A switch set to "false" (or empty) is omitted.
func (t *Tool) BuildArgs(input string, values map[string]string, extra []string) ([]string, error) {
	args := []string{"-i", input}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def, ok := t.Params[name]
		if !ok {
			return nil, fmt.Errorf("%s: unknown parameter %q", t.Name, name)
		}
		rendered, err := def.render(name, values[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name, err)
		}
		args = append(args, rendered...)
	}

	return append(args, extra...), nil
}

func (d ParamDef) render(name, value string) ([]string, error) {
	flag := "-" + name

	switch d.Kind {
	case KindSwitch:
		on, err := parseSwitch(value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		if !on {
			return nil, nil
		}
		return []string{flag}, nil

	case KindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %q is not an integer", name, value)
		}
		if err := d.checkBounds(name, float64(n)); err != nil {
			return nil, err
		}
		return []string{flag, strconv.Itoa(n)}, nil

	case KindFloat:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %q is not a number", name, value)
		}
		if err := d.checkBounds(name, v); err != nil {
			return nil, err
		}
		return []string{flag, value}, nil

	case KindList:
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return nil, fmt.Errorf("parameter %q: list value is empty", name)
		}
		return append([]string{flag}, fields...), nil

	default: // KindString
		if value == "" {
			return nil, fmt.Errorf("parameter %q: value is empty", name)
		}
		return []string{flag, value}, nil
	}
}

func (d ParamDef) checkBounds(name string, v float64) error {
	if d.Min != nil && v < *d.Min {
		return fmt.Errorf("parameter %q: %g is below minimum %g", name, v, *d.Min)
	}
	if d.Max != nil && v > *d.Max {
		return fmt.Errorf("parameter %q: %g is above maximum %g", name, v, *d.Max)
	}
	return nil
}

func parseSwitch(value string) (bool, error) {
	switch value {
	case "", "true", "on", "1", "yes":
		return true, nil
	case "false", "off", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", value)
}

// ParseKeyValues converts "key=value" strings (the -p flag) into a value
// map. A bare key is a switch turned on.
func ParseKeyValues(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		if key == "" {
			return nil, fmt.Errorf("invalid parameter %q", pair)
		}
		if _, dup := values[key]; dup {
			return nil, fmt.Errorf("duplicate parameter %q", key)
		}
		values[key] = value
	}
	return values, nil
}
