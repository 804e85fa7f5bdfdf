package lastools

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadParamsFile reads a JSON parameter definition file and merges it into
// the catalog. The file maps tool names to parameter definitions:
//
//	{
//	  "lasinfo": {
//	    "description": "...",
//	    "params": {
//	      "compute_density": {"kind": "switch", "label": "Compute density"}
//	    }
//	  }
//	}
//
// Known tools are extended, unknown tools are added.
func (c *Catalog) LoadParamsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read params file: %w", err)
	}

	var file map[string]*Tool
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse params file %s: %w", path, err)
	}

	for name, tool := range file {
		if tool == nil {
			continue
		}
		if err := validateTool(name, tool); err != nil {
			return fmt.Errorf("params file %s: %w", path, err)
		}
		if err := c.add(name, tool); err != nil {
			return fmt.Errorf("params file %s: %w", path, err)
		}
	}
	return nil
}

func validateTool(name string, t *Tool) error {
	for pname, def := range t.Params {
		if pname == "" {
			return fmt.Errorf("tool %q has a parameter with an empty name", name)
		}
		switch def.Kind {
		case KindSwitch, KindInt, KindFloat, KindString, KindList:
		case "":
			return fmt.Errorf("tool %q parameter %q has no kind", name, pname)
		default:
			return fmt.Errorf("tool %q parameter %q has unknown kind %q", name, pname, def.Kind)
		}
		if def.Min != nil && def.Max != nil && *def.Min > *def.Max {
			return fmt.Errorf("tool %q parameter %q: min > max", name, pname)
		}
	}
	return nil
}
