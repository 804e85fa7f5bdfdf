// Package lastools describes the LAStools command-line suite: which tools
// exist, which parameters they accept, and how a parameter set turns into
// an argument list. The tools themselves are external executables; nothing
// here touches LAS/LAZ data.
package lastools

import (
	"fmt"
	"sort"
)

// ParamKind is the value type of a tool parameter.
type ParamKind string

const (
	KindSwitch ParamKind = "switch" // bare flag, no value
	KindInt    ParamKind = "int"
	KindFloat  ParamKind = "float"
	KindString ParamKind = "string"
	KindList   ParamKind = "list" // flag followed by multiple values
)

// ParamDef describes one parameter of a tool. The flag name is the map key
// in Tool.Params; the rendered flag is "-<name>".
type ParamDef struct {
	Kind    ParamKind `json:"kind"`
	Label   string    `json:"label,omitempty"`
	Default string    `json:"default,omitempty"`
	Min     *float64  `json:"min,omitempty"`
	Max     *float64  `json:"max,omitempty"`
}

// Tool is one entry in the catalog.
type Tool struct {
	Name        string              `json:"-"`
	Description string              `json:"description,omitempty"`
	Params      map[string]ParamDef `json:"params,omitempty"`
}

// Catalog holds the known tools, keyed by executable name.
type Catalog struct {
	tools map[string]*Tool
}

// DefaultCatalog returns the built-in tool set. The parameter lists cover
// the commonly used flags; anything else can be passed through verbatim
// with the extra-args mechanism.
func DefaultCatalog() *Catalog {
	c := &Catalog{tools: make(map[string]*Tool)}
	for _, t := range builtinTools {
		tool := t
		c.tools[tool.Name] = &tool
	}
	return c
}

var builtinTools = []Tool{
	{
		Name:        "lasinfo",
		Description: "report header and point statistics of a LAS/LAZ file",
		Params: map[string]ParamDef{
			"compute_density":  {Kind: KindSwitch, Label: "Compute point density"},
			"repair":           {Kind: KindSwitch, Label: "Repair header inconsistencies"},
			"no_check":         {Kind: KindSwitch, Label: "Skip point check pass"},
			"nh":               {Kind: KindSwitch, Label: "Omit header output"},
			"nv":               {Kind: KindSwitch, Label: "Omit variable length records"},
			"histo":            {Kind: KindList, Label: "Histogram of attribute with step"},
			"set_bounding_box": {Kind: KindList, Label: "Override bounding box"},
		},
	},
	{
		Name:        "lasindex",
		Description: "create a spatial index (LAX) for a LAS/LAZ file",
		Params: map[string]ParamDef{
			"tile_size":    {Kind: KindFloat, Label: "Tile size", Min: f(0)},
			"maximum":      {Kind: KindInt, Label: "Max intervals per tile", Min: f(1)},
			"append":       {Kind: KindSwitch, Label: "Append LAX inside the LAZ file"},
			"dont_reindex": {Kind: KindSwitch, Label: "Skip files that already have an index"},
		},
	},
	{
		Name:        "las2las",
		Description: "filter, transform, or re-project LAS/LAZ files",
		Params: map[string]ParamDef{
			"target_epsg":  {Kind: KindInt, Label: "Target EPSG code", Min: f(1024), Max: f(32767)},
			"keep_class":   {Kind: KindList, Label: "Keep only these classifications"},
			"drop_class":   {Kind: KindList, Label: "Drop these classifications"},
			"scale_rgb_up": {Kind: KindSwitch, Label: "Scale 8-bit RGB up to 16-bit"},
			"point_type":   {Kind: KindInt, Label: "Output point type", Min: f(0), Max: f(10)},
		},
	},
	{
		Name:        "laszip",
		Description: "compress LAS to LAZ or decompress LAZ to LAS",
		Params: map[string]ParamDef{
			"size": {Kind: KindSwitch, Label: "Report sizes only"},
		},
	},
	{
		Name:        "lasground",
		Description: "classify ground points",
		Params: map[string]ParamDef{
			"step":           {Kind: KindFloat, Label: "Step size", Min: f(0)},
			"offset":         {Kind: KindFloat, Label: "Max offset above current estimate", Min: f(0)},
			"city":           {Kind: KindSwitch, Label: "Preset for large buildings"},
			"town":           {Kind: KindSwitch, Label: "Preset for towns"},
			"wilderness":     {Kind: KindSwitch, Label: "Preset for steep terrain"},
			"compute_height": {Kind: KindSwitch, Label: "Store height above ground"},
		},
	},
	{
		Name:        "lasnoise",
		Description: "flag or remove isolated noise points",
		Params: map[string]ParamDef{
			"isolated":     {Kind: KindInt, Label: "Isolation threshold", Min: f(1)},
			"step_xy":      {Kind: KindFloat, Label: "Horizontal cell size", Min: f(0)},
			"step_z":       {Kind: KindFloat, Label: "Vertical cell size", Min: f(0)},
			"remove_noise": {Kind: KindSwitch, Label: "Drop noise points instead of classifying"},
		},
	},
	{
		Name:        "lasthin",
		Description: "thin points with a grid",
		Params: map[string]ParamDef{
			"step":    {Kind: KindFloat, Label: "Grid cell size", Min: f(0)},
			"random":  {Kind: KindSwitch, Label: "Keep a random point per cell"},
			"central": {Kind: KindSwitch, Label: "Keep the most central point per cell"},
		},
	},
	{
		Name:        "lasmerge",
		Description: "merge several LAS/LAZ files into one",
		Params: map[string]ParamDef{
			"rescale": {Kind: KindList, Label: "Rescale x y z"},
		},
	},
}

func f(v float64) *float64 { return &v }

// Tool looks up a tool by name.
func (c *Catalog) Tool(name string) (*Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Names returns the tool names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParamNames returns the tool's parameter names in sorted order.
func (t *Tool) ParamNames() []string {
	names := make([]string, 0, len(t.Params))
	for name := range t.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// add merges a tool definition into the catalog: unknown tools are added,
// known tools get their parameter sets extended or overridden.
func (c *Catalog) add(name string, t *Tool) error {
	if name == "" {
		return fmt.Errorf("tool with empty name")
	}
	existing, ok := c.tools[name]
	if !ok {
		t.Name = name
		if t.Params == nil {
			t.Params = make(map[string]ParamDef)
		}
		c.tools[name] = t
		return nil
	}
	if t.Description != "" {
		existing.Description = t.Description
	}
	for pname, def := range t.Params {
		existing.Params[pname] = def
	}
	return nil
}
