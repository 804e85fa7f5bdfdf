package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/laspilot/laspilot/internal/lastools"
)

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools [name]",
		Short: "List known tools, or show one tool's parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				for _, name := range e.catalog.Names() {
					t, _ := e.catalog.Tool(name)
					fmt.Printf("  %-12s %s\n", name, t.Description)
				}
				return nil
			}

			tool, err := e.tool(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s — %s\n\n", tool.Name, tool.Description)
			for _, pname := range tool.ParamNames() {
				def := tool.Params[pname]
				fmt.Printf("  -p %-22s %-8s %s%s\n", pname, def.Kind, def.Label, bounds(def))
			}
			return nil
		},
	}
}

func bounds(def lastools.ParamDef) string {
	var parts []string
	if def.Min != nil {
		parts = append(parts, fmt.Sprintf("min %g", *def.Min))
	}
	if def.Max != nil {
		parts = append(parts, fmt.Sprintf("max %g", *def.Max))
	}
	if def.Default != "" {
		parts = append(parts, "default "+def.Default)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
