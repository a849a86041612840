package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List the operator schemas loaded from the schema file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if registry.Len() == 0 {
			fmt.Fprintln(out, "no schemas loaded (set --schemas or ONNXINLINE_SCHEMAS)")
			return nil
		}
		for _, s := range registry.All() {
			name := s.Name
			if s.Domain != "" {
				name = s.Domain + "::" + s.Name
			}
			var attrs []string
			for _, attr := range s.AttributeNames() {
				spec := s.Attributes[attr]
				switch {
				case spec.Default != nil:
					attrs = append(attrs, fmt.Sprintf("%s=%s", attr, spec.Default))
				case spec.Required:
					attrs = append(attrs, attr+"!")
				default:
					attrs = append(attrs, attr)
				}
			}
			fmt.Fprintf(out, "%s-%d\t%s\n", name, s.SinceVersion, strings.Join(attrs, " "))
		}
		return nil
	},
}
