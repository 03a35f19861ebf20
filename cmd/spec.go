package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/samuelfneumann/goforce/experiment"
	"github.com/samuelfneumann/goforce/spec"
	"github.com/spf13/cobra"
)

var components bool

// SpecCommand returns the command which prints the specification of
// an agent configuration
func SpecCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "spec CONFIG",
		Short: "Print the specification of an agent configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := experiment.Load(args[0])
			if err != nil {
				return err
			}
			data, err := agentSpec(c, index, components)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	command.Flags().IntVarP(&index, "index", "i", 0,
		"Index of the agent configuration")
	command.Flags().BoolVar(&components, "components", false,
		"Print the specifications of the agent's components instead")
	return command
}

// agentSpec returns the JSON specification of the agent configuration
// at index i, or of its components
func agentSpec(c experiment.Config, i int, components bool) ([]byte, error) {
	conf := c.AgentConf.At(i)
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("spec: %v", err)
	}

	var s *spec.Dict
	if components {
		specer, ok := conf.(interface{ Components() *spec.Dict })
		if !ok {
			return nil, fmt.Errorf("spec: %v agents have no component "+
				"specification", conf.Type())
		}
		s = specer.Components()
	} else {
		specer, ok := conf.(interface{ Spec() *spec.Dict })
		if !ok {
			return nil, fmt.Errorf("spec: %v agents have no specification",
				conf.Type())
		}
		s = specer.Spec()
	}

	return json.MarshalIndent(s, "", "  ")
}
