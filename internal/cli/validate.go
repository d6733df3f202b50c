package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/molplace/pkg/composition"
)

// validateCommand creates the validate command.
func (c *CLI) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [composition.toml]",
		Short: "Check a composition without placing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, _, err := composition.Load(args[0])
			if err != nil {
				return err
			}
			c.Logger.Debug("composition loaded", "path", args[0], "rows", len(comp.Rows))

			printSuccess("%s is valid", StyleValue.Render(args[0]))
			printKeyValue("name", comp.Name)
			printKeyValue("box", fmt.Sprintf("%g × %g × %g", comp.Box.X, comp.Box.Y, comp.Box.Z))
			printKeyValue("seed", strconv.FormatUint(comp.Seed, 10))
			printKeyValue("particles", strconv.Itoa(comp.TotalParticles()))
			fmt.Println(rowTable(comp))
			printNextStep("Place it with", "molplace place "+args[0])
			return nil
		},
	}
}
