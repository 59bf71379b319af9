package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/keyforge/pkg/carpalx"
	"github.com/matzehuels/keyforge/pkg/keyboard"
	"github.com/matzehuels/keyforge/pkg/layout"
	"github.com/matzehuels/keyforge/pkg/pipeline"
)

// modelsCommand creates the models command.
func (c *CLI) modelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the built-in effort models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range carpalx.Models() {
				printCatalogEntry(name, name == pipeline.DefaultModel)
			}
			printNewline()
			printNextStep("Customize", appName+" models show mod01 > my-model.toml")
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "show <model>",
		Short:     "Print a model as TOML",
		Args:      cobra.ExactArgs(1),
		ValidArgs: carpalx.Models(),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := carpalx.LoadModel(args[0])
			if err != nil {
				return err
			}
			return m.Encode(os.Stdout)
		},
	})

	return cmd
}

// layoutsCommand creates the layouts command.
func (c *CLI) layoutsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layouts",
		Short: "List the built-in layouts and keyboards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printInfo("Layouts")
			for _, name := range layout.Builtin() {
				printCatalogEntry(name, name == defaultLayout)
			}
			printNewline()
			printInfo("Keyboards")
			for _, name := range keyboard.Builtin() {
				printCatalogEntry(name, name == pipeline.DefaultKeyboard)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "show <layout>",
		Short:     "Print a layout definition as TOML",
		Args:      cobra.ExactArgs(1),
		ValidArgs: layout.Builtin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := layout.Load(args[0])
			if err != nil {
				return err
			}
			return def.Encode(os.Stdout)
		},
	})

	return cmd
}

func printCatalogEntry(name string, isDefault bool) {
	if isDefault {
		printDetail("%s (default)", name)
		return
	}
	printDetail("%s", name)
}
