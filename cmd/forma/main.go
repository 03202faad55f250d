package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forma",
		Short: "Build, check and convert parametric solid documents",
		Long: `Forma evaluates Lisp construction sources into documents of solid
primitives and boolean operations, and turns documents into construction
scripts, other encodings, or meshes.

Inputs ending in .forma are evaluated as source; anything else is decoded
as a document using the codec named by its extension.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(cmd)
		},
	}
	rootCmd.PersistentFlags().String("config", "forma.yml", "Configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override log.level (debug|info|warn|error)")

	// Build command - evaluate source and write a document
	buildCmd := &cobra.Command{
		Use:   "build <source.forma>",
		Short: "Evaluate a source file and write the resulting document",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuild,
	}
	buildCmd.Flags().StringP("output", "o", "", "Output path (default: source name with the codec extension)")
	buildCmd.Flags().String("codec", "", "Document codec: json|yaml|msgpack (default from config)")

	// Compile command - print the construction script
	compileCmd := &cobra.Command{
		Use:   "compile <input>",
		Short: "Print the construction script of a source or document",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompile,
	}
	compileCmd.Flags().String("namespace", "", "Override script.namespace")
	compileCmd.Flags().Bool("bare", false, "Emit calls without a namespace")

	// Check command - audit document consistency
	checkCmd := &cobra.Command{
		Use:   "check <input>...",
		Short: "Report consistency problems; fails if any error is found",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCheck,
	}
	checkCmd.Flags().Bool("strict", false, "Treat warnings as errors")

	convertCmd := &cobra.Command{
		Use:   "convert <input> [output]",
		Short: "Re-encode a document",
		Long: `Re-encode a document or source. The codec is --to, or else inferred from
the output extension. Without an output path the input name is reused with
the codec's extension.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runConvert,
	}
	convertCmd.Flags().String("to", "", "Output codec: json|yaml|msgpack")

	meshCmd := &cobra.Command{
		Use:   "mesh <input>",
		Short: "Tessellate the result shapes and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE:  runMesh,
	}
	meshCmd.Flags().Int("cells", 0, "Override kernel.mesh_cells")

	watchCmd := &cobra.Command{
		Use:   "watch <source.forma>...",
		Short: "Rebuild documents whenever their sources change",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWatch,
	}
	watchCmd.Flags().String("codec", "", "Document codec: json|yaml|msgpack (default from config)")

	rootCmd.AddCommand(buildCmd, compileCmd, checkCmd, convertCmd, meshCmd, watchCmd)
	return rootCmd
}
