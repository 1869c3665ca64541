package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/skdltmxn/cvmerge/internal/config"
	"github.com/skdltmxn/cvmerge/internal/logflags"
)

var (
	outputFile string
	output     io.Writer

	configFile string
	conf       *config.Config

	logEnabled bool
	logOutput  string
)

var rootCmd = &cobra.Command{
	Use:   "cvmerge",
	Short: "CodeView type merger",
	Long: `cvmerge deduplicates the CodeView type records of COFF object files
and the type-server PDBs they reference into one TPI and one IPI stream,
and rewrites every type index in the objects' symbols accordingly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		conf, err = config.Load(configFile, !cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("log-output") && conf.Log != "" {
			logEnabled, logOutput = true, conf.Log
		}
		if err := logflags.Setup(logEnabled, logOutput, nil); err != nil {
			return err
		}

		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			output = f
		} else {
			output = os.Stdout
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if f, ok := output.(*os.File); ok && f != os.Stdout {
			f.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "write output to file instead of stdout")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultFile, "config file")
	rootCmd.PersistentFlags().BoolVar(&logEnabled, "log", false, "enable logging")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "", "comma separated list of layers to log: merge, typeserver, objfile")

	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(typesCmd)
}
