// modpack-localizer turns English CurseForge modpacks into
// localization bundles: a resourcepack with translated lang files and
// an overrides archive with translated FTB Quests text.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zack-zzq/modpack-localizer/pkg/log"
)

var (
	// cfgFile allows specifying a custom config file
	cfgFile string
	// verbose enables debug logging
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "modpack-localizer",
		Short: "Incremental localization pipeline for CurseForge modpacks",
		Long: `modpack-localizer downloads CurseForge modpacks and produces
localization bundles for them: a resourcepack archive with translated
mod and KubeJS lang files, and an overrides archive with translated
FTB Quests text.

The pipeline is incremental: completed work is kept on disk and
skipped on the next run. Delete a unit's directory under the work tree
to force it through the pipeline again.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.InitLogger(log.LevelDebug)
			} else {
				log.InitLogger(log.ParseLevel(os.Getenv("LOG_LEVEL")))
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "path to the TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
