package main

import (
	"context"
	"fmt"
	"os"

	"vpresent"
	"vpresent/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "vpresent",
	Short: "Video frame presenter",
	Long:  `vpresent plays a synthetic video stream through the frame scheduler and presenter.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "vpresent %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", buildDate)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play a stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("config")

		cfg, err := loadConfig(viper.New(), cmd.Flags(), file)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log.Init("vpresent",
			log.OptionWithLevel(cfg.Log.Level),
			log.OptionWithEncoding(cfg.Log.Encoding))
		defer log.Sync()

		a := vpresent.NewApp(cfg.options()...)
		if err := a.Run(context.Background()); err != nil {
			log.Error("Run", zap.String("err", err.Error()))
			return err
		}

		s := a.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "drawn %d dropped %d jitter %s\n", s.FramesDrawn, s.FramesDropped, s.Jitter)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)

	addFlags(runCmd.Flags())

	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
