package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"bvc/internal/browse"
	"bvc/internal/config"
	"bvc/internal/encoding"
	"bvc/internal/history"
	"bvc/internal/logging"
	"bvc/internal/services/ffmpeg"
	"bvc/internal/session"
	"bvc/internal/shell"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var dirFlag string
	var logLevelFlag string

	rootCmd := &cobra.Command{
		Use:           "bvc",
		Short:         "Interactive batch video compressor",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(configFlag)
			if err != nil {
				return err
			}
			if logLevelFlag != "" {
				cfg.Logging.Level = logLevelFlag
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			startDir := dirFlag
			if startDir == "" {
				startDir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("determine working directory: %w", err)
				}
			}

			lister := browse.NewLister(
				browse.FFprobeProber{Binary: cfg.Encoder.FFprobeBinary},
				cfg.VisibleExtension,
				logger,
			)
			s, err := session.New(cmd.Context(), lister, cfg.PresetKbps, startDir, logger)
			if err != nil {
				return err
			}

			store, err := history.Open()
			if err != nil {
				return err
			}
			defer store.Close()

			client := ffmpeg.NewCLI(
				ffmpeg.WithBinary(cfg.Encoder.FFmpegBinary),
				ffmpeg.WithCodec(cfg.Encoder.VideoCodec),
			)
			runner := encoding.NewRunner(
				client,
				browse.FFprobeProber{Binary: cfg.Encoder.FFprobeBinary},
				store,
				logger,
			)

			sh := shell.New(shell.Options{
				Session:     s,
				Runner:      runner,
				History:     store,
				Input:       os.Stdin,
				Output:      os.Stdout,
				Interactive: isatty.IsTerminal(os.Stdout.Fd()),
				Logger:      logger,
			})
			return sh.Run(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.Flags().StringVarP(&dirFlag, "dir", "d", "", "Directory to start browsing in")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(newConfigCommand(&configFlag))

	return rootCmd
}

func newConfigCommand(configFlag *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *configFlag
			if path == "" {
				var err error
				path, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			if exists {
				fmt.Fprintf(cmd.OutOrStdout(), "Using %s\n", path)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "No configuration file found; using defaults.")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ffmpeg:  %s\n", cfg.Encoder.FFmpegBinary)
			fmt.Fprintf(cmd.OutOrStdout(), "ffprobe: %s\n", cfg.Encoder.FFprobeBinary)
			fmt.Fprintf(cmd.OutOrStdout(), "codec:   %s\n", cfg.Encoder.VideoCodec)
			fmt.Fprintf(cmd.OutOrStdout(), "presets: low=%d medium=%d high=%d kbps\n",
				cfg.Presets.Low, cfg.Presets.Medium, cfg.Presets.High)
			return nil
		},
	}

	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	return configCmd
}
