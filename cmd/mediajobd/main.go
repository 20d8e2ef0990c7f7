// mediajobd — a long-running HTTP job server for media processing:
// transcription, download, keyframe extraction, and video composition.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forgemedia/mediajobs/internal/cliout"
	"github.com/forgemedia/mediajobs/internal/config"
	"github.com/forgemedia/mediajobs/internal/hardware"
	"github.com/forgemedia/mediajobs/internal/logging"
	"github.com/forgemedia/mediajobs/internal/server"
)

var version = "0.1.0"

func main() {
	var configPath string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:     "mediajobd",
		Short:   "Media processing job server",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON config file overlaying the defaults")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit subcommand results as JSON instead of plain text")

	rootCmd.AddCommand(serveCmd(&configPath), probeHardwareCmd(&configPath, &jsonOutput), versionCmd(&jsonOutput))

	if err := rootCmd.Execute(); err != nil {
		if jsonOutput {
			_ = cliout.Failure(err)
		} else {
			fmt.Fprintln(os.Stderr, cliout.Format(err))
		}
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP job server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			level, err := logging.ParseLevel(cfg.Logging.Level)
			if err != nil {
				return err
			}
			log := logging.New(&logging.Config{
				Level:  level,
				Format: logging.ParseFormat(cfg.Logging.Format),
				Output: os.Stdout,
			})

			srv, err := server.New(cfg, log)
			if err != nil {
				return fmt.Errorf("initialize server: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return srv.Run(ctx)
		},
	}
}

type hardwareProbeResult struct {
	Preferred string   `json:"preferred"`
	Available []string `json:"available"`
}

func probeHardwareCmd(configPath *string, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "probe-hardware",
		Short: "Probe the codec tool for an accelerated encoder and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			prober := hardware.New(cfg.Tools.Codec)
			available := prober.Available()
			preferred := prober.Preferred()

			if *jsonOutput {
				return cliout.Success(hardwareProbeResult{Preferred: preferred, Available: available})
			}

			if len(available) == 0 {
				fmt.Println("no accelerated encoder available; falling back to software encoding")
				return nil
			}
			fmt.Printf("preferred: %s\n", preferred)
			fmt.Printf("available: %v\n", available)
			return nil
		},
	}
}

func versionCmd(jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *jsonOutput {
				return cliout.Success(map[string]string{"version": version})
			}
			fmt.Println(version)
			return nil
		},
	}
}
