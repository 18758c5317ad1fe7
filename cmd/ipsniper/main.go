// Command ipsniper resolves a list of domains across a pool of DNS servers and
// records every domain that resolves to one of a set of target IPs.
//
// Usage:
//
//	ipsniper run [input] [output]   - Sweep input, writing matches to output
//	ipsniper status                 - Show the progress of a running sweep
//	ipsniper init                   - Write the default configuration file
//	ipsniper version                - Show version information
//
// Examples:
//
//	ipsniper run                                    - Sweep domains.txt into matching_domains.txt
//	ipsniper run hosts.txt hits.txt --concurrency 200
//	ipsniper run --targets 182.173.0.181,10.0.0.8 --retries 1
//	ipsniper run --status-socket /tmp/ipsniper.sock  - Expose live status while sweeping
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lc/ipsniper/internal/buildinfo"
	"github.com/lc/ipsniper/internal/config"
	"github.com/lc/ipsniper/internal/log"
	"github.com/lc/ipsniper/pkg/client"
)

func main() {
	var (
		configPath string
		logLevel   string
	)

	root := &cobra.Command{
		Use:   "ipsniper",
		Short: "Find domains that resolve to target IPs",
		Long: `ipsniper resolves a large list of domains against a pool of DNS servers
and records every domain whose A or AAAA answers include one of the target IPs.
Matches are written to the output file incrementally as they are found.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if cmd.Flags().Changed("log-level") {
				log.SetLevel(logLevel)
			}
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/"+config.DefaultConfigPath+")")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.New(configPath).Load()
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
		return cfg, nil
	}

	// ---- version command ----
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("version: %s\n", buildinfo.Version)
			fmt.Printf("commit: %s\n", buildinfo.Commit)
		},
	}

	// ---- init command ----
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Long: `Write the default configuration to the config path so it can be edited.
An existing file is left alone unless --force is given.`,
		Example: "ipsniper init --config ./ipsniper.yaml",
		RunE: func(_ *cobra.Command, _ []string) error {
			p := config.New(configPath)
			if err := p.Save(config.Default(), force); err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Print("✓ Wrote default configuration to ")
			color.New(color.FgHiWhite).Println(p.Path())
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")

	// ---- status command ----
	var socketPath string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the progress of a running sweep",
		Long: `Query the status socket of a sweep started with a status socket configured
(status.socket in the config file, or --status-socket on run).`,
		Example: "ipsniper status --socket /tmp/ipsniper.sock",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := socketPath
			if path == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Status.Socket
			}
			if path == "" {
				return fmt.Errorf("no status socket configured: set status.socket or pass --socket")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			st, err := client.New(path).Status(ctx)
			if err != nil {
				return err
			}
			renderStatus(os.Stdout, st)
			return nil
		},
	}
	statusCmd.Flags().StringVar(&socketPath, "socket", "", "status socket path (default from config)")

	root.AddCommand(newRunCmd(loadConfig), statusCmd, initCmd, versionCmd)
	err := root.Execute()
	log.Sync()
	if err != nil {
		os.Exit(1)
	}
}
