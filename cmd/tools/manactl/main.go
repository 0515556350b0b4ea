// Command manactl inspects the turn pipeline offline and smoke-tests the configured
// speech and chat vendors.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/mana-voice/backend/internal/config"
	"github.com/zhouzirui/mana-voice/backend/pkg/log"
)

type app struct {
	configPath string
	timeout    time.Duration
	verbose    bool
}

func (a *app) loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	level := "warn"
	if a.verbose {
		level = "debug"
	}
	if err := log.Init(level, "console", ""); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "manactl",
		Short:         "Inspect and smoke-test the Mana voice pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file path")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 45*time.Second, "per-request timeout")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(a.inspectCommand(), a.asrCommand(), a.ttsCommand(), a.chatCommand())
	return root
}

func main() {
	a := &app{}
	if err := a.rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	log.Sync()
}
