// Command chatagent runs the conversational agent in the terminal or as a
// websocket server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hupe1980/chatagent"
	"github.com/hupe1980/chatagent/config"
)

var version = "dev"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	aiStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	thoughtStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("8"))

	humanStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

type rootFlags struct {
	configPath string
	envFile    string
	verbose    bool
	greeting   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	chat := newChatCmd(flags)
	rootCmd := &cobra.Command{
		Use:   "chatagent",
		Short: "A ReAct chat agent with tools",
		Long: titleStyle.Render("chatagent") + `

Talks to a language model that reasons in Thought / Action / Final Answer
steps and calls tools (web search, browser, phone, code viewer) on the way.

` + dimStyle.Render("Use 'chatagent [command] --help' for more information."),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          chat.RunE,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default: chatagent.yaml in . or ~/.config/chatagent)")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file with API keys")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().StringVar(&flags.greeting, "greeting", "hello", "first message sent to the agent; empty waits for input")

	rootCmd.AddCommand(chat, newServeCmd(flags), newConfigCmd(flags))
	return rootCmd
}

// loadConfig reads .env and the configuration file, applying --verbose.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	if err := config.LoadEnv(flags.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func build(ctx context.Context, flags *rootFlags, optFns ...func(o *chatagent.Options)) (*chatagent.App, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return chatagent.Build(ctx, cfg, optFns...)
}
