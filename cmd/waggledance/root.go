package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/j-94/waggle-dance/cmd/waggledance/internal"
	"github.com/j-94/waggle-dance/internal/config"
	"github.com/j-94/waggle-dance/pkg/version"
)

// defaultConfigFile is consulted when neither --config nor
// WAGGLEDANCE_CONFIG names a settings file.
const defaultConfigFile = "waggledance.yaml"

// Global flags shared by every command
var (
	configFile string
	logLevel   string
	logFormat  string
	verbose    bool
)

// settings holds the configuration loaded for the running command.
var settings *config.Settings

var rootCmd = &cobra.Command{
	Use:   "waggledance",
	Short: "Waggle Dance - concurrent goal execution with LLM agents",
	Long: `Waggle Dance turns a goal into a task graph with an LLM planner and
executes the graph concurrently, streaming progress as it runs.

Tasks start the moment their dependencies complete, and the first task
begins while the rest of the plan is still being written. Plans can be
saved, resumed, and extended across invocations.`,
	PersistentPreRunE: loadSettings,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadSettings runs before any command. It loads the YAML settings file,
// falling back to defaults when none exists, so commands always see a
// complete configuration.
func loadSettings(cmd *cobra.Command, args []string) error {
	// Provider keys usually live in .env rather than the settings file.
	_ = godotenv.Load()

	// version, help, and completion work without configuration
	switch cmd.Name() {
	case "version", "help", "completion":
		return nil
	}

	path := configFile
	if path == "" {
		path = os.Getenv("WAGGLEDANCE_CONFIG")
	}
	if path == "" {
		path = defaultConfigFile
	}

	loaded, err := config.NewLoader(config.NewValidator()).LoadWithDefaults(path)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to load settings", err)
	}

	// Flags override the file
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}
	if logFormat != "" {
		loaded.Logging.Format = logFormat
	}

	settings = loaded
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Settings file (default waggledance.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show error causes")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

// isInteractive checks if stdin is a terminal (TTY).
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.String())
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for waggledance.

To load completions:

Bash:

  $ source <(waggledance completion bash)

Zsh:

  $ waggledance completion zsh > "${fpath[1]}/_waggledance"

Fish:

  $ waggledance completion fish | source

PowerShell:

  PS> waggledance completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			_ = cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			_ = cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			_ = cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			_ = cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}
