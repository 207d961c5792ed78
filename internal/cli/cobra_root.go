package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"modelkit/internal/config"
	"modelkit/internal/logging"
	"modelkit/internal/property"
)

// Execute runs the command line with args and returns the first error.
func Execute(args []string, stdout, stderr io.Writer) error {
	root := buildRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.Execute()
}

// buildRootCmd constructs the Cobra command tree wired to the fn* actions.
func buildRootCmd(stdout, stderr io.Writer) *cobra.Command {
	e := &env{cfg: config.Default(), out: stdout, errOut: stderr}

	root := &cobra.Command{
		Use:           "modelkit",
		Short:         "Build observable models from JSON and replay mutation scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	// Persistent flags -> Config
	root.PersistentFlags().String("config", "", "Config file (.yaml|.yml|.json|.toml)")
	root.PersistentFlags().String("log-level", e.cfg.LogLevel, "Log level: debug|info|warn|error|off (defaults MODELKIT_LOG_LEVEL or info)")
	root.PersistentFlags().String("log-format", e.cfg.LogFormat, "Log format: console|json")
	root.PersistentFlags().String("panic-policy", e.cfg.PanicPolicy, "Listener panic policy: continue|propagate")
	root.PersistentFlags().Bool("coalesce", e.cfg.Coalesce, "Queue one change per property inside a transaction")
	root.PersistentFlags().Bool("metrics", e.cfg.Metrics, "Print modelkit metrics after the command")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if path, _ := flags.GetString("config"); path != "" {
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			e.cfg = cfg
		}
		e.cfg.ApplyEnv()
		if flags.Changed("log-level") {
			e.cfg.LogLevel, _ = flags.GetString("log-level")
		}
		if flags.Changed("log-format") {
			e.cfg.LogFormat, _ = flags.GetString("log-format")
		}
		if flags.Changed("panic-policy") {
			e.cfg.PanicPolicy, _ = flags.GetString("panic-policy")
		}
		if flags.Changed("coalesce") {
			e.cfg.Coalesce, _ = flags.GetBool("coalesce")
		}
		if flags.Changed("metrics") {
			e.cfg.Metrics, _ = flags.GetBool("metrics")
		}
		if err := e.cfg.Validate(); err != nil {
			return err
		}
		e.log = logging.New(e.cfg.LogLevel, e.cfg.LogFormat, e.errOut)
		property.SetLogger(e.log)
		return nil
	}

	applyCmd := &cobra.Command{
		Use:     "apply <model.json> <script.yaml|json|toml>",
		Short:   "Build a model and replay a mutation script, printing each change",
		Example: "  modelkit apply person.json edits.yaml\n  modelkit apply --coalesce person.json edits.toml",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := fnApply(e, args[0], args[1]); err != nil {
				return err
			}
			return e.finish()
		},
	}
	pathsCmd := &cobra.Command{
		Use:     "paths <model.json|dir>",
		Short:   "Print every property path with its value",
		Example: "  modelkit paths person.json\n  modelkit paths ~/models",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := fnPaths(e, args[0]); err != nil {
				return err
			}
			return e.finish()
		},
	}
	root.AddCommand(applyCmd, pathsCmd)

	// completion command
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(stdout, true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenPowerShellCompletionWithDesc(stdout) }})
	root.AddCommand(completionCmd)

	return root
}
