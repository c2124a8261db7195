// Package main implements the aptsetup command-line tool for configuring
// APT in a target system.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/mirrorctl/aptsetup/internal/aptconfig"
	"github.com/mirrorctl/aptsetup/internal/system"
)

const (
	defaultConfigPath = "/etc/aptsetup/aptsetup.toml"
)

var (
	// Build information - can be set via build flags
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"

	// Command-line flags
	configPath string
	logLevel   string
	targetDir  string
	arch       string
	release    string
)

var rootCmd = &cobra.Command{
	Use:   "aptsetup",
	Short: "Configure APT sources, keys and settings",
	Long: `aptsetup configures APT in a system or in a target root being installed:
it selects mirrors, writes sources.list, adds repositories and keys, writes
proxy, apt.conf and pinning settings, and preseeds debconf answers.`,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the configuration to the target",
	Long: `Applies the configuration to the target root.

Usage:
  # Configure the running system
  aptsetup apply

  # Configure a target root being installed
  aptsetup apply --target /target

  # Use a YAML configuration
  aptsetup apply --config /path/to/apt.yaml

  # Show detailed error information
  aptsetup apply --verbose-errors`,
	Args: cobra.NoArgs,
	Run:  runApply,
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the sources.list that apply would write",
	Long: `Resolves the mirrors and prints the rendered sources.list to standard
output.  Nothing in the target is changed.`,
	Args: cobra.NoArgs,
	Run:  runRender,
}

var mirrorsCmd = &cobra.Command{
	Use:   "mirrors",
	Short: "Print the resolved mirrors",
	Long: `Resolves the primary and security mirrors for the target architecture
and prints them as MIRROR, PRIMARY and SECURITY assignments.`,
	Args: cobra.NoArgs,
	Run:  runMirrors,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long:  `Validate the configuration file and report any issues.`,
	Args:  cobra.NoArgs,
	Run:   runValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information including build details",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("aptsetup %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", buildDate)
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(mirrorsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "configuration file path (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&targetDir, "target", "t", "", "override the target root")
	rootCmd.PersistentFlags().StringVar(&arch, "arch", "", "override the target architecture")
	rootCmd.PersistentFlags().StringVar(&release, "release", "", "override the release codename")

	rootCmd.PersistentFlags().Bool("verbose-errors", false, "show detailed error information including stack traces")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress all output except for errors")
}

// formatError returns a human-friendly error message, optionally with stack trace
func formatError(err error, verbose bool) string {
	if verbose {
		return fmt.Sprintf("%+v", err)
	}

	msg := err.Error()
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		msg += " (" + strings.Join(hints, "; ") + ")"
	}
	return msg
}

// sectionTypos maps frequently mistyped top-level keys to the right ones.
var sectionTypos = map[string]string{
	"source":            "sources",
	"mirror":            "primary",
	"mirrors":           "primary",
	"preference":        "preferences",
	"disable_suite":     "disable_suites",
	"disable_component": "disable_components",
	"debconf_selection": "debconf_selections",
	"sources_lists":     "sources_list",
	"logging":           "log",
}

// analyzeUndecoded examines undecoded keys and provides helpful suggestions
func analyzeUndecoded(undecoded []string) (suggestions []string, unknown []string) {
	groups := make(map[string]int)

	for _, key := range undecoded {
		root, _, _ := strings.Cut(key, ".")
		if _, ok := sectionTypos[root]; ok {
			groups[root]++
			continue
		}
		unknown = append(unknown, key)
	}

	roots := make([]string, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	for _, root := range roots {
		count := groups[root]
		if count == 1 {
			suggestions = append(suggestions, fmt.Sprintf("Section '%s' should be '%s'", root, sectionTypos[root]))
		} else {
			suggestions = append(suggestions, fmt.Sprintf("Section '%s' should be '%s' (affects %d keys)", root, sectionTypos[root], count))
		}
	}

	return suggestions, unknown
}

// formatUndecodedError builds a user-friendly error message for undecoded keys
func formatUndecodedError(undecoded []string) string {
	suggestions, unknown := analyzeUndecoded(undecoded)

	var errorMsg strings.Builder
	if len(suggestions) > 0 {
		errorMsg.WriteString("configuration contains sections that don't match expected structure:\n")
		for _, suggestion := range suggestions {
			errorMsg.WriteString("  • " + suggestion + "\n")
		}
		errorMsg.WriteString("\nNote: Configuration keys are case-sensitive and must match exactly.")
	}

	if len(unknown) > 0 {
		if errorMsg.Len() > 0 {
			errorMsg.WriteString("\n\nAdditionally, found unknown keys: ")
		} else {
			errorMsg.WriteString("configuration contains unknown keys: ")
		}
		errorMsg.WriteString(fmt.Sprintf("%v", unknown))
		errorMsg.WriteString("\nThese keys don't match any expected configuration structure.")
	}

	return errorMsg.String()
}

// applyOverrides applies the environment and then the command line on top
// of the decoded configuration.
func applyOverrides(config *aptconfig.Config, getenv func(string) string) {
	config.ApplyEnvironment(getenv)
	if targetDir != "" {
		config.Target = targetDir
	}
	if arch != "" {
		config.Architecture = arch
	}
	if release != "" {
		config.Release = release
	}
	if logLevel != "" {
		config.Log.Level = logLevel
	}
}

// loadConfig reads the configuration and sets up logging.
func loadConfig(cmd *cobra.Command) (*aptconfig.Config, error) {
	config, err := aptconfig.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.WithHint(errors.Wrapf(err, "configuration file not found"),
				"create it or specify one with the --config flag")
		}
		return nil, err
	}

	if undecoded := config.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Mark(errors.New(formatUndecodedError(undecoded)), aptconfig.ErrConfig)
	}

	applyOverrides(config, os.Getenv)

	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		config.Log.Level = "error"
	}
	if err := config.Log.Apply(); err != nil {
		return nil, errors.Wrap(err, "log config")
	}
	return config, nil
}

// fail logs err and exits.
func fail(cmd *cobra.Command, msg string, err error) {
	verboseErrors, _ := cmd.Flags().GetBool("verbose-errors")
	slog.Error(msg, "error", formatError(err, verboseErrors), "path", configPath)
	if !verboseErrors {
		slog.Info("run with --verbose-errors for detailed stack traces")
	}
	os.Exit(1)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runApply(cmd *cobra.Command, _ []string) {
	config, err := loadConfig(cmd)
	if err != nil {
		fail(cmd, "failed to load configuration", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := aptconfig.NewApplier().Apply(ctx, config); err != nil {
		cancel()
		fail(cmd, "apply failed", err)
	}
}

func runRender(cmd *cobra.Command, _ []string) {
	config, err := loadConfig(cmd)
	if err != nil {
		fail(cmd, "failed to load configuration", err)
	}
	if err := config.Check(); err != nil {
		fail(cmd, "configuration validation failed", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	applier := aptconfig.NewApplier()
	arch, release, err := applier.Detect(ctx, config)
	if err != nil {
		cancel()
		fail(cmd, "failed to detect target", err)
	}
	mirrors, err := applier.ResolveMirrors(ctx, config, arch)
	if err != nil {
		cancel()
		fail(cmd, "failed to resolve mirrors", err)
	}
	content, err := aptconfig.RenderSourcesList(config, release, mirrors)
	if err != nil {
		cancel()
		fail(cmd, "failed to render sources.list", err)
	}
	fmt.Print(content)
}

func runMirrors(cmd *cobra.Command, _ []string) {
	config, err := loadConfig(cmd)
	if err != nil {
		fail(cmd, "failed to load configuration", err)
	}
	if err := config.Check(); err != nil {
		fail(cmd, "configuration validation failed", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	applier := aptconfig.NewApplier()
	targetArch := config.Architecture
	if targetArch == "" {
		targetArch, err = system.Architecture(ctx, applier.Runner, config.Target)
		if err != nil {
			cancel()
			fail(cmd, "failed to detect architecture", err)
		}
	}
	mirrors, err := applier.ResolveMirrors(ctx, config, targetArch)
	if err != nil {
		cancel()
		fail(cmd, "failed to resolve mirrors", err)
	}
	fmt.Printf("MIRROR=%s\n", mirrors.Mirror)
	fmt.Printf("PRIMARY=%s\n", mirrors.Primary)
	fmt.Printf("SECURITY=%s\n", mirrors.Security)
}

func runValidate(cmd *cobra.Command, _ []string) {
	config, err := loadConfig(cmd)
	if err != nil {
		fail(cmd, "failed to load configuration", err)
	}

	if err := config.Check(); err != nil {
		fail(cmd, "the configuration file is not valid", err)
	}

	slog.Info("the configuration file passes validation checks", "path", configPath, "sources", len(config.Sources))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
