package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericiooptions"
	"k8s.io/klog/v2"

	"github.com/kubestellar/deploy-launcher/internal/version"
	"github.com/kubestellar/deploy-launcher/pkg/launcher"
)

// EnvVerbosity sets the klog verbosity; every command-line argument belongs
// to the deployment tool so there is no -v flag.
const EnvVerbosity = "DEPLOY_LAUNCHER_V"

type rootOptions struct {
	streams genericiooptions.IOStreams
	getenv  func(string) string
	selfDir func() (string, error)
}

func newRootCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy-launcher [ansible-playbook args...]",
		Short: "Run the deployment playbook pinned to the current git revision",
		Long: `deploy-launcher runs ansible-playbook against the playbook and inventory
shipped next to it, passing the checked-out git revision as an extra var.
The revision is read from the repository containing deploy-launcher itself,
not from the current working directory.

All arguments are forwarded to ansible-playbook unchanged, after:
  --extra-vars "gitsha=<revision>" --inventory <dir>/deploy/hosts <dir>/deploy/site.yml

Environment:
  DEPLOY_LAUNCHER_EXECUTABLE       deployment tool (default ansible-playbook)
  DEPLOY_LAUNCHER_PLAYBOOK         playbook path (default deploy/site.yml)
  DEPLOY_LAUNCHER_INVENTORY        inventory path (default deploy/hosts)
  DEPLOY_LAUNCHER_REVISION_VAR     extra var name (default gitsha)
  DEPLOY_LAUNCHER_REVISION_SOURCE  git or go-git (default git)
  DEPLOY_LAUNCHER_V                log verbosity

Examples:
  # Deploy to staging only
  deploy-launcher --limit staging

  # Dry run with diff
  deploy-launcher --check --diff`,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd.Context(), args)
		},
	}

	cmd.SetIn(o.streams.In)
	cmd.SetOut(o.streams.Out)
	cmd.SetErr(o.streams.ErrOut)

	return cmd
}

// execute dispatches args through cobra, except for cobra's hidden shell
// completion commands, which it would answer itself instead of forwarding.
func (o *rootOptions) execute(args []string) error {
	if args == nil {
		args = []string{}
	}
	if len(args) > 0 && (args[0] == cobra.ShellCompRequestCmd || args[0] == cobra.ShellCompNoDescRequestCmd) {
		return o.run(context.Background(), args)
	}

	cmd := newRootCommand(o)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func (o *rootOptions) run(ctx context.Context, args []string) error {
	if err := initLogging(o.getenv); err != nil {
		return err
	}
	defer klog.Flush()

	klog.V(1).InfoS("deploy-launcher", "version", version.Version, "commit", version.GitCommit, "built", version.BuildDate)

	dir, err := o.selfDir()
	if err != nil {
		return err
	}

	cfg, err := launcher.LoadConfig(dir, o.getenv)
	if err != nil {
		return fmt.Errorf("failed to load launcher config: %w", err)
	}

	l, err := launcher.New(dir, cfg, o.streams)
	if err != nil {
		return err
	}

	return l.Run(ctx, args)
}

func initLogging(getenv func(string) string) error {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	if v := getenv(EnvVerbosity); v != "" {
		if err := fs.Set("v", v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvVerbosity, v, err)
		}
	}
	return nil
}

// Execute runs the launcher with the process arguments and stdio
func Execute() error {
	streams := genericiooptions.IOStreams{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr}
	o := &rootOptions{
		streams: streams,
		getenv:  os.Getenv,
		selfDir: launcher.SelfDir,
	}
	if err := o.execute(os.Args[1:]); err != nil {
		var exitErr *launcher.ExitError
		if !errors.As(err, &exitErr) || !exitErr.ToolRan {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}
