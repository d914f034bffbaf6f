// Package launcher runs the deployment playbook pinned to the current git revision.
//
// The launcher resolves its own directory, builds absolute playbook and
// inventory paths under it, reads the checked-out revision and then execs
// the deployment tool:
//
//	ansible-playbook --extra-vars "gitsha=<rev>" --inventory <dir>/deploy/hosts <dir>/deploy/site.yml [args...]
//
// Every step is fail-fast. The tool's exit status becomes the launcher's.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"k8s.io/cli-runtime/pkg/genericiooptions"
	"k8s.io/klog/v2"

	"github.com/kubestellar/deploy-launcher/pkg/revision"
)

// waitDelay bounds how long Run waits for the tool after asking it to stop
const waitDelay = 10 * time.Second

// Invocation is a fully resolved deployment tool command line
type Invocation struct {
	Executable    string
	Args          []string
	Dir           string
	Revision      string
	PlaybookPath  string
	InventoryPath string
}

// String renders the invocation for logs
func (i *Invocation) String() string {
	return strings.Join(append([]string{i.Executable}, i.Args...), " ")
}

// Launcher invokes the deployment tool from a fixed directory
type Launcher struct {
	// Dir is the directory the playbook and inventory are resolved against
	Dir       string
	Config    Config
	Streams   genericiooptions.IOStreams
	Revisions revision.Resolver
}

// New builds a launcher rooted at dir
func New(dir string, cfg Config, streams genericiooptions.IOStreams) (*Launcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid launcher config: %w", err)
	}
	resolver, err := revision.New(cfg.RevisionSource)
	if err != nil {
		return nil, err
	}
	return &Launcher{
		Dir:       dir,
		Config:    cfg,
		Streams:   streams,
		Revisions: resolver,
	}, nil
}

// SelfDir returns the absolute directory of the running executable with
// symlinks resolved.
func SelfDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate launcher executable: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve launcher executable: %w", err)
	}
	abs, err := filepath.Abs(filepath.Dir(exe))
	if err != nil {
		return "", fmt.Errorf("failed to resolve launcher directory: %w", err)
	}
	return abs, nil
}

// Paths returns the absolute playbook and inventory paths
func (l *Launcher) Paths() (playbook, inventory string, err error) {
	dir, err := l.dir()
	if err != nil {
		return "", "", err
	}
	playbook, inventory = l.pathsIn(dir)
	return playbook, inventory, nil
}

func (l *Launcher) pathsIn(dir string) (playbook, inventory string) {
	return resolvePath(dir, l.Config.Playbook), resolvePath(dir, l.Config.Inventory)
}

// Plan resolves everything Run needs without starting a process
func (l *Launcher) Plan(ctx context.Context, extraArgs []string) (*Invocation, error) {
	dir, err := l.dir()
	if err != nil {
		return nil, err
	}

	rev, err := l.Revisions.Head(ctx, dir)
	if err != nil {
		return nil, err
	}
	rev = strings.TrimSpace(rev)
	if rev == "" {
		return nil, fmt.Errorf("empty revision for %s", dir)
	}

	playbook, inventory := l.pathsIn(dir)

	args := make([]string, 0, 5+len(extraArgs))
	args = append(args,
		"--extra-vars", l.Config.RevisionVar+"="+rev,
		"--inventory", inventory,
		playbook,
	)
	args = append(args, extraArgs...)

	return &Invocation{
		Executable:    l.Config.Executable,
		Args:          args,
		Dir:           dir,
		Revision:      rev,
		PlaybookPath:  playbook,
		InventoryPath: inventory,
	}, nil
}

// Run plans the invocation, executes the deployment tool with the
// launcher's streams and waits for it. A tool that exits non-zero is
// reported as *ExitError.
func (l *Launcher) Run(ctx context.Context, extraArgs []string) error {
	inv, err := l.Plan(ctx, extraArgs)
	if err != nil {
		return err
	}

	path, err := exec.LookPath(inv.Executable)
	if err != nil {
		return &ExitError{Code: exitNotFound, Err: fmt.Errorf("failed to find %s: %w", inv.Executable, err)}
	}

	klog.V(1).InfoS("Launching deployment", "revision", inv.Revision, "command", inv.String())

	cmd := exec.CommandContext(ctx, path, inv.Args...)
	cmd.Stdin = l.Streams.In
	cmd.Stdout = l.Streams.Out
	cmd.Stderr = l.Streams.ErrOut
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", inv.Executable, err)
	}
	stop := forwardSignals(cmd.Process)
	err = cmd.Wait()
	stop()

	if err == nil {
		klog.V(1).InfoS("Deployment finished", "revision", inv.Revision)
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			code = 1
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				code = 128 + int(ws.Signal())
			}
		}
		klog.V(1).InfoS("Deployment failed", "revision", inv.Revision, "exitCode", code)
		return &ExitError{Code: code, Err: err, ToolRan: true}
	}
	return fmt.Errorf("failed to run %s: %w", inv.Executable, err)
}

func (l *Launcher) dir() (string, error) {
	if l.Dir == "" {
		return SelfDir()
	}
	dir, err := filepath.Abs(l.Dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve launcher directory: %w", err)
	}
	return dir, nil
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}
