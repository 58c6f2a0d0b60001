// Package terraform invokes declarative infrastructure per named topology
// directory: init, then apply or destroy, synchronously.
package terraform

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/bsinger98/MHBench/pkg/logging"
)

// Invoker applies or destroys one topology directory at a time.
type Invoker struct {
	// BaseDir holds the per-topology subdirectories.
	BaseDir string
	// VarFile is an optional credentials var-file passed to apply/destroy.
	VarFile string

	logger logging.Logger
}

// NewInvoker creates an invoker rooted at baseDir.
func NewInvoker(baseDir, varFile string, logger logging.Logger) *Invoker {
	return &Invoker{
		BaseDir: baseDir,
		VarFile: varFile,
		logger:  logger.With(logging.Component("terraform")),
	}
}

// Apply runs init then apply in the named topology directory. A non-zero
// exit from either command is an error carrying the captured output.
func (i *Invoker) Apply(ctx context.Context, name string) error {
	return i.invoke(ctx, name, "apply")
}

// Destroy runs init then destroy in the named topology directory.
func (i *Invoker) Destroy(ctx context.Context, name string) error {
	return i.invoke(ctx, name, "destroy")
}

func (i *Invoker) invoke(ctx context.Context, name, action string) error {
	dir := filepath.Join(i.BaseDir, name)
	i.logger.Info("invoking terraform",
		logging.Operation(action),
		logging.String("dir", dir))

	if err := i.run(ctx, dir, "init"); err != nil {
		return err
	}

	args := []string{action, "-auto-approve"}
	if i.VarFile != "" {
		args = append(args, "-var-file="+i.VarFile)
	}
	return i.run(ctx, dir, args...)
}

func (i *Invoker) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "terraform", args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("terraform %s in %s: %w\noutput: %s", args[0], dir, err, output)
	}
	return nil
}
