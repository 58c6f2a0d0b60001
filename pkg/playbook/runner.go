package playbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/bsinger98/MHBench/pkg/logging"
	"github.com/bsinger98/MHBench/pkg/retry"
)

// ErrPlaybookFailed wraps a run that failed after retries were exhausted.
var ErrPlaybookFailed = errors.New("playbook failed")

// ExecRunner executes playbooks through the ansible-playbook binary. Every
// run merges the runner's default variables (management address, SSH key
// path) under the playbook's own parameters and retries per the policy,
// with the process output appended to the action log.
type ExecRunner struct {
	// ActionsDir is the directory holding the playbook tree.
	ActionsDir string
	// LogDir receives the appended action log.
	LogDir string

	defaults map[string]string
	policy   retry.Policy
	logger   logging.Logger
}

// NewExecRunner creates a runner with the default retry policy.
func NewExecRunner(actionsDir, logDir, sshKeyPath, manageIP string, logger logging.Logger) *ExecRunner {
	return &ExecRunner{
		ActionsDir: actionsDir,
		LogDir:     logDir,
		defaults: map[string]string{
			"manage_ip":    manageIP,
			"ssh_key_path": sshKeyPath,
		},
		policy: retry.DefaultPolicy,
		logger: logger.With(logging.Component("playbook")),
	}
}

// SetManagementIP updates the default management address, for runners
// created before the management host is discovered.
func (r *ExecRunner) SetManagementIP(ip string) {
	r.defaults["manage_ip"] = ip
}

// Run executes one playbook, retrying transient failures. The last
// failure's captured output is part of the returned error.
func (r *ExecRunner) Run(ctx context.Context, pb *Playbook) error {
	r.logger.Info("running playbook",
		logging.PlaybookName(pb.Name),
		logging.HostName(pb.Host))

	vars, err := json.Marshal(r.mergedParams(pb))
	if err != nil {
		return fmt.Errorf("encode playbook params: %w", err)
	}

	var lastOutput []byte
	attempt := 0
	err = r.policy.Do(ctx, func(ctx context.Context) error {
		attempt++

		cmd := exec.CommandContext(ctx, "ansible-playbook",
			filepath.Join(r.ActionsDir, pb.Name),
			"--extra-vars", string(vars),
		)
		output, runErr := cmd.CombinedOutput()
		lastOutput = output
		r.appendLog(pb, output)

		if runErr != nil {
			r.logger.Warn("playbook attempt failed",
				logging.PlaybookName(pb.Name),
				logging.HostName(pb.Host),
				logging.Attempt(attempt),
				logging.Error(runErr))
			return runErr
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s on %s: %w\noutput: %s",
			ErrPlaybookFailed, pb.Name, pb.Host, err, lastOutput)
	}
	return nil
}

// RunSerial executes playbooks one at a time, stopping at the first failure.
func (r *ExecRunner) RunSerial(ctx context.Context, playbooks []*Playbook) error {
	for _, pb := range playbooks {
		if err := r.Run(ctx, pb); err != nil {
			return err
		}
	}
	return nil
}

func (r *ExecRunner) mergedParams(pb *Playbook) map[string]string {
	merged := make(map[string]string, len(r.defaults)+len(pb.Params))
	for k, v := range r.defaults {
		merged[k] = v
	}
	for k, v := range pb.Params {
		merged[k] = v
	}
	return merged
}

// appendLog appends the raw process output to the action log. Logging
// failures are not fatal to the run.
func (r *ExecRunner) appendLog(pb *Playbook, output []byte) {
	if r.LogDir == "" || len(output) == 0 {
		return
	}
	path := filepath.Join(r.LogDir, "action_log.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.logger.Warn("cannot open action log", logging.Error(err))
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "=== %s @ %s ===\n%s\n", pb.Name, pb.Host, output)
}
