package copier

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Skopeo runs the skopeo CLI. Credentials stored by Login are picked up
// by later Copy calls through skopeo's own auth file.
type Skopeo struct {
	opts *Options
}

// NewSkopeo creates a skopeo backed copier.
func NewSkopeo(opts ...Option) *Skopeo {
	return &Skopeo{opts: applyOptions(opts)}
}

// Login runs skopeo login, passing the password on stdin.
func (s *Skopeo) Login(ctx context.Context, endpoint, username, password string) error {
	args := s.globalArgs()
	args = append(args, "login", "--username", username, "--password-stdin", endpoint)
	return s.run(ctx, args, password)
}

// Copy runs skopeo copy with --retry-times. A non-zero exit is the only
// failure signal.
func (s *Skopeo) Copy(ctx context.Context, src, dst string) error {
	return s.run(ctx, s.copyArgs(src, dst), "")
}

func (s *Skopeo) copyArgs(src, dst string) []string {
	args := s.globalArgs()
	return append(args,
		"copy",
		"--retry-times", strconv.Itoa(s.opts.RetryTimes),
		transportRef(src),
		transportRef(dst),
	)
}

func (s *Skopeo) globalArgs() []string {
	if s.opts.TmpDir == "" {
		return nil
	}
	return []string{"--tmpdir", s.opts.TmpDir}
}

func (s *Skopeo) run(ctx context.Context, args []string, stdin string) error {
	cmd := exec.CommandContext(ctx, s.opts.Path, args...)
	cmd.Stdout = s.opts.Stdout
	cmd.Stderr = s.opts.Stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	logrus.WithField("args", args).Debug("Running skopeo")

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("skopeo %s: %w", args[len(s.globalArgs())], err)
	}
	return nil
}
