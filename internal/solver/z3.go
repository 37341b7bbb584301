// SPDX-License-Identifier: Apache-2.0

// Package solver implements the opaque check/eval/model SMT service as a
// real external solver process: it speaks SMT-LIB2 over stdin and stdout
// to a long-lived `z3 -in` subprocess (os/exec, bufio). This keeps the one
// unavoidable stdlib-only concern (talking to an external process) behind
// the smtenc.Backend interface, away from internal/smtenc itself (see
// DESIGN.md).
package solver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"rbmc/internal/smtenc"
)

// Z3Process drives one `<name> -in` subprocess for the lifetime of a BMC
// run. It is the one production implementation of smtenc.Backend.
type Z3Process struct {
	mu sync.Mutex
	cmd *exec.Cmd
	in io.WriteCloser
	out *bufio.Reader
	log *logrus.Entry

	declared []string // replayed verbatim after Reset: declarations survive it
}

// Start launches the named solver binary (commonly "z3") with "-in",
// bounding its whole lifetime by ctx (grounded on lvlath/dfs's own
// WithCancelContext option pattern, reused here for the same "optional
// cancellation of an external operation" shape, ).
func Start(ctx context.Context, name string, log *logrus.Entry) (*Z3Process, error) {
	cmd := exec.CommandContext(ctx, name, "-in")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "solver: opening stdin to %s", name)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "solver: opening stdout from %s", name)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "solver: starting %s", name)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Z3Process{
		cmd: cmd,
		in: stdin,
		out: bufio.NewReader(stdout),
		log: log.WithField("component", "solver"),
	}, nil
}

// Close terminates the solver process, sending "(exit)" first so a
// well-behaved solver shuts down cleanly.
func (z *Z3Process) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	_, _ = io.WriteString(z.in, "(exit)\n")
	_ = z.in.Close()
	return z.cmd.Wait()
}

func (z *Z3Process) send(command string) error {
	z.log.Debugf("-> %s", command)
	if _, err := io.WriteString(z.in, command+"\n"); err != nil {
		return errors.Wrap(err, "solver: writing command")
	}
	return nil
}

func (z *Z3Process) readLine() (string, error) {
	line, err := z.out.ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "solver: reading response")
	}
	line = strings.TrimSpace(line)
	z.log.Debugf("<- %s", line)
	return line, nil
}

// Declare emits a raw top-level SMT-LIB2 command and remembers it so a
// later Reset can replay it.
func (z *Z3Process) Declare(command string) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.declared = append(z.declared, command)
	return z.send(command)
}

// Assert adds one boolean term as a hard constraint.
func (z *Z3Process) Assert(term string) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.send(fmt.Sprintf("(assert %s)", term))
}

// Reset clears every asserted constraint (SMT-LIB2 "(reset)" drops
// declarations too, so this replays the declaration log afterward, giving
// callers the "declarations survive Reset" contract describes).
func (z *Z3Process) Reset() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if err := z.send("(reset)"); err != nil {
		return err
	}
	for _, d := range z.declared {
		if err := z.send(d); err != nil {
			return err
		}
	}
	return nil
}

// Check runs the solver over everything currently asserted.
func (z *Z3Process) Check() (smtenc.Result, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if err := z.send("(check-sat)"); err != nil {
		return smtenc.Unknown, err
	}
	line, err := z.readLine()
	if err != nil {
		return smtenc.Unknown, err
	}
	switch line {
	case "sat":
		return smtenc.Sat, nil
	case "unsat":
		return smtenc.Unsat, nil
	default:
		return smtenc.Unknown, nil
	}
}

// EvalBool reads a boolean term's value in the last satisfying model via
// "(get-value (term))".
func (z *Z3Process) EvalBool(term string) (bool, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if err := z.send(fmt.Sprintf("(get-value (%s))", term)); err != nil {
		return false, err
	}
	line, err := z.readLine()
	if err != nil {
		return false, err
	}
	return strings.Contains(line, "true"), nil
}

// ShowModel renders the last satisfying model for --show-smt-model.
func (z *Z3Process) ShowModel() (string, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if err := z.send("(get-model)"); err != nil {
		return "", err
	}
	var b strings.Builder
	depth := 0
	started := false
	for {
		line, err := z.readLine()
		if err != nil {
			return "", err
		}
		b.WriteString(line)
		b.WriteByte('\n')
		depth += strings.Count(line, "(") - strings.Count(line, ")")
		if strings.Contains(line, "(") {
			started = true
		}
		if started && depth <= 0 {
			break
		}
	}
	return b.String(), nil
}
