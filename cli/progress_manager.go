package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/edaniels/golog"
	"github.com/pterm/pterm"

	"go.viam.com/raycloud/utils"
)

const (
	spinnerRefresh  = 200 * time.Millisecond
	logReportPeriod = 10 * time.Second
)

type progressSpinner interface {
	Stop() error
	Success(...any)
	Fail(...any)
	UpdateText(string)
}

type progressSpinnerFactory func(out io.Writer, text string) (progressSpinner, error)

var defaultSpinnerFactory progressSpinnerFactory = func(out io.Writer, text string) (progressSpinner, error) {
	spinner, err := pterm.DefaultSpinner.
		WithWriter(out).
		WithRemoveWhenDone(false).
		WithText(text).
		Start()
	if err != nil {
		return nil, err
	}
	return spinner, nil
}

// StepRunner runs the stages of a command one after another, showing each as a
// spinner whose text follows a shared utils.Progress. With output disabled the
// progress is logged periodically instead.
type StepRunner struct {
	out            io.Writer
	logger         golog.Logger
	progress       *utils.Progress
	spinnerFactory progressSpinnerFactory
	disabled       bool
}

// StepRunnerOption customises a StepRunner at creation time.
type StepRunnerOption func(*StepRunner)

// WithProgressOutput enables or disables spinner output.
func WithProgressOutput(enabled bool) StepRunnerOption {
	return func(s *StepRunner) {
		s.disabled = !enabled
	}
}

func withProgressSpinnerFactory(factory progressSpinnerFactory) StepRunnerOption {
	return func(s *StepRunner) {
		s.spinnerFactory = factory
	}
}

// NewStepRunner returns a runner writing spinners to out.
func NewStepRunner(out io.Writer, logger golog.Logger, opts ...StepRunnerOption) *StepRunner {
	s := &StepRunner{
		out:            out,
		logger:         logger,
		progress:       utils.NewProgress("", 0),
		spinnerFactory: defaultSpinnerFactory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Progress is the tracker that step functions should report into.
func (s *StepRunner) Progress() *utils.Progress {
	return s.progress
}

// Run runs fn as the step named message.
func (s *StepRunner) Run(ctx context.Context, message string, fn func() error) error {
	s.progress.Reset(message, 0)
	start := time.Now()

	if s.disabled {
		stop := utils.ReportProgress(ctx, s.progress, logReportPeriod, s.logger)
		err := fn()
		stop()
		if err != nil {
			s.logger.Errorw("step failed", "step", message, "error", err)
			return err
		}
		s.logger.Debugw("step done", "step", message, "time_elapsed", time.Since(start).Round(time.Millisecond).String())
		return nil
	}

	spinner, err := s.spinnerFactory(s.out, message)
	if err != nil {
		return fmt.Errorf("failed to start spinner: %w", err)
	}
	ctxWithCancel, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(spinnerRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				spinner.UpdateText(stepText(message, s.progress.Snapshot()))
			case <-ctxWithCancel.Done():
				return
			}
		}
	}()

	err = fn()
	cancel()
	<-done

	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		spinner.Fail(fmt.Sprintf("%s (%s)", message, elapsed))
		return err
	}
	spinner.Success(fmt.Sprintf("%s (%s)", message, elapsed))
	return nil
}

func stepText(message string, snap utils.ProgressSnapshot) string {
	if snap.Phase == "" || snap.Phase == message {
		if snap.Target == 0 {
			return message
		}
		return fmt.Sprintf("%s %d/%d", message, snap.Value, snap.Target)
	}
	if snap.Target == 0 {
		return fmt.Sprintf("%s: %s", message, snap.Phase)
	}
	return fmt.Sprintf("%s: %s %d/%d", message, snap.Phase, snap.Value, snap.Target)
}
