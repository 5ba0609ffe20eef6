package cli

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/raycloud/config"
	"go.viam.com/raycloud/logging"
)

// actionEnv is what every action needs from the global flags.
type actionEnv struct {
	cfg       *config.Config
	logger    golog.Logger
	steps     *StepRunner
	lasOrigin r3.Vector
	close     func() error
}

// newActionEnv reads the global flags and checks the action got exactly
// numArgs positional arguments.
func newActionEnv(c *cli.Context, numArgs int) (*actionEnv, []string, error) {
	if c.NArg() != numArgs {
		return nil, nil, errors.Errorf("%s expects %d arguments: %s", c.Command.Name, numArgs, c.Command.ArgsUsage)
	}

	debug := c.Bool(generalFlagDebug)
	logger := logging.NewLogger("raycloud", debug)
	cfg := config.Default()
	if path := c.String(generalFlagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path, logger); err != nil {
			return nil, nil, err
		}
		debug = debug || cfg.Debug
	}
	closeLog := func() error { return nil }
	switch {
	case cfg.LogFile != "":
		logger, closeLog = logging.NewFileLogger("raycloud", cfg.LogFile, debug)
	case debug != c.Bool(generalFlagDebug):
		logger = logging.NewLogger("raycloud", debug)
	}

	origin := c.Float64Slice(generalFlagLASOrigin)
	if len(origin) != 0 && len(origin) != 3 {
		return nil, nil, errors.Errorf("%s takes 3 values, got %d", generalFlagLASOrigin, len(origin))
	}
	lasOrigin, err := vectorFromValues(generalFlagLASOrigin, origin)
	if err != nil {
		return nil, nil, err
	}

	return &actionEnv{
		cfg:       cfg,
		logger:    logger,
		steps:     NewStepRunner(c.App.ErrWriter, logger, WithProgressOutput(!c.Bool(generalFlagQuiet))),
		lasOrigin: lasOrigin,
		close:     closeLog,
	}, c.Args().Slice(), nil
}
