package cli

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// writeMetrics dumps every registered metric in the text exposition format
// once the command has finished, for node exporter textfile collectors.
func writeMetrics(c *cli.Context) error {
	path := c.String(generalFlagMetricsFile)
	if path == "" {
		return nil
	}
	return errors.Wrapf(prometheus.WriteToTextfile(path, prometheus.DefaultGatherer), "writing metrics to %s", path)
}
