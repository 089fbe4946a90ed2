package factory

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hudumalabs/storefront-pay/config"
)

// NewModuleLogger returns a logger tagged with the originating module.
func NewModuleLogger(module string) logrus.FieldLogger {
	return logrus.WithField("module", module)
}

// ConfigureLogging applies the configured level and output format to the
// global logrus logger.
func ConfigureLogging(cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
