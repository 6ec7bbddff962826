// Package logger configures the process-wide go-logging backend.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
)

const format = `%{time:2006-01-02 15:04:05} %{level:.5s} %{module:-10s} %{message}`

// Init sets a leveled, formatted backend on stdout. level is one of the
// go-logging level names (DEBUG, INFO, WARNING, ERROR, CRITICAL); an empty
// level means INFO.
func Init(level string) error {
	return InitWriter(os.Stdout, level)
}

// InitWriter is Init with a custom destination.
func InitWriter(w io.Writer, level string) error {
	if strings.TrimSpace(level) == "" {
		level = "INFO"
	}
	lvl, err := logging.LogLevel(strings.ToUpper(level))
	if err != nil {
		return err
	}
	backend := logging.NewBackendFormatter(
		logging.NewLogBackend(w, "", 0),
		logging.MustStringFormatter(format),
	)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(lvl, "")
	logging.SetBackend(leveled)
	return nil
}
