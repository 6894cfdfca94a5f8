// Package elog provides the single package-level logger used across erl.
package elog

import (
	"os"

	"github.com/op/go-logging"
)

// Log is the package-level logger every erl package writes to, in the
// same style as kryptco-kr's logging.go.
var Log = logging.MustGetLogger("erl")

var stderrFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.6s} ▶ %{shortfile} %{message}`,
)

func init() {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, stderrFormat)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(levelFromVerbose(os.Getenv("VERBOSE")), "")
	logging.SetBackend(leveled)
}

// levelFromVerbose maps spec.md §6's VERBOSE values onto go-logging
// levels. Unrecognized or empty values fall back to NOTICE so that a
// library embedded in a host process stays quiet by default.
func levelFromVerbose(v string) logging.Level {
	switch v {
	case "trace", "wire", "debug", "6", "5":
		return logging.DEBUG
	case "message", "info", "4", "3":
		return logging.INFO
	case "test", "2":
		return logging.NOTICE
	case "1":
		return logging.WARNING
	default:
		return logging.NOTICE
	}
}
