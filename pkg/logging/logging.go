// Package logging is a thin, level-gated wrapper over glog so hot paths in
// the control-session engine never pay for message formatting when a level
// is disabled.
package logging

import (
	"flag"
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// Verbose mirrors glog.Verbose: a bool that also satisfies the small
// interface glog.V returns, so a level can be checked with a plain `if`.
type Verbose bool

var (
	LOG_ERROR   Verbose = true
	LOG_WARN    Verbose = true
	LOG_INFO    Verbose = true
	LOG_DEBUG   Verbose = false
	LOG_VERBOSE Verbose = false
)

// InitLogging configures glog's own verbosity flag from a human-readable
// level name, the way an embedding CLI would set it from a config file
// instead of exposing raw glog flags.
func InitLogging(level string) {
	var v string
	switch strings.ToLower(level) {
	case "error":
		v = "0"
	case "warning":
		v = "1"
	case "debug":
		v = "2"
	case "verbose":
		v = "3"
	default: // info
		v = "1"
	}
	if f := flag.Lookup("v"); f != nil {
		f.Value.Set(v)
	}

	LOG_ERROR = true
	LOG_WARN = true
	LOG_INFO = true
	LOG_DEBUG = Verbose(strings.EqualFold(level, "debug") || strings.EqualFold(level, "verbose"))
	LOG_VERBOSE = Verbose(strings.EqualFold(level, "verbose"))
}

func Infof(format string, args ...interface{}) {
	if LOG_INFO {
		glog.InfoDepth(1, sprintf(format, args...))
	}
}

func Warningf(format string, args ...interface{}) {
	if LOG_WARN {
		glog.WarningDepth(1, sprintf(format, args...))
	}
}

func Errorf(format string, args ...interface{}) {
	if LOG_ERROR {
		glog.ErrorDepth(1, sprintf(format, args...))
	}
}

func Debugf(format string, args ...interface{}) {
	if LOG_DEBUG {
		glog.InfoDepth(1, sprintf(format, args...))
	}
}

func Verbosef(format string, args ...interface{}) {
	if LOG_VERBOSE {
		glog.InfoDepth(1, sprintf(format, args...))
	}
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
