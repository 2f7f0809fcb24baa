// Copyright 2024 guestshare Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ParseLevel maps a settings logging value to a logrus level.
// "none" and "off" map to PanicLevel, which nothing in guestshare logs at.
func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return logrus.TraceLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn", "":
		return logrus.WarnLevel, nil
	case "none", "off":
		return logrus.PanicLevel, nil
	default:
		return logrus.WarnLevel, fmt.Errorf("unknown logging level %q, valid options none, warn, info, debug, trace", level)
	}
}

// ConfigureLogging sets up the standard logrus logger for the CLI.
// Logs go to stderr so they never interleave with menu output on stdout.
func ConfigureLogging(level string, debug bool) *logrus.Entry {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	if debug && lvl < logrus.DebugLevel {
		lvl = logrus.DebugLevel
	}

	logger := logrus.StandardLogger()
	if lvl == logrus.PanicLevel {
		logger.SetOutput(io.Discard)
	} else {
		logger.SetOutput(os.Stderr)
	}
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: !debug,
		FullTimestamp:    debug,
	})
	return logrus.NewEntry(logger)
}
