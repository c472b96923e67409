/*
Copyright © 2024 the qdoas-engine authors.
This file is part of qdoas-engine.

qdoas-engine is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

qdoas-engine is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with qdoas-engine.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package doaslog wraps logrus with the two fields every recovered
// analysis error needs attached: the window and the record it failed
// on (spec.md §7 error taxonomy).
package doaslog

import (
	"time"

	"github.com/sirupsen/logrus"
)

var base = logrus.StandardLogger()

func init() {
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
	})
}

// SetLevel adjusts the package-wide log level, e.g. from a config
// file's verbosity setting.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// Window returns an entry tagged with the analysis window name,
// used for recovered per-window errors pushed onto an ErrorStack.
func Window(name string) *logrus.Entry {
	return base.WithField("window", name)
}

// Record returns an entry tagged with the window name and the
// record index within the current file or orbit.
func Record(window string, index int) *logrus.Entry {
	return base.WithFields(logrus.Fields{"window": window, "record": index})
}
