// Copyright 2025 The Dagflow Authors.
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

// Package dlog provides the structured logger threaded through the engine
// and the stock node packages, so call sites depend on a small interface
// rather than the concrete logrus type.
package dlog

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the subset of logging calls the engine needs. It is satisfied
// by *Logrus below, and by any other backend a caller wants to plug in.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	WithField(key string, value any) Logger
}

// Logrus wraps a logrus.Logger to satisfy Logger.
type Logrus struct {
	entry *logrus.Entry
}

// Config controls the level and format of a new Logrus logger.
type Config struct {
	Level  string // one of logrus's level names; defaults to "info"
	Format string // "json" or "text" (default)
}

// New builds a Logrus logger writing to stdout per cfg.
func New(cfg Config) *Logrus {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.ToLower(cfg.Format) == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Logrus{entry: logrus.NewEntry(l)}
}

// Default returns a Logrus logger at info level, text format, for callers
// that don't need custom configuration (the reference demo harness, tests).
func Default() *Logrus {
	return New(Config{Level: "info"})
}

func (l *Logrus) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logrus) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logrus) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *Logrus) WithField(key string, value any) Logger {
	return &Logrus{entry: l.entry.WithField(key, value)}
}

// Nop is a Logger that discards everything, used as the zero-value default
// so the engine never nil-checks its logger field.
type Nop struct{}

func (Nop) Debugf(string, ...any)           {}
func (Nop) Warnf(string, ...any)            {}
func (Nop) Errorf(string, ...any)           {}
func (n Nop) WithField(string, any) Logger { return n }
