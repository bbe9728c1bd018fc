/*
 * Copyright (c) 2019. The Conduit Authors.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this work except in compliance with the License.
 * You may obtain a copy of the License in the LICENSE file, or at:
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package log

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultLogger is used by packages that do not carry their own logger.
var DefaultLogger Logger = NewLogger("", INFO)

type logger struct {
	entry *logrus.Logger

	mu   sync.Mutex
	path string
	file *os.File
}

// NewLogger creates a logrus backed Logger. An empty path logs to stderr,
// otherwise the file at path is opened in append mode and can be reopened
// after rotation via Reopen.
func NewLogger(path string, level Level) Logger {
	l := &logger{
		entry: logrus.New(),
		path:  path,
	}
	l.entry.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	l.SetLevel(level)
	if path != "" {
		if err := l.Reopen(); err != nil {
			l.entry.SetOutput(os.Stderr)
			l.entry.Errorf("open log file %s failed: %v, fallback to stderr", path, err)
		}
	}
	return l
}

func (l *logger) SetLevel(level Level) {
	switch level {
	case FATAL:
		l.entry.SetLevel(logrus.FatalLevel)
	case ERROR:
		l.entry.SetLevel(logrus.ErrorLevel)
	case WARN:
		l.entry.SetLevel(logrus.WarnLevel)
	case INFO:
		l.entry.SetLevel(logrus.InfoLevel)
	case DEBUG:
		l.entry.SetLevel(logrus.DebugLevel)
	case TRACE:
		l.entry.SetLevel(logrus.TraceLevel)
	}
}

func (l *logger) Println(args ...interface{}) {
	l.entry.Infoln(args...)
}

func (l *logger) Printf(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *logger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *logger) Tracef(format string, args ...interface{}) {
	l.entry.Tracef(format, args...)
}

func (l *logger) Fatalf(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}

func (l *logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.entry.SetOutput(io.Discard)
	err := l.file.Close()
	l.file = nil
	return err
}

// Reopen closes and reopens the log file. It is a no-op for stderr loggers.
func (l *logger) Reopen() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.path == "" {
		l.entry.SetOutput(os.Stderr)
		return nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	l.entry.SetOutput(f)
	return nil
}
