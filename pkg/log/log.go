/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package log

import (
	"errors"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	LogPrefix  = "go-xrit"
	HelpLevels = "Must be one of: error, warning, info, debug."
)

// Fields is an alias so that callers don't have to import logrus
type Fields = logrus.Fields

var levelMapping = map[string]logrus.Level{
	"error":   logrus.ErrorLevel,
	"warning": logrus.WarnLevel,
	"info":    logrus.InfoLevel,
	"debug":   logrus.DebugLevel,
}

var logger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

func SetLevel(strLevel string) error {
	level, ok := levelMapping[strLevel]
	if !ok {
		return errors.New("Wrong log level. " + HelpLevels)
	}
	logger.SetLevel(level)
	return nil
}

// ValidLevel reports whether strLevel is one of the known level names
func ValidLevel(strLevel string) bool {
	_, ok := levelMapping[strLevel]
	return ok
}

func Init(out io.Writer, strLevel string) {
	logger.SetOutput(out)
	if err := SetLevel(strLevel); err != nil {
		panic(err)
	}
}

// Writer returns a writer that logs every line at info level.
// The caller must close it when done.
func Writer() *io.PipeWriter {
	return logger.WithField("app", LogPrefix).WriterLevel(logrus.InfoLevel)
}

// WithFields returns an entry for structured logging of a single event
func WithFields(fields Fields) *logrus.Entry {
	return logger.WithField("app", LogPrefix).WithFields(fields)
}

func Error(format string, v ...interface{}) {
	logger.WithField("app", LogPrefix).Errorf(format, v...)
}

func Warning(format string, v ...interface{}) {
	logger.WithField("app", LogPrefix).Warnf(format, v...)
}

func Info(format string, v ...interface{}) {
	logger.WithField("app", LogPrefix).Infof(format, v...)
}

func Debug(format string, v ...interface{}) {
	logger.WithField("app", LogPrefix).Debugf(format, v...)
}

// DebugEnabled allows callers to skip building expensive debug output
func DebugEnabled() bool {
	return logger.IsLevelEnabled(logrus.DebugLevel)
}
