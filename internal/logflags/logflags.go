// Package logflags configures the per-layer loggers of the merger.
package logflags

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var merge = false
var typeServer = false
var objFile = false

var out io.Writer = os.Stderr

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New()
	logger.Out = out
	logger.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	logger.Level = logrus.DebugLevel
	if !flag {
		logger.Level = logrus.PanicLevel
	}
	return logger.WithFields(fields)
}

// Merge returns true if the merge pipeline should log.
func Merge() bool {
	return merge
}

// MergeLogger returns a logger for the merge pipeline.
func MergeLogger() *logrus.Entry {
	return makeLogger(merge, logrus.Fields{"layer": "merge"})
}

// TypeServer returns true if type-server discovery should log.
func TypeServer() bool {
	return typeServer
}

// TypeServerLogger returns a logger for type-server discovery.
func TypeServerLogger() *logrus.Entry {
	return makeLogger(typeServer, logrus.Fields{"layer": "typeserver"})
}

// ObjFile returns true if object loading should log.
func ObjFile() bool {
	return objFile
}

// ObjLogger returns a logger for object loading.
func ObjLogger() *logrus.Entry {
	return makeLogger(objFile, logrus.Fields{"layer": "objfile"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup enables layers based on the comma-separated logstr and directs
// log output to w (stderr when nil).
func Setup(logFlag bool, logstr string, w io.Writer) error {
	if w != nil {
		out = w
	}
	merge, typeServer, objFile = false, false, false
	if !logFlag {
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "merge,typeserver"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch strings.TrimSpace(logcmd) {
		case "merge":
			merge = true
		case "typeserver":
			typeServer = true
		case "objfile":
			objFile = true
		}
	}
	return nil
}
