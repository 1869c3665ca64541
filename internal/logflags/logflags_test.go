package logflags

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func reset() {
	merge, typeServer, objFile = false, false, false
	out = os.Stderr
}

func TestSetupDefaultLayers(t *testing.T) {
	defer reset()
	var buf bytes.Buffer
	if err := Setup(true, "", &buf); err != nil {
		t.Fatal(err)
	}
	if !Merge() || !TypeServer() || ObjFile() {
		t.Fatalf("layers = %v %v %v, want merge and typeserver", Merge(), TypeServer(), ObjFile())
	}

	MergeLogger().Debug("hello")
	if got := buf.String(); !strings.Contains(got, "hello") || !strings.Contains(got, "layer=merge") {
		t.Errorf("log output = %q", got)
	}
	buf.Reset()
	ObjLogger().Debug("quiet")
	if buf.Len() != 0 {
		t.Errorf("disabled layer logged %q", buf.String())
	}
}

func TestSetupExplicitLayers(t *testing.T) {
	defer reset()
	if err := Setup(true, "objfile, typeserver", nil); err != nil {
		t.Fatal(err)
	}
	if Merge() || !TypeServer() || !ObjFile() {
		t.Fatalf("layers = %v %v %v, want typeserver and objfile", Merge(), TypeServer(), ObjFile())
	}
	if lvl := TypeServerLogger().Logger.Level; lvl != logrus.DebugLevel {
		t.Errorf("enabled level = %v, want %v", lvl, logrus.DebugLevel)
	}
	if lvl := MergeLogger().Logger.Level; lvl != logrus.PanicLevel {
		t.Errorf("disabled level = %v, want %v", lvl, logrus.PanicLevel)
	}
}

func TestSetupWithoutLog(t *testing.T) {
	defer reset()
	if err := Setup(false, "merge", nil); err != errLogstrWithoutLog {
		t.Errorf("Setup error = %v, want %v", err, errLogstrWithoutLog)
	}
	if err := Setup(false, "", nil); err != nil {
		t.Errorf("Setup error = %v", err)
	}
	if Merge() || TypeServer() || ObjFile() {
		t.Error("layers enabled without --log")
	}
}
