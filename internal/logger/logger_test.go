package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestVerbosityGates(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetVerbosity(int(Info))

	SetVerbosity(int(Error))
	Infof("quiet info")
	Errorf("loud error")
	if strings.Contains(buf.String(), "quiet info") {
		t.Fatal("info line leaked at error verbosity")
	}
	if !strings.Contains(buf.String(), "loud error") {
		t.Fatal("error line missing at error verbosity")
	}

	buf.Reset()
	SetVerbosity(int(Debug))
	Debugf("diagnostic detail")
	Tracef("too fine")
	if !strings.Contains(buf.String(), "diagnostic detail") {
		t.Fatal("debug line missing at debug verbosity")
	}
	if strings.Contains(buf.String(), "too fine") {
		t.Fatal("trace line leaked at debug verbosity")
	}

	buf.Reset()
	SetVerbosity(99) // anything past debug opens the trace gate
	Tracef("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatal("trace line missing at trace verbosity")
	}
}

func TestSetLoggerRoutesOutput(t *testing.T) {
	prev := log
	defer SetLogger(prev)

	var buf bytes.Buffer
	repl := logrus.New()
	repl.SetOutput(&buf)
	SetLogger(repl)

	Warnf("routed line")
	if !strings.Contains(buf.String(), "routed line") {
		t.Fatal("replacement logger did not receive the line")
	}

	// nil keeps whatever is installed
	SetLogger(nil)
	Warnf("second line")
	if !strings.Contains(buf.String(), "second line") {
		t.Fatal("nil replacement must not drop the installed logger")
	}
}
