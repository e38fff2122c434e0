package nlog_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/speedy-lex/neonucleus/nlog"
)

func TestLevelFilterDropsDebugByDefault(t *testing.T) {
	var buf bytes.Buffer
	l := nlog.New(&buf, nlog.LevelInfo)
	nlog.Debug(l, "msg", "should not appear")
	nlog.Info(l, "msg", "should appear")
	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Error("debug line was not filtered out at info level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("info line is missing from output")
	}
}

func TestComputerAndComponentScoping(t *testing.T) {
	var buf bytes.Buffer
	base := nlog.New(&buf, nlog.LevelDebug)
	l := nlog.Component(nlog.Computer(base, "cpu-0"), "eeprom-0", "eeprom")
	nlog.Info(l, "msg", "mounted")
	out := buf.String()
	if !strings.Contains(out, "computer=cpu-0") {
		t.Error("missing computer context")
	}
	if !strings.Contains(out, "component=eeprom-0") {
		t.Error("missing component context")
	}
	if !strings.Contains(out, "type=eeprom") {
		t.Error("missing type context")
	}
}
