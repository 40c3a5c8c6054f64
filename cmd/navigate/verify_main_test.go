package main

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain is used to control the execution of all tests run within this package.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"))
}
