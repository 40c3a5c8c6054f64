package config

import (
	"testing"

	testutilsext "go.viam.com/utils/testutils/ext"
)

func TestMain(m *testing.M) {
	testutilsext.VerifyTestMain(m)
}
