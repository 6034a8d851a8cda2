// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_EMPTY", "")
	t.Setenv("TEST_INT", " 12 ")
	t.Setenv("TEST_BAD_INT", "twelve")
	t.Setenv("TEST_DUR", "250ms")
	t.Setenv("TEST_BOOL", "YES")
	t.Setenv("TEST_BAD_BOOL", "maybe")
	t.Setenv("TEST_FLOAT", "0.5")

	assert.Equal(t, "value", ParseString("TEST_STR", "d"))
	assert.Equal(t, "d", ParseString("TEST_EMPTY", "d"))
	assert.Equal(t, "d", ParseString("TEST_UNSET_KEY", "d"))
	assert.Equal(t, 12, ParseInt("TEST_INT", 1))
	assert.Equal(t, 1, ParseInt("TEST_BAD_INT", 1))
	assert.Equal(t, 250*time.Millisecond, ParseDuration("TEST_DUR", time.Second))
	assert.True(t, ParseBool("TEST_BOOL", false))
	assert.True(t, ParseBool("TEST_BAD_BOOL", true))
	assert.InDelta(t, 0.5, ParseFloat("TEST_FLOAT", 1), 1e-9)
	assert.InDelta(t, 1.0, ParseFloat("TEST_EMPTY", 1), 1e-9)
}
