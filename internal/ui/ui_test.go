package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetThemeMono(t *testing.T) {
	defer SetTheme("classic")
	SetTheme("mono")

	var buf bytes.Buffer
	OK(&buf, "saved")
	assert.Contains(t, buf.String(), "ok saved")

	out := Panel([]string{"a", "bb"})
	assert.Contains(t, out, "+")
	assert.Contains(t, out, "| bb |")
}

func TestFail(t *testing.T) {
	SetTheme("classic")
	var buf bytes.Buffer
	Fail(&buf, "boom")
	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "✖")
}
