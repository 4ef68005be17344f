package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStyle(t *testing.T) {
	old := Plain
	t.Cleanup(func() { Plain = old })

	Plain = false
	assert.Equal(t, ColorRed+"boom"+ColorReset, Error("boom"))

	Plain = true
	assert.Equal(t, "boom", Error("boom"))
	assert.Equal(t, "ok", Success("ok"))
}
