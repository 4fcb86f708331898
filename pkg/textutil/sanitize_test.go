package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	assert.Equal(t, "Replaced fan capacitor", Clean("  Replaced <b>fan</b> capacitor "))
	assert.Equal(t, "", Clean("<script>alert(1)</script>"))
	assert.Equal(t, "Tom & Jerry's AC", Clean("Tom & Jerry's AC"))
	assert.Equal(t, "", Clean("   "))
}

func TestCleanAll(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, CleanAll([]string{" a ", "<i></i>", "b"}))
}
