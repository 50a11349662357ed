package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathComponent(t *testing.T) {
	assert.Equal(t, "openssl-1.1", PathComponent("openssl-1.1"))
	assert.Equal(t, "a_b", PathComponent("a/b"))
	assert.Equal(t, "c__host_443", PathComponent("c:\\host:443"))
}
