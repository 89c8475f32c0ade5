package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriteTimeout(t *testing.T) {
	assert.Equal(t, 65*time.Second, writeTimeout(60*time.Second))
	assert.Equal(t, 35*time.Second, writeTimeout(30*time.Second))
	assert.Equal(t, defaultWriteTimeout, writeTimeout(0))
	assert.Equal(t, defaultWriteTimeout, writeTimeout(-time.Second))
}
