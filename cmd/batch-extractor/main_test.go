package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/datamade/la-metro-translations/internal/config"
)

func TestTimeoutFor(t *testing.T) {
	assert.Equal(t, defaultRunTimeout, timeoutFor(&config.Config{}))
	assert.Less(t, defaultRunTimeout, 9*time.Minute)
	assert.Equal(t, 50*time.Minute, timeoutFor(&config.Config{ExtractRunTimeout: 50 * time.Minute}))
}
