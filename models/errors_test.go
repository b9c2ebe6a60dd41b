package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("chromium: %w", NewScrapeError(ErrCodeTimeout, "slow", errors.New("deadline")))

	assert.Equal(t, ErrCodeTimeout, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
	assert.EqualError(t, wrapped, "chromium: FETCH_TIMEOUT: slow: deadline")
}
