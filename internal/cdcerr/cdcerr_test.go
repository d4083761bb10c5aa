package cdcerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relsnap/cdc/internal/cdcerr"
)

func TestKindOfClassifiesWrappedError(t *testing.T) {
	base := errors.New("connection refused")
	err := cdcerr.New(cdcerr.KindSourceUnavailable, "connect main", base)
	wrapped := fmt.Errorf("run table users: %w", err)

	kind, ok := cdcerr.KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, cdcerr.KindSourceUnavailable, kind)
	assert.ErrorIs(t, wrapped, base)
}

func TestKindOfFalseForPlainError(t *testing.T) {
	_, ok := cdcerr.KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestConfigfBuildsConfigErrorWithoutCause(t *testing.T) {
	err := cdcerr.Configf("primary_key required for table %s", "orders")
	kind, ok := cdcerr.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, cdcerr.KindConfigError, kind)
	assert.Contains(t, err.Error(), "orders")
}
