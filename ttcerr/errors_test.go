package ttcerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRendersClassTagDetailAndIdent(t *testing.T) {
	err := New(InvalidInput, TagDuplicateJob, "0xabc", "job exists for block %d", 7)
	assert.Equal(t, "[InvalidInput] DuplicateJob: job exists for block 7 (0xabc)", err.Error())

	noIdent := New(Transient, TagChainTimeout, "", "timed out")
	assert.Equal(t, "[Transient] ChainTimeout: timed out", noIdent.Error())
}

func TestWrapPreservesCauseForErrorsIs(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, Transient, TagChainUnreachable, "eth_call")
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "connection refused", err.Detail)
}

func TestAsFindsErrorThroughWrapping(t *testing.T) {
	inner := New(FatalJob, TagProofFailed, "42", "guest rejected input")
	outer := fmt.Errorf("processing job: %w", inner)

	found, ok := As(outer)
	require.True(t, ok)
	assert.Equal(t, TagProofFailed, found.Tag)
	assert.Equal(t, "42", found.Ident)
}

func TestAsReturnsFalseForUntaggedError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}

func TestFatalOnlyForProcessScopedErrors(t *testing.T) {
	assert.True(t, New(FatalProcess, TagBindFailed, "", "port in use").Fatal())
	assert.False(t, New(FatalJob, TagProofFailed, "", "proof failed").Fatal())
	assert.False(t, New(Transient, TagChainTimeout, "", "slow node").Fatal())
	assert.False(t, New(InvalidInput, TagDuplicateJob, "", "dup").Fatal())
}
