// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package destination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	b := NewBuffer()
	_, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b.Bytes())

	require.NoError(t, b.Close())
	_, err = b.Write([]byte("d"))
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, b.Close(), ErrClosed)

	b = NewBuffer()
	_, _ = b.Write([]byte("abc"))
	require.NoError(t, b.Abort())
	assert.True(t, b.Aborted())
	assert.Empty(t, b.Bytes())
}
