package canonical

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenPayload struct {
	DID    string   `json:"did"`
	Scopes []string `json:"scopes,omitempty"`
	Exp    int64    `json:"exp"`
}

func TestURLSafeToken(t *testing.T) {
	assert := assert.New(t)

	// vary the length so every padding remainder shows up
	for i := 0; i < 6; i++ {
		in := tokenPayload{
			DID:    "did:plc:" + strings.Repeat("a", i),
			Scopes: []string{"com.atproto.access"},
			Exp:    int64(1700000000 + i),
		}
		tok, err := URLSafeToken(in)
		require.NoError(t, err)
		assert.NotContains(tok, "=")

		var out tokenPayload
		require.NoError(t, ParseURLSafeToken(tok, &out))
		assert.Equal(in, out)
	}
}

func TestURLSafeTokenKnownValue(t *testing.T) {
	tok, err := URLSafeToken(map[string]string{"a": "b"})
	require.NoError(t, err)
	// {"a":"b"} is 9 bytes, which base64-encodes to 12 characters without padding
	assert.Equal(t, "eyJhIjoiYiJ9", tok)

	tok, err = URLSafeToken("x")
	require.NoError(t, err)
	// "x" with quotes is 3 bytes
	assert.Equal(t, "Ingi", tok)

	tok, err = URLSafeToken(1)
	require.NoError(t, err)
	// "1" would normally carry "==" padding
	assert.Equal(t, "MQ", tok)
}

func TestURLSafeTokenErrors(t *testing.T) {
	_, err := URLSafeToken(make(chan int))
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	var out tokenPayload
	assert.ErrorIs(t, ParseURLSafeToken("MQ==", &out), ErrInvalidEncoding)
	assert.ErrorIs(t, ParseURLSafeToken("bm90IGpzb24", &out), ErrInvalidEncoding)
}
