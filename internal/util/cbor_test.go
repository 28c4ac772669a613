package util

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCBORPretty_OK(t *testing.T) {
	var decoded any
	// {1: h'0102', "name": [true, 2]}
	data := []byte{0xA2, 0x01, 0x42, 0x01, 0x02, 0x64, 0x6E, 0x61, 0x6D, 0x65, 0x82, 0xF5, 0x02}
	require.Nil(t, cbor.Unmarshal(data, &decoded))

	out, err := RenderCBORPretty(decoded)
	require.Nil(t, err)
	assert.Contains(t, out, `"1": "h'0102'"`)
	assert.Contains(t, out, `"name"`)
}

func TestRenderCBORPretty_Tag_OK(t *testing.T) {
	var decoded any
	// 501({0: "id"})
	data := []byte{0xD9, 0x01, 0xF5, 0xA1, 0x00, 0x62, 0x69, 0x64}
	require.Nil(t, cbor.Unmarshal(data, &decoded))

	out, err := RenderCBORPretty(decoded)
	require.Nil(t, err)
	assert.Contains(t, out, `"_cborTag": 501`)
}

func TestSet(t *testing.T) {
	s := NewSet[string]()
	assert.False(t, s.Has("a"))
	s.Add("a")
	assert.True(t, s.Has("a"))
}
