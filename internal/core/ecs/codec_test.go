package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeComponentStructuralCopy(t *testing.T) {
	data, err := EncodeComponent(&position{X: 1.5, Y: -2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"X": 1.5, "Y": -2.0}, data)

	back, err := DecodeComponent("Position", positionClass.New, data)
	require.NoError(t, err)
	assert.Equal(t, &position{X: 1.5, Y: -2}, back)
}

func TestCodecUsesSerializerPair(t *testing.T) {
	data, err := EncodeComponent(&label{Text: "flag"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "flag"}, data)

	back, err := DecodeComponent("Label", labelClass.New, data)
	require.NoError(t, err)
	assert.Equal(t, &label{Text: "flag"}, back)

	_, err = DecodeComponent("Label", labelClass.New, map[string]any{})
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	p := &position{X: 1}
	c := p.Clone().(*position)
	c.X = 5
	assert.Equal(t, 1.0, p.X)
}
