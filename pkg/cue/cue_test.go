package cue

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBellWritesBEL(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, Bell{W: &buf}.Play())
	assert.Equal(t, []byte{'\a'}, buf.Bytes())

	assert.Error(t, Bell{}.Play())
}

func TestCommandMissingPlayer(t *testing.T) {
	assert.Error(t, Command{}.Play())
	assert.Error(t, Command{Name: "definitely-not-an-audio-player-xyz"}.Play())
}

func TestFromSettings(t *testing.T) {
	var buf bytes.Buffer

	assert.Equal(t, Command{Name: "aplay", Args: []string{"-q", "click.wav"}},
		FromSettings([]string{"aplay", "-q", "click.wav"}, true, &buf))
	assert.Equal(t, Bell{W: &buf}, FromSettings(nil, true, &buf))
	assert.Equal(t, Silent{}, FromSettings(nil, false, &buf))
	assert.NoError(t, Silent{}.Play())
}
