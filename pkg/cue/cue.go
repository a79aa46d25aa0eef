// Package cue plays the short audible feedback given on capture.
// Playback is best effort: callers discard any error.
package cue

import (
	"errors"
	"io"
	"os/exec"
)

// Player plays one feedback cue
type Player interface {
	Play() error
}

// Silent never makes a sound
type Silent struct{}

func (Silent) Play() error { return nil }

// Bell rings the terminal bell on W
type Bell struct {
	W io.Writer
}

func (b Bell) Play() error {
	if b.W == nil {
		return errors.New("cue: no terminal to ring")
	}
	_, err := b.W.Write([]byte{'\a'})
	return err
}

// Command runs an external player (aplay, afplay, paplay ...) without waiting for it
type Command struct {
	Name string
	Args []string
}

func (c Command) Play() error {
	if c.Name == "" {
		return errors.New("cue: no player command configured")
	}
	cmd := exec.Command(c.Name, c.Args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// FromSettings picks a player: an external command wins over the bell
func FromSettings(command []string, bell bool, terminal io.Writer) Player {
	if len(command) > 0 {
		return Command{Name: command[0], Args: command[1:]}
	}
	if bell {
		return Bell{W: terminal}
	}
	return Silent{}
}
