package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

var ErrSynthesizerFailed = errors.New("synthesizer failed")

// Synthesizer renders a MIDI file to a WAV file.
type Synthesizer interface {
	RenderWav(ctx context.Context, midPath, wavPath string) error
}

// Fluidsynth shells out to the fluidsynth binary with a SoundFont.
type Fluidsynth struct {
	Path       string
	Soundfont  string
	Gain       float64
	SampleRate int
	// zero means no limit
	Timeout time.Duration
}

func (f *Fluidsynth) Args(midPath, wavPath string) []string {
	return []string{
		"-niq",
		"-g", strconv.FormatFloat(f.Gain, 'f', -1, 64),
		f.Soundfont,
		midPath,
		"-F", wavPath,
		"-r", strconv.Itoa(f.SampleRate),
	}
}

func (f *Fluidsynth) RenderWav(ctx context.Context, midPath, wavPath string) error {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	bin := f.Path
	if bin == "" {
		bin = "fluidsynth"
	}
	cmd := exec.CommandContext(ctx, bin, f.Args(midPath, wavPath)...)
	var errOut bytes.Buffer
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v, %s", ErrSynthesizerFailed, err, errOut.String())
	}
	if _, err := os.Stat(wavPath); err != nil {
		return fmt.Errorf("%w: no output written: %v", ErrSynthesizerFailed, err)
	}
	return nil
}
