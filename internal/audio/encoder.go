package audio

import (
	"context"
	"earninja_backend/internal/util"
	"errors"
	"fmt"
)

var ErrEncoderFailed = errors.New("encoder failed")

// Encoder turns a WAV file into the published compressed format.
type Encoder interface {
	WavToMp3(ctx context.Context, wavPath, mp3Path string) error
}

// FFmpegEncoder boosts loudness by NumDBLouder and encodes mp3 with ffmpeg.
type FFmpegEncoder struct {
	Path        string
	NumDBLouder float64
}

func (e *FFmpegEncoder) WavToMp3(ctx context.Context, wavPath, mp3Path string) error {
	if err := util.WavToMp3(ctx, e.Path, wavPath, mp3Path, e.NumDBLouder); err != nil {
		return fmt.Errorf("%w: %v", ErrEncoderFailed, err)
	}
	return nil
}
