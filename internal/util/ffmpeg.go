package util

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

func init() {
	// ffmpeg-go logs every command line through the standard logger
	ffmpeg.LogCompiledCommand = false
}

// AudioInfo is the subset of ffprobe output the audio pipeline cares about.
type AudioInfo struct {
	Duration   float64 `json:"duration"`
	Codec      string  `json:"codec"`
	SampleRate int     `json:"sampleRate"`
	Size       int64   `json:"size"`
}

// GetAudioInfo probes an audio file with ffprobe.
func GetAudioInfo(audioPath string) (*AudioInfo, error) {
	fileInfo, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("audio file does not exist: %w", err)
	}

	jsonOutput, err := ffmpeg.Probe(audioPath)
	if err != nil {
		return nil, fmt.Errorf("probe audio: %w", err)
	}

	var result struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
			Size     string `json:"size"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(jsonOutput), &result); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}

	info := &AudioInfo{Size: fileInfo.Size()}
	for _, stream := range result.Streams {
		if stream.CodecType == "audio" {
			info.Codec = stream.CodecName
			info.SampleRate, _ = strconv.Atoi(stream.SampleRate)
			break
		}
	}
	info.Duration, _ = strconv.ParseFloat(result.Format.Duration, 64)
	if size, err := strconv.ParseInt(result.Format.Size, 10, 64); err == nil {
		info.Size = size
	}
	return info, nil
}

// wavToMp3Stream raises the volume by numDBLouder and encodes to mp3.
func wavToMp3Stream(ctx context.Context, wavPath, mp3Path string, numDBLouder float64) *ffmpeg.Stream {
	input := ffmpeg.Input(wavPath, ffmpeg.KwArgs{"f": "wav"})
	return ffmpeg.OutputContext(ctx, []*ffmpeg.Stream{input}, mp3Path, ffmpeg.KwArgs{
		"filter:a": fmt.Sprintf("volume=%sdB", strconv.FormatFloat(numDBLouder, 'f', -1, 64)),
		"codec:a":  "libmp3lame",
		"q:a":      "2",
	}).OverWriteOutput()
}

// WavToMp3Args is the ffmpeg command line WavToMp3 runs.
func WavToMp3Args(wavPath, mp3Path string, numDBLouder float64) []string {
	return wavToMp3Stream(context.Background(), wavPath, mp3Path, numDBLouder).GetArgs()
}

// WavToMp3 runs ffmpeg. The context bounds the process lifetime.
func WavToMp3(ctx context.Context, ffmpegPath, wavPath, mp3Path string, numDBLouder float64) error {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	var errOut bytes.Buffer
	err := wavToMp3Stream(ctx, wavPath, mp3Path, numDBLouder).
		SetFfmpegPath(ffmpegPath).
		WithErrorOutput(&errOut).
		Run()
	if err != nil {
		return fmt.Errorf("ffmpeg: %v, %s", err, errOut.String())
	}
	return nil
}

// GetFFmpegVersion is used by the health check to confirm ffmpeg is installed.
func GetFFmpegVersion(ffmpegPath string) (string, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	cmd := exec.Command(ffmpegPath, "-version", "-hide_banner")
	var out bytes.Buffer
	var errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg is not available: %v, %s", err, errOut.String())
	}

	return out.String(), nil
}
