package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	MimeMP3   = "audio/mpeg"
	MimeAudio = "audio/"
)

const (
	// lowest and highest octave whose notes stay inside the MIDI key range
	MinOctave = 0
	MaxOctave = 7
)

// task kinds carried on the render queue
const (
	TaskUpdateIntervalInstanceAudio = "update_interval_instance_audio"
)
