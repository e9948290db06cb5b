package audio

import (
	"fmt"
	"path"
	"strings"
)

const (
	AudioDir           = "audio"
	intermediatePrefix = "intermediate_"
)

// InstanceAudioPath is the storage key of the published mp3 of an interval instance.
func InstanceAudioPath(instanceID uint) string {
	return path.Join(AudioDir, fmt.Sprintf("interval_instance_%d.mp3", instanceID))
}

// IntermediateBasePath returns the scratch base path (no extension) next to a
// published key. Each instance has its own key, so concurrent renders of
// different instances never share intermediate files.
func IntermediateBasePath(audioPath string) string {
	dir, file := path.Split(audioPath)
	stem := strings.TrimSuffix(file, path.Ext(file))
	return path.Join(dir, intermediatePrefix+stem)
}
