package label

import (
	"fmt"

	"mediaseal/internal/drm"
)

// Labeler maps stream attributes to a stream label.
type Labeler interface {
	Label(attrs drm.EncryptedStreamAttributes) (string, error)
}

// Func adapts a caller-supplied labeling function. Its result is used
// verbatim; an empty string selects the default key map entry.
type Func func(attrs drm.EncryptedStreamAttributes) string

// Label implements Labeler.
func (f Func) Label(attrs drm.EncryptedStreamAttributes) (string, error) {
	return f(attrs), nil
}

// Audio channel buckets.
const (
	LabelAudioMono     = "AUDIO-MONO"
	LabelAudioStereo   = "AUDIO-STEREO"
	LabelAudioSurround = "AUDIO-SURROUND"
)

// Video resolution buckets. Bit depths above 8 append the 10-bit suffix,
// giving six disjoint video buckets.
const (
	LabelVideoSD = "SD"
	LabelVideoHD = "HD"
	LabelVideoUHD = "UHD"

	highBitDepthSuffix = "-10BIT"
)

// Default is the built-in labeling policy used when no Func is configured.
type Default struct{}

// Label buckets audio streams by channel count and video streams by
// resolution and bit depth. Unknown stream types are a labeling error: the
// caller omitted required attributes.
func (Default) Label(attrs drm.EncryptedStreamAttributes) (string, error) {
	switch attrs.Type() {
	case drm.StreamAudio:
		audio, _ := attrs.Audio()
		return audioLabel(audio)
	case drm.StreamVideo:
		video, _ := attrs.Video()
		return videoLabel(video)
	}
	return "", drm.Wrap(drm.ErrLabeling, "label", "classify", "stream type is unknown", nil)
}

func audioLabel(audio drm.AudioAttributes) (string, error) {
	switch {
	case audio.ChannelCount <= 0:
		return "", drm.Wrap(drm.ErrLabeling, "label", "classify", fmt.Sprintf("invalid audio channel count %d", audio.ChannelCount), nil)
	case audio.ChannelCount == 1:
		return LabelAudioMono, nil
	case audio.ChannelCount == 2:
		return LabelAudioStereo, nil
	}
	return LabelAudioSurround, nil
}

func videoLabel(video drm.VideoAttributes) (string, error) {
	if video.Width <= 0 || video.Height <= 0 {
		return "", drm.Wrap(drm.ErrLabeling, "label", "classify", fmt.Sprintf("invalid video dimensions %dx%d", video.Width, video.Height), nil)
	}

	bucket := LabelVideoSD
	switch {
	case video.Height >= 2160 || video.Width >= 3840:
		bucket = LabelVideoUHD
	case video.Height >= 720 || video.Width >= 1280:
		bucket = LabelVideoHD
	}

	if video.BitDepth > 8 {
		bucket += highBitDepthSuffix
	}
	return bucket, nil
}
