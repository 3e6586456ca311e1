package drm

// StreamType classifies a stream for labeling purposes.
type StreamType string

const (
	StreamUnknown StreamType = "unknown"
	StreamVideo   StreamType = "video"
	StreamAudio   StreamType = "audio"
)

// VideoAttributes describes the shape of a video stream.
type VideoAttributes struct {
	Width     int
	Height    int
	FrameRate float64
	BitDepth  int
}

// AudioAttributes describes the shape of an audio stream.
type AudioAttributes struct {
	ChannelCount int
}

// EncryptedStreamAttributes carries the stream characteristics the labeler
// uses to group streams onto shared keys. It is a tagged variant: the
// payload matching Type is the only one populated.
type EncryptedStreamAttributes struct {
	typ   StreamType
	video VideoAttributes
	audio AudioAttributes
}

// VideoStream builds attributes for a video stream.
func VideoStream(v VideoAttributes) EncryptedStreamAttributes {
	return EncryptedStreamAttributes{typ: StreamVideo, video: v}
}

// AudioStream builds attributes for an audio stream.
func AudioStream(a AudioAttributes) EncryptedStreamAttributes {
	return EncryptedStreamAttributes{typ: StreamAudio, audio: a}
}

// Type returns the stream classification. The zero value reports
// StreamUnknown, which the default labeler rejects.
func (a EncryptedStreamAttributes) Type() StreamType {
	if a.typ == "" {
		return StreamUnknown
	}
	return a.typ
}

// Video returns the video payload when the attributes describe video.
func (a EncryptedStreamAttributes) Video() (VideoAttributes, bool) {
	if a.typ != StreamVideo {
		return VideoAttributes{}, false
	}
	return a.video, true
}

// Audio returns the audio payload when the attributes describe audio.
func (a EncryptedStreamAttributes) Audio() (AudioAttributes, bool) {
	if a.typ != StreamAudio {
		return AudioAttributes{}, false
	}
	return a.audio, true
}
