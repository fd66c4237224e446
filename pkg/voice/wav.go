package voice

import (
	"encoding/binary"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core"
)

const (
	// DefaultSampleRate matches what the speech backend expects for
	// uploaded segments.
	DefaultSampleRate = 16000
	defaultBitDepth   = 16
	defaultChannels   = 1
)

// EncodeWAV wraps raw 16-bit little-endian mono PCM in a WAV container so a
// flushed speech segment can be posted or played back directly.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, core.NewInvalidRequestError("pcm data must be 16-bit aligned")
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	var out wavBuffer
	enc := wav.NewEncoder(&out, sampleRate, defaultBitDepth, defaultChannels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: defaultChannels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: defaultBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, core.NewInvalidRequestError("encode wav: " + err.Error())
	}
	if err := enc.Close(); err != nil {
		return nil, core.NewInvalidRequestError("finalize wav: " + err.Error())
	}
	return out.data, nil
}

// wavBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes on Close.
type wavBuffer struct {
	data []byte
	pos  int
}

func (b *wavBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *wavBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, core.NewInvalidRequestError("invalid seek whence")
	}
	if next < 0 {
		return 0, core.NewInvalidRequestError("seek before start of buffer")
	}
	b.pos = int(next)
	return next, nil
}
