package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// EncodeWAV renders a buffer as a 16-bit PCM mono WAV file, the container
// the prerecorded transcription APIs accept.
func EncodeWAV(b Buffer) []byte {
	rate := b.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	dataLen := len(b.Samples) * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(rate))
	binary.Write(&buf, binary.LittleEndian, uint32(rate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	for _, s := range b.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.Write(&buf, binary.LittleEndian, int16(s*math.MaxInt16))
	}
	return buf.Bytes()
}

// DecodeWAV parses a 16-bit PCM WAV file into a mono buffer. Multi-channel
// input is averaged down to mono.
func DecodeWAV(data []byte) (Buffer, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Buffer{}, errors.New("not a RIFF/WAVE file")
	}

	var (
		format     uint16
		channels   uint16
		sampleRate uint32
		bits       uint16
		samples    []float32
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			return Buffer{}, errors.New("truncated chunk")
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return Buffer{}, errors.New("short fmt chunk")
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bits = binary.LittleEndian.Uint16(data[body+14 : body+16])
		case "data":
			if format != 1 || bits != 16 {
				return Buffer{}, fmt.Errorf("unsupported wav encoding: format=%d bits=%d", format, bits)
			}
			if channels == 0 {
				channels = 1
			}
			frame := int(channels) * 2
			count := size / frame
			samples = make([]float32, 0, count)
			for i := 0; i < count; i++ {
				var sum float32
				for c := 0; c < int(channels); c++ {
					off := body + i*frame + c*2
					sum += float32(int16(binary.LittleEndian.Uint16(data[off:off+2]))) / math.MaxInt16
				}
				samples = append(samples, sum/float32(channels))
			}
		}
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if samples == nil {
		return Buffer{}, errors.New("missing data chunk")
	}
	return Buffer{Samples: samples, SampleRate: int(sampleRate)}, nil
}
