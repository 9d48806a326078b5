package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Format describes 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// Telephony is the AudioSocket slin format.
var Telephony = Format{SampleRate: 8000, Channels: 1}

// BytesPerSecond returns the PCM byte rate.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// EncodeWAV wraps raw PCM in a canonical 44-byte RIFF header.
func EncodeWAV(pcm []byte, f Format) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(f.BytesPerSecond()))
	binary.Write(&buf, binary.LittleEndian, uint16(f.Channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV walks the RIFF chunks and returns the PCM payload of a 16-bit WAV.
func DecodeWAV(data []byte) ([]byte, Format, error) {
	if !IsWAV(data) {
		return nil, Format{}, fmt.Errorf("not a valid WAV file")
	}

	var f Format
	haveFmt := false
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, Format{}, fmt.Errorf("short fmt chunk")
			}
			if tag := binary.LittleEndian.Uint16(data[body:]); tag != 1 {
				return nil, Format{}, fmt.Errorf("unsupported WAV encoding %d", tag)
			}
			f.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			if bits := binary.LittleEndian.Uint16(data[body+14:]); bits != 16 {
				return nil, Format{}, fmt.Errorf("unsupported bit depth %d", bits)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, fmt.Errorf("data chunk before fmt chunk")
			}
			return data[body:end], f, nil
		}
		// chunks are word aligned
		pos = body + size + size%2
	}
	return nil, Format{}, fmt.Errorf("no data chunk found")
}

// LoadWAVFile reads a WAV file from disk and returns its PCM payload.
func LoadWAVFile(path string) ([]byte, Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, Format{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, Format{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DecodeWAV(data)
}
