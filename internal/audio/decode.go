package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hajimehoshi/go-mp3"
	resampling "github.com/tphakala/go-audio-resampling"
)

// DecodeSlin turns a WAV or MP3 payload into mono 16-bit PCM at rate Hz.
func DecodeSlin(payload []byte, rate int) ([]byte, error) {
	var (
		pcm []byte
		f   Format
		err error
	)
	if IsWAV(payload) {
		pcm, f, err = DecodeWAV(payload)
	} else {
		pcm, f, err = decodeMP3(payload)
	}
	if err != nil {
		return nil, err
	}
	mono := Downmix(pcm, f.Channels)
	return Resample(mono, f.SampleRate, rate)
}

func decodeMP3(payload []byte) ([]byte, Format, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(payload))
	if err != nil {
		return nil, Format{}, fmt.Errorf("failed to open mp3 stream: %w", err)
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, Format{}, fmt.Errorf("failed to decode mp3: %w", err)
	}
	// go-mp3 always yields 16-bit stereo
	return pcm, Format{SampleRate: decoder.SampleRate(), Channels: 2}, nil
}

// Downmix averages interleaved channels into mono.
func Downmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frame := channels * 2
	out := make([]byte, 0, len(pcm)/channels)
	for i := 0; i+frame <= len(pcm); i += frame {
		var sum int
		for ch := 0; ch < channels; ch++ {
			sum += int(int16(binary.LittleEndian.Uint16(pcm[i+ch*2:])))
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(sum/channels)))
	}
	return out
}

// Resample converts mono 16-bit PCM between sample rates. The resampler is
// flushed so the tail held in its filter is not lost.
func Resample(pcm []byte, from, to int) ([]byte, error) {
	if from == to || len(pcm) < 2 {
		return pcm, nil
	}
	input := make([]float64, len(pcm)/2)
	for i := range input {
		input[i] = float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	output, err := resampling.ResampleMono(input, float64(from), float64(to), resampling.QualityHigh)
	if err != nil {
		return nil, fmt.Errorf("failed to resample %d Hz to %d Hz: %w", from, to, err)
	}

	out := make([]byte, 0, len(output)*2)
	for _, v := range output {
		s := math.Max(-1, math.Min(1, v)) * 32767
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(s)))
	}
	return out, nil
}
