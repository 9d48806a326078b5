package audio

import (
	"encoding/binary"
	"log/slog"
	"math"
	"math/cmplx"
	"sync"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	levelFFTSize = 256
	levelMinDB   = -100.0
	levelMaxDB   = -30.0

	// MaxLevel is the upper bound of LevelMeter.Level.
	MaxLevel = 255.0
)

// LevelMeter implements interview.LevelMonitor. It keeps the last 256
// samples of the device and reports the mean of their spectrum mapped to
// 0..255 on a -100..-30 dB scale.
type LevelMeter struct {
	logger *slog.Logger

	mu     sync.Mutex
	fft    *fourier.FFT
	window []float64
	coeffs []complex128
	level  float64
	remove func()
}

// NewLevelMeter creates an idle meter.
func NewLevelMeter(logger *slog.Logger) *LevelMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LevelMeter{
		logger: logger,
		fft:    fourier.NewFFT(levelFFTSize),
		window: make([]float64, 0, levelFFTSize),
	}
}

// Start attaches the meter to h. Handles that are not audio devices leave
// the level at zero.
func (m *LevelMeter) Start(h interview.DeviceHandle) {
	m.Stop()
	dev, ok := h.(*Device)
	if !ok || dev == nil {
		m.logger.Warn("level meter unavailable for device, reporting silence")
		return
	}
	remove := dev.tap(m.observe)
	m.mu.Lock()
	m.remove = remove
	m.mu.Unlock()
}

// Stop detaches the meter and resets the level.
func (m *LevelMeter) Stop() {
	m.mu.Lock()
	remove := m.remove
	m.remove = nil
	m.level = 0
	m.window = m.window[:0]
	m.mu.Unlock()
	if remove != nil {
		remove()
	}
}

// Level returns the latest level in [0, MaxLevel].
func (m *LevelMeter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *LevelMeter) observe(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remove == nil {
		return
	}
	for i := 0; i+1 < len(frame); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(frame[i:]))) / 32768.0
		if len(m.window) == levelFFTSize {
			copy(m.window, m.window[1:])
			m.window[levelFFTSize-1] = sample
		} else {
			m.window = append(m.window, sample)
		}
	}
	if len(m.window) < levelFFTSize {
		return
	}
	m.level = spectrumLevel(m.fft, m.window, &m.coeffs)
}

func spectrumLevel(fft *fourier.FFT, window []float64, coeffs *[]complex128) float64 {
	*coeffs = fft.Coefficients(*coeffs, window)
	bins := levelFFTSize / 2
	var sum float64
	for k := 0; k < bins; k++ {
		magnitude := cmplx.Abs((*coeffs)[k]) / levelFFTSize
		sum += byteLevel(magnitude)
	}
	return sum / float64(bins)
}

// byteLevel maps a linear magnitude to 0..255 the way a browser analyser does.
func byteLevel(magnitude float64) float64 {
	if magnitude <= 0 {
		return 0
	}
	db := 20 * math.Log10(magnitude)
	v := (db - levelMinDB) / (levelMaxDB - levelMinDB) * MaxLevel
	return math.Max(0, math.Min(MaxLevel, v))
}
