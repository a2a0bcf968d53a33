package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"time"
)

// Mock synthesizes silent WAV audio sized to the text, for development and
// tests where no speech engine is available.
type Mock struct {
	SampleRate int
}

func (m Mock) Name() string {
	return "mock"
}

func (m Mock) Synthesize(_ context.Context, text string) (Result, error) {
	rate := m.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	duration := speakingTime(text)
	return Result{
		Audio:       silentWAV(duration, rate),
		ContentType: "audio/wav",
		Duration:    duration,
	}, nil
}

// speakingTime approximates how long the text would take to speak, with a
// floor so even one-word answers produce audible-length output.
func speakingTime(text string) time.Duration {
	seconds := float64(len([]rune(text))) / 12.0
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds * float64(time.Second))
}

func silentWAV(duration time.Duration, sampleRate int) []byte {
	samples := int(math.Ceil(duration.Seconds() * float64(sampleRate)))
	dataSize := samples * 2 // 16-bit mono PCM

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}
