package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// WriteWAV writes interleaved int16 PCM samples to path as a canonical
// 16-bit PCM WAV file at the package sample rate and channel count.
func WriteWAV(path string, samples []int16) error {
	data := SamplesToBytes(samples)
	byteRate := SampleRate * Channels * (BitDepth / 8)
	blockAlign := Channels * (BitDepth / 8)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav %s: %w", path, err)
	}
	defer f.Close()

	write := func(b []byte) error {
		_, err := f.Write(b)
		return err
	}

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(data)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(BitDepth))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(data)))

	if err := write(header); err != nil {
		return fmt.Errorf("write wav header %s: %w", path, err)
	}
	if err := write(data); err != nil {
		return fmt.Errorf("write wav data %s: %w", path, err)
	}
	return nil
}

// SilenceSamples returns seconds worth of silent interleaved stereo samples.
func SilenceSamples(seconds float64) []int16 {
	n := int(seconds * SampleRate * Channels)
	return make([]int16, n)
}
