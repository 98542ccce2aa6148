package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes raw capture-format PCM to path as a WAV file. Used by the
// debug audio dump and by test fixtures.
func WriteWAV(path string, pcm []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, SampleRate, BitsPerSample, Channels, 1)

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: Channels, SampleRate: SampleRate},
		SourceBitDepth: BitsPerSample,
		Data:           samples,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// ReadWAV loads a WAV file and returns its PCM payload as capture-format
// bytes. The file must be 16-bit mono; sample rate is not resampled.
func ReadWAV(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: decoding PCM: %w", path, err)
	}

	var out bytes.Buffer
	out.Grow(len(buf.Data) * 2)
	tmp := make([]byte, 2)
	for _, s := range buf.Data {
		binary.LittleEndian.PutUint16(tmp, uint16(int16(s)))
		out.Write(tmp)
	}
	return out.Bytes(), nil
}
