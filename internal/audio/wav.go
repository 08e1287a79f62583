package audio

import "encoding/binary"

const (
	wavFormatIEEEFloat = 3
	wavBitsPerSample   = 32
)

// EncodeWAV writes interleaved samples as an IEEE float 32-bit WAV file.
// Layout: RIFF/WAVE, an 18-byte fmt chunk, a fact chunk, then data.
func EncodeWAV(samples []float32, sampleRate, channels int) []byte {
	const bytesPerSample = wavBitsPerSample / 8
	dataLen := len(samples) * bytesPerSample
	blockAlign := channels * bytesPerSample

	buf := make([]byte, 0, 58+dataLen)
	le := binary.LittleEndian

	buf = append(buf, "RIFF"...)
	buf = le.AppendUint32(buf, uint32(4+(8+18)+(8+4)+(8+dataLen)))
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	buf = le.AppendUint32(buf, 18)
	buf = le.AppendUint16(buf, wavFormatIEEEFloat)
	buf = le.AppendUint16(buf, uint16(channels))
	buf = le.AppendUint32(buf, uint32(sampleRate))
	buf = le.AppendUint32(buf, uint32(sampleRate*blockAlign))
	buf = le.AppendUint16(buf, uint16(blockAlign))
	buf = le.AppendUint16(buf, wavBitsPerSample)
	buf = le.AppendUint16(buf, 0)

	buf = append(buf, "fact"...)
	buf = le.AppendUint32(buf, 4)
	frames := 0
	if channels > 0 {
		frames = len(samples) / channels
	}
	buf = le.AppendUint32(buf, uint32(frames))

	buf = append(buf, "data"...)
	buf = le.AppendUint32(buf, uint32(dataLen))
	return float32ToBytes(buf, samples)
}
