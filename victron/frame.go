package victron

import (
	"bufio"
	"io"
)

// encodeFrame builds an outbound frame for command letter cmd and
// payload data, per spec §4.1/§6: a length byte, the 0xFF command
// marker, the command letter, the payload, and a trailing checksum
// byte chosen so the whole frame sums to 0 mod 256.
func encodeFrame(cmd byte, data []byte) []byte {
	msg := make([]byte, len(data)+4)
	msg[0] = byte(len(data) + 2)
	msg[1] = 0xFF
	msg[2] = cmd
	copy(msg[3:], data)
	sum := 0
	for _, b := range msg[:len(msg)-1] {
		sum += int(b)
	}
	msg[len(msg)-1] = byte((256 - sum) & 255)
	return msg
}

// frameReader pulls individually checksum-validated frames off a
// byte stream. It never hunts for a start byte mid-stream: on a
// checksum failure it simply drops the frame and waits for the next
// length byte, relying on the idle timeout upstream to re-anchor
// after a genuine desync (spec §4.1, §9 "Stream resynchronization").
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReader(r)}
}

// readFrame blocks for one length byte and then the declared number
// of payload+checksum bytes, validates the checksum, and returns the
// payload (without the length byte or trailing checksum). ok is false
// if the checksum did not validate; the caller should continue
// reading rather than treat that as an error.
func (f *frameReader) readFrame() (payload []byte, ok bool, err error) {
	length, err := f.r.ReadByte()
	if err != nil {
		return nil, false, err
	}
	rest := make([]byte, int(length)+1)
	if _, err := io.ReadFull(f.r, rest); err != nil {
		return nil, false, err
	}
	sum := int(length)
	for _, b := range rest {
		sum += int(b)
	}
	if sum&255 != 0 {
		return nil, false, nil
	}
	return rest[:len(rest)-1], true, nil
}
