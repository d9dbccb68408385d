package audio

// G.711 mu-law expansion. Twilio Media Streams deliver 8-bit companded
// audio at 8 kHz; the recognizer wants 16-bit little-endian PCM at the
// same rate, so every input byte becomes one output sample pair.

const mulawBias = 0x84

// mulawToLinear expands a single companded byte to a signed 16-bit sample.
func mulawToLinear(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := u & 0x0F
	value := (int(mant) << 3) + mulawBias
	value <<= uint(exp)
	value -= mulawBias
	if sign != 0 {
		return int16(-value)
	}
	return int16(value)
}

// DecodeMulaw converts a companded frame to 16-bit LE PCM. Malformed input
// only produces distorted audio; there is no error path.
func DecodeMulaw(frame []byte) []byte {
	out := make([]byte, len(frame)*2)
	for i, u := range frame {
		s := mulawToLinear(u)
		out[2*i] = byte(uint16(s))
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}

// BatchFrames is how many compressed frames are accumulated before a single
// decoded chunk is forwarded to the recognizer. Twilio sends 20ms frames, so
// this trades ~100ms of latency for one network write per 5 frames.
const BatchFrames = 5

// Batcher accumulates compressed frames and emits one decoded linear chunk
// per BatchFrames inputs, preserving frame order.
type Batcher struct {
	pending []byte
	frames  int
	emit    func(pcm []byte)
}

// NewBatcher constructs a Batcher that calls emit with each decoded chunk.
func NewBatcher(emit func(pcm []byte)) *Batcher {
	return &Batcher{emit: emit}
}

// Push appends one compressed frame. When BatchFrames frames have
// accumulated, the whole run is decoded and emitted in order.
func (b *Batcher) Push(frame []byte) {
	b.pending = append(b.pending, frame...)
	b.frames++
	if b.frames < BatchFrames {
		return
	}
	b.flush()
}

// Flush emits whatever is pending regardless of frame count. Used at call
// teardown so trailing audio is not lost.
func (b *Batcher) Flush() {
	if b.frames == 0 {
		return
	}
	b.flush()
}

func (b *Batcher) flush() {
	if b.emit != nil && len(b.pending) > 0 {
		b.emit(DecodeMulaw(b.pending))
	}
	b.pending = b.pending[:0]
	b.frames = 0
}
