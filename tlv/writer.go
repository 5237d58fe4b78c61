package tlv

// Writer builds a canonical definite-length BER stream. A Writer never
// emits indefinite length: EmitValue/ValueEnd always back-patch the real
// content length once it is known, even for nested constructed tags.
type Writer struct {
	buf    []byte
	marks  []int // stack of positions where a length placeholder begins
	frames []int // stack of content-start positions matching marks
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated output. It is only valid to call once all
// BeginConstructed calls have been matched by ValueEnd.
func (w *Writer) Bytes() []byte { return w.buf }

// EmitPrimitive appends a complete primitive TLV element.
func (w *Writer) EmitPrimitive(tag Tag, value []byte) {
	w.buf = append(w.buf, tag.Bytes()...)
	w.buf = append(w.buf, EncodeLength(len(value))...)
	w.buf = append(w.buf, value...)
}

// EmitRaw appends an already-encoded TLV element (or concatenation of
// elements) verbatim, for callers that built child content with Node.Encode
// themselves rather than through this Writer.
func (w *Writer) EmitRaw(encoded []byte) {
	w.buf = append(w.buf, encoded...)
}

// BeginConstructed emits the tag of a constructed element and reserves
// space for its length, to be resolved by a matching ValueEnd once the
// children have been written. This is the "deferred length" writer
// contract.
func (w *Writer) BeginConstructed(tag Tag) {
	w.buf = append(w.buf, tag.Bytes()...)
	// Reserve worst-case 5-byte long-form length (0x84 + 4 bytes); trimmed
	// down in ValueEnd once the real content size is known.
	mark := len(w.buf)
	w.buf = append(w.buf, 0x84, 0, 0, 0, 0)
	w.marks = append(w.marks, mark)
	w.frames = append(w.frames, len(w.buf))
}

// ValueEnd closes the most recently opened BeginConstructed, replacing the
// placeholder with the minimal canonical length encoding and compacting
// the buffer so no reserved padding is left behind.
func (w *Writer) ValueEnd() {
	n := len(w.marks)
	mark := w.marks[n-1]
	start := w.frames[n-1]
	w.marks = w.marks[:n-1]
	w.frames = w.frames[:n-1]

	contentLen := len(w.buf) - start
	lenBytes := EncodeLength(contentLen)

	rebuilt := make([]byte, 0, len(w.buf)-5+len(lenBytes))
	rebuilt = append(rebuilt, w.buf[:mark]...)
	rebuilt = append(rebuilt, lenBytes...)
	rebuilt = append(rebuilt, w.buf[start:]...)
	w.buf = rebuilt

	// Any still-open frames after this one shift by the same delta.
	delta := len(lenBytes) - 5
	for i := range w.frames {
		if w.frames[i] > start {
			w.frames[i] += delta
		}
	}
	for i := range w.marks {
		if w.marks[i] > mark {
			w.marks[i] += delta
		}
	}
}
