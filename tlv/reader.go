package tlv

// Reader is a pull-style cursor over a BER byte stream: NextTag reads one
// tag/length header without consuming the value, so a caller can decide
// whether to Skip or Read the content, rather than forcing a single-shot
// unmarshal of the whole buffer.
type Reader struct {
	buf []byte
	pos int

	curTag    Tag
	curLen    int
	curIndef  bool
	haveTag   bool
	valueStar int
}

// NewReader wraps b for sequential TLV pulls.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Peek returns the next tag and length without advancing past the header;
// repeated Peek calls are idempotent until Read/Skip/NextTag is called.
func (r *Reader) Peek() (Tag, int, error) {
	if r.haveTag {
		return r.curTag, r.curLen, nil
	}
	return r.pullHeader()
}

// NextTag advances to and returns the next tag, reading past its header.
func (r *Reader) NextTag() (Tag, error) {
	t, _, err := r.pullHeader()
	if err != nil {
		return Tag{}, err
	}
	r.haveTag = false // header consumed; Read/Skip will move past the value
	return t, nil
}

func (r *Reader) pullHeader() (Tag, int, error) {
	if r.haveTag {
		return r.curTag, r.curLen, nil
	}
	if r.pos >= len(r.buf) {
		return Tag{}, 0, &MalformedError{Reason: "no more data"}
	}
	tag, tn, err := decodeTag(r.buf[r.pos:])
	if err != nil {
		return Tag{}, 0, err
	}
	length, ln, indef, err := decodeLength(r.buf[r.pos+tn:])
	if err != nil {
		return Tag{}, 0, err
	}
	r.curTag = tag
	r.curLen = length
	r.curIndef = indef
	r.valueStar = r.pos + tn + ln
	r.haveTag = true
	return tag, length, nil
}

// Read returns the raw value bytes of the current (primitive) element and
// advances past it. Constructed elements should instead be entered via
// ReadNode, which recurses.
func (r *Reader) Read() ([]byte, error) {
	if !r.haveTag {
		if _, _, err := r.pullHeader(); err != nil {
			return nil, err
		}
	}
	if r.curIndef {
		return nil, &MalformedError{Reason: "indefinite-length value requires ReadNode"}
	}
	start := r.valueStar
	end := start + r.curLen
	if end > len(r.buf) {
		return nil, &MalformedError{Reason: "value exceeds buffer"}
	}
	r.pos = end
	r.haveTag = false
	return r.buf[start:end], nil
}

// ReadNode decodes the current element (primitive or constructed,
// definite or indefinite length) as a full Node and advances past it.
func (r *Reader) ReadNode() (Node, error) {
	node, rest, err := Decode(r.buf[r.pos:])
	if err != nil {
		return Node{}, err
	}
	r.pos = len(r.buf) - len(rest)
	r.haveTag = false
	return node, nil
}

// Skip advances past the current element without returning its content.
func (r *Reader) Skip() error {
	_, err := r.ReadNode()
	return err
}

// SkipToTag advances the reader until a top-level element with the given
// tag number is the current element, or returns an error if the stream is
// exhausted first. Elements of other tags are skipped (not recursed into).
func (r *Reader) SkipToTag(number uint32) error {
	for {
		tag, _, err := r.Peek()
		if err != nil {
			return err
		}
		if tag.Number == number {
			return nil
		}
		if err := r.Skip(); err != nil {
			return err
		}
	}
}
