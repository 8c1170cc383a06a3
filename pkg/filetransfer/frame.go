package filetransfer

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ocsphone/mediacall/pkg/backend"
)

// FrameType tags a data-plane frame (§4.5 "Data plane").
type FrameType byte

const (
	FrameData  FrameType = 0x00
	FrameStart FrameType = 0x01
	FrameEnd   FrameType = 0x02
)

// maxChunkSize bounds the sender's chunk buffer, deciding spec.md §9
// open question (c): a documented power-of-two rather than the
// source's latent overflow.
const maxChunkSize = 1024

// WriteFrame writes one type+length+payload frame to w.
func WriteFrame(w io.Writer, typ FrameType, payload []byte) error {
	if len(payload) > 0xFFFF {
		return fmt.Errorf("filetransfer: frame payload too large: %d bytes", len(payload))
	}
	header := [3]byte{byte(typ)}
	binary.BigEndian.PutUint16(header[1:], uint16(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one frame, state-machine style: type, then length,
// then exactly that many payload bytes (§4.5 "The receiver is
// strictly state-machine driven").
func ReadFrame(r io.Reader) (FrameType, []byte, error) {
	var header [3]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	typ := FrameType(header[0])
	length := binary.BigEndian.Uint16(header[1:])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return typ, payload, nil
}

// streamReadWriter adapts a backend stream handle to io.Reader/Writer
// so WriteFrame/ReadFrame can operate on it directly.
type streamReadWriter struct {
	be backend.MediaBackend
	h  backend.StreamHandle
}

func (s streamReadWriter) Read(p []byte) (int, error)  { return s.be.Read(s.h, p) }
func (s streamReadWriter) Write(p []byte) (int, error) { return s.be.Write(s.h, p) }

// SendFile drives the sender side of the data plane: a start frame
// carrying the request id, chunked file data in maxChunkSize pieces,
// then an end frame, pulling bytes from r until EOF (§4.5).
func SendFile(be backend.MediaBackend, h backend.StreamHandle, requestID string, r io.Reader) error {
	w := streamReadWriter{be: be, h: h}

	if err := WriteFrame(w, FrameStart, []byte(requestID)); err != nil {
		return err
	}

	buf := make([]byte, maxChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := WriteFrame(w, FrameData, buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	return WriteFrame(w, FrameEnd, []byte(requestID))
}

// Receiver drives the receiver side of the data plane: each call to
// Pump reads exactly one frame and either appends it to the file
// (discarding it instead if the transfer has been cancelled, per
// §4.5) or records start/end control frames.
type Receiver struct {
	be      backend.MediaBackend
	h       backend.StreamHandle
	w       io.Writer // destination for accepted file bytes
	started bool
	ended   bool
	total   int64
}

// NewFrameReceiver builds the data-plane Receiver; named apart from
// the control plane's NewReceiver, which builds a Transfer instead.
func NewFrameReceiver(be backend.MediaBackend, h backend.StreamHandle, dest io.Writer) *Receiver {
	return &Receiver{be: be, h: h, w: dest}
}

// cancelChecker is the one bit of control-plane state the data plane
// needs: whether to keep discarding incoming bytes (§4.5 "A locally
// cancelled transfer continues to drain incoming data bytes but
// discards them until BYE"). *Transfer satisfies it; a nil interface
// value means "never cancelled".
type cancelChecker interface {
	Cancelled() bool
}

// Pump reads and applies exactly one frame; it reports whether the
// stream has reached its end frame and the cumulative byte count.
func (r *Receiver) Pump(t cancelChecker) (ended bool, total int64, err error) {
	stream := streamReadWriter{be: r.be, h: r.h}
	typ, payload, err := ReadFrame(stream)
	if err != nil {
		return false, r.total, err
	}

	switch typ {
	case FrameStart:
		r.started = true
	case FrameEnd:
		r.ended = true
	case FrameData:
		if t == nil || !t.Cancelled() {
			if _, werr := r.w.Write(payload); werr != nil {
				return r.ended, r.total, werr
			}
		}
		r.total += int64(len(payload))
	}

	return r.ended, r.total, nil
}
