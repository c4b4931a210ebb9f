package internal

import (
	"encoding/binary"
	"errors"
	"io"
)

var (
	errRingBufferFull = errors.New("stm32eth/ring: buffer full")
	errRingNoData     = errors.New("stm32eth/ring: empty write")
	errFrameTooLarge  = errors.New("stm32eth/ring: frame exceeds 64k")
)

// Ring is a byte ring buffer.
type Ring struct {
	// Buf stores written data. The capacity of Buf is unused.
	Buf []byte
	// Off is the start of readable data.
	Off int
	// N is the amount of readable bytes starting at Off.
	N int
}

// Write appends all of b to the ring or fails without writing anything.
func (r *Ring) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, errRingNoData
	} else if len(b) > r.Free() {
		return 0, errRingBufferFull
	}
	end := r.Off + r.N
	if end >= len(r.Buf) {
		end -= len(r.Buf)
	}
	// start     end       off    len(buf)
	//   |  used  |  free   |  used  |
	n := copy(r.Buf[end:], b)
	if n < len(b) {
		copy(r.Buf, b[n:])
	}
	r.N += len(b)
	return len(b), nil
}

// ReadPeek reads up to len(b) bytes without advancing the read offset.
// [io.EOF] is returned when no data is available.
func (r *Ring) ReadPeek(b []byte) (int, error) {
	if r.N == 0 {
		return 0, io.EOF
	}
	want := min(len(b), r.N)
	n := copy(b[:want], r.Buf[r.Off:])
	if n < want {
		n += copy(b[n:want], r.Buf)
	}
	return n, nil
}

// Read reads up to len(b) bytes and advances the read offset.
func (r *Ring) Read(b []byte) (int, error) {
	n, err := r.ReadPeek(b)
	if err != nil {
		return n, err
	}
	r.discard(n)
	return n, nil
}

// ReadDiscard advances the read offset n bytes without copying.
func (r *Ring) ReadDiscard(n int) error {
	if n <= 0 {
		return errors.New("invalid discard amount")
	} else if n > r.N {
		return errors.New("discard exceeds length")
	}
	r.discard(n)
	return nil
}

func (r *Ring) discard(n int) {
	r.N -= n
	if r.N == 0 {
		r.Off = 0
		return
	}
	r.Off += n
	if r.Off >= len(r.Buf) {
		r.Off -= len(r.Buf)
	}
}

// Reset flushes all data from the ring buffer.
func (r *Ring) Reset() {
	r.Off = 0
	r.N = 0
}

// Size returns the capacity of the ring buffer.
func (r *Ring) Size() int { return len(r.Buf) }

// Buffered returns amount of bytes ready to read.
func (r *Ring) Buffered() int { return r.N }

// Free returns amount of bytes that can be written before the ring is full.
func (r *Ring) Free() int { return len(r.Buf) - r.N }

// FrameQueue stores whole frames in a [Ring], each prefixed by its
// 16 bit length. Frames are read back in the order they were written and
// never split.
type FrameQueue struct {
	ring   Ring
	frames int
}

// Reset sets the queue storage and discards all queued frames.
func (q *FrameQueue) Reset(buf []byte) {
	q.ring = Ring{Buf: buf}
	q.frames = 0
}

// Push queues a copy of frame. It fails if frame does not fit in the free space.
func (q *FrameQueue) Push(frame []byte) error {
	if len(frame) == 0 {
		return errRingNoData
	} else if len(frame) > 0xffff {
		return errFrameTooLarge
	} else if len(frame)+2 > q.ring.Free() {
		return errRingBufferFull
	}
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(frame)))
	q.ring.Write(hdr[:])
	q.ring.Write(frame)
	q.frames++
	return nil
}

// PeekLen returns the length of the next frame or 0 if queue is empty.
func (q *FrameQueue) PeekLen() int {
	var hdr [2]byte
	n, _ := q.ring.ReadPeek(hdr[:])
	if n < 2 {
		return 0
	}
	return int(binary.BigEndian.Uint16(hdr[:]))
}

// Pop copies the next frame into dst and removes it from the queue. If dst
// is shorter than the frame the frame is truncated and the remainder dropped.
// [io.EOF] is returned when the queue is empty.
func (q *FrameQueue) Pop(dst []byte) (int, error) {
	flen := q.PeekLen()
	if flen == 0 {
		return 0, io.EOF
	}
	q.ring.discard(2)
	n, _ := q.ring.ReadPeek(dst[:min(len(dst), flen)])
	q.ring.discard(flen)
	q.frames--
	return n, nil
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int { return q.frames }

// Free returns the largest frame that can currently be pushed.
func (q *FrameQueue) Free() int { return max(0, q.ring.Free()-2) }
