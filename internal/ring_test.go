package internal

import (
	"bytes"
	"io"
	"math/rand"
	"testing"
)

func TestRing(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	const bufSize = 10
	r := &Ring{Buf: make([]byte, bufSize)}
	const data = "hello"
	_, err := r.Write([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	var buf [bufSize]byte
	n, err := r.Read(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != data {
		t.Fatalf("got %q; want %q", buf[:n], data)
	}
	const overdata = "hello world"
	n, err = r.Write([]byte(overdata))
	if err == nil || n > 0 {
		t.Fatal("expected full write to fail", err, n)
	}
	_, err = r.Read(buf[:])
	if err != io.EOF {
		t.Fatal("expected EOF on empty ring, got", err)
	}

	for i := 0; i < 64; i++ {
		nfirst := rng.Intn(bufSize/2) + 1
		nsecond := rng.Intn(bufSize/2) + 1
		discard := rng.Intn(nfirst) + 1
		r.Reset()
		r.Off = rng.Intn(bufSize)
		r.Write([]byte(overdata[:nfirst]))
		if err := r.ReadDiscard(discard); err != nil {
			t.Fatal(err)
		}
		_, err := r.Write([]byte(overdata[nfirst : nfirst+nsecond]))
		if err != nil {
			t.Fatal(i, err)
		}
		want := overdata[discard : nfirst+nsecond]
		if r.Buffered() != len(want) {
			t.Fatalf("%d: buffered %d; want %d", i, r.Buffered(), len(want))
		}
		buf = [bufSize]byte{}
		n, err = r.ReadPeek(buf[:])
		if err != nil || string(buf[:n]) != want {
			t.Fatalf("%d: peek got %q; want %q (%v)", i, buf[:n], want, err)
		}
		n, err = r.Read(buf[:])
		if err != nil || string(buf[:n]) != want {
			t.Fatalf("%d: got %q; want %q (%v)", i, buf[:n], want, err)
		}
		if r.Buffered() != 0 || r.Free() != bufSize {
			t.Fatalf("%d: ring not empty after full read", i)
		}
	}
}

func TestFrameQueue(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var q FrameQueue
	q.Reset(make([]byte, 256))
	var pushed [][]byte
	var dst [256]byte
	for i := 0; i < 512; i++ {
		if rng.Intn(2) == 0 {
			frame := make([]byte, rng.Intn(64)+1)
			rng.Read(frame)
			fits := len(frame) <= q.Free()
			err := q.Push(frame)
			if fits != (err == nil) {
				t.Fatalf("%d: push of %d bytes fits=%v err=%v", i, len(frame), fits, err)
			}
			if err == nil {
				pushed = append(pushed, frame)
			}
			continue
		}
		n, err := q.Pop(dst[:])
		if len(pushed) == 0 {
			if err != io.EOF {
				t.Fatal("expected EOF on empty queue, got", err)
			}
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(dst[:n], pushed[0]) {
			t.Fatalf("%d: frame mismatch\n got %x\nwant %x", i, dst[:n], pushed[0])
		}
		pushed = pushed[1:]
		if q.Len() != len(pushed) {
			t.Fatalf("queue len %d; want %d", q.Len(), len(pushed))
		}
	}
	t.Run("truncate", func(t *testing.T) {
		q.Reset(make([]byte, 64))
		q.Push([]byte("0123456789"))
		q.Push([]byte("ab"))
		var small [4]byte
		n, _ := q.Pop(small[:])
		if string(small[:n]) != "0123" {
			t.Fatalf("got %q", small[:n])
		}
		n, _ = q.Pop(small[:])
		if string(small[:n]) != "ab" {
			t.Fatalf("remainder of truncated frame not dropped: got %q", small[:n])
		}
	})
	t.Run("full", func(t *testing.T) {
		q.Reset(make([]byte, 8))
		if err := q.Push(make([]byte, 7)); err == nil {
			t.Fatal("expected frame plus header larger than buffer to fail")
		}
		if err := q.Push(make([]byte, 6)); err != nil {
			t.Fatal(err)
		}
		if q.Free() != 0 {
			t.Fatal("expected no free space, got", q.Free())
		}
	})
}
