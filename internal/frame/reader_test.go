package frame

import (
	"testing"

	"github.com/rickgao/tradier-stream/internal/arena"
)

func write(t *testing.T, a *arena.Arena, data string) {
	t.Helper()
	region, err := a.AcquireWrite(len(data))
	if err != nil {
		t.Fatalf("AcquireWrite failed: %v", err)
	}
	if err := a.CommitWrite(copy(region, data)); err != nil {
		t.Fatalf("CommitWrite failed: %v", err)
	}
}

// drain collects the text of every complete frame currently buffered.
func drain(t *testing.T, r *Reader) []string {
	t.Helper()
	var out []string
	for {
		f, ok := r.Next()
		if !ok {
			return out
		}
		b, err := r.Bytes(f)
		if err != nil {
			t.Fatalf("Bytes failed: %v", err)
		}
		out = append(out, string(b))
	}
}

func TestReader_CompleteFrames(t *testing.T) {
	a := arena.New(arena.Config{Size: 64})
	r := NewReader(a, 0)

	write(t, a, "one\ntwo\nthree\n")

	got := drain(t, r)
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("frames = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if r.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", r.Frames())
	}
}

func TestReader_PartialTailRetained(t *testing.T) {
	a := arena.New(arena.Config{Size: 64})
	r := NewReader(a, 0)

	write(t, a, `{"type":"heart`)
	if f, ok := r.Next(); ok {
		t.Fatalf("Next() returned frame %+v before delimiter", f)
	}
	if r.Pending() != 14 {
		t.Errorf("Pending() = %d, want 14", r.Pending())
	}

	write(t, a, `beat"}`)
	if _, ok := r.Next(); ok {
		t.Fatal("Next() returned frame before delimiter")
	}

	// Delimiter arrives alone in a separate read.
	write(t, a, "\n")

	got := drain(t, r)
	if len(got) != 1 || got[0] != `{"type":"heartbeat"}` {
		t.Errorf("frames = %q, want [%q]", got, `{"type":"heartbeat"}`)
	}
}

func TestReader_FrameOffsets(t *testing.T) {
	a := arena.New(arena.Config{Size: 64})
	r := NewReader(a, 0)

	write(t, a, "ab\ncde\n")

	f1, _ := r.Next()
	f2, _ := r.Next()
	if f1.Start != 0 || f1.Len != 2 {
		t.Errorf("f1 = %+v, want Start=0 Len=2", f1)
	}
	if f2.Start != 3 || f2.Len != 3 {
		t.Errorf("f2 = %+v, want Start=3 Len=3", f2)
	}
}

func TestReader_SkipsBlankAndTrimsCR(t *testing.T) {
	a := arena.New(arena.Config{Size: 64})
	r := NewReader(a, 0)

	write(t, a, "\n\r\n  \nabc\r\n")

	got := drain(t, r)
	if len(got) != 1 || got[0] != "abc" {
		t.Errorf("frames = %q, want [\"abc\"]", got)
	}
}

func TestReader_SurvivesCompaction(t *testing.T) {
	a := arena.New(arena.Config{Size: 8, Policy: arena.PolicyFail})
	r := NewReader(a, 0)

	write(t, a, "abc\nde")
	if got := drain(t, r); len(got) != 1 || got[0] != "abc" {
		t.Fatalf("frames = %q, want [\"abc\"]", got)
	}

	// Forces compaction: "de" moves to the front of the backing array.
	write(t, a, "fgh\n")

	got := drain(t, r)
	if len(got) != 1 || got[0] != "defgh" {
		t.Errorf("frames = %q, want [\"defgh\"]", got)
	}
}

func TestReader_Oversize(t *testing.T) {
	a := arena.New(arena.Config{Size: 64})
	r := NewReader(a, 4)

	write(t, a, "abcdefgh")
	f, ok := r.Next()
	if !ok || !f.Oversize {
		t.Fatalf("Next() = (%+v, %v), want oversize frame", f, ok)
	}

	write(t, a, "ij\nok\n")
	got := drain(t, r)
	if len(got) != 1 || got[0] != "ok" {
		t.Errorf("frames after oversize = %q, want [\"ok\"]", got)
	}
}
