package buffer

import (
	"bytes"
	"testing"
)

func TestChain_AppendAndAdvance(t *testing.T) {
	c := New()
	c.Append([]byte("hello"))
	c.Append([]byte("world"))
	if c.Length() != 10 {
		t.Fatalf("expected length 10, got %d", c.Length())
	}
	if !bytes.Equal(c.Bytes(), []byte("helloworld")) {
		t.Fatalf("unexpected bytes: %q", c.Bytes())
	}
	c.Advance(3)
	if c.Length() != 7 {
		t.Fatalf("expected length 7 after advance, got %d", c.Length())
	}
	if !bytes.Equal(c.Bytes(), []byte("loworld")) {
		t.Fatalf("unexpected bytes after advance: %q", c.Bytes())
	}
}

func TestChain_AdvancePastLinkBoundary(t *testing.T) {
	c := New()
	c.Append([]byte("abc"))
	c.Append([]byte("def"))
	c.Advance(4)
	if !bytes.Equal(c.Bytes(), []byte("ef")) {
		t.Fatalf("unexpected bytes: %q", c.Bytes())
	}
}

func TestChain_Chunks(t *testing.T) {
	c := New()
	c.Append([]byte("ab"))
	c.Append([]byte("cd"))
	chunks := c.Chunks()
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
}
