package node

import (
	"io/ioutil"
	"os"
	"testing"
)

func TestCreationStoreIncrementsAcrossRestarts(t *testing.T) {
	dir, err := ioutil.TempDir("", "erl-creation-test")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	defer os.RemoveAll(dir)

	s1, err := NewCreationStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	first, err := s1.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first != 1 {
		t.Fatalf("expected first creation 1, got %d", first)
	}

	s2, err := NewCreationStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	second, err := s2.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if second != 2 {
		t.Fatalf("expected second creation 2, got %d", second)
	}
}
