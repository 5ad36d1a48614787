package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()
	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	t.Parallel()
	AssertError(t, os.ErrNotExist)
}

func TestWriteTempFile(t *testing.T) {
	t.Parallel()

	path := WriteTempFile(t, "grid.csv", []byte("1,1,8,8,0,1,1,0,1\n"))
	if filepath.Base(path) != "grid.csv" {
		t.Errorf("base name = %q, want grid.csv", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	AssertNoError(t, err)
	if string(data) != "1,1,8,8,0,1,1,0,1\n" {
		t.Errorf("contents = %q", data)
	}
}
