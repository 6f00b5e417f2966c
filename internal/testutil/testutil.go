// Package testutil provides testing utilities for Simpletron tests.
package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/simpletron/pkg/simerr"
)

// TempFile creates a temporary file with the given content and extension.
// The file is automatically cleaned up when the test finishes.
func TempFile(t *testing.T, content, ext string) string {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test"+ext)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// TempPath returns a path with the given name inside a fresh temporary
// directory. The file is not created.
func TempPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// AddSource reads two integers and prints their sum.
func AddSource() string {
	return `10 rem add two numbers
20 input a
30 input b
40 let c = a + b
50 print c
60 end`
}

// PrecedenceSource stores 2 + 3 * 4 into x and prints it.
func PrecedenceSource() string {
	return `10 let x = 2 + 3 * 4
20 print x
30 end`
}

// CountdownSource prints n down to 1 using a backward branch.
func CountdownSource() string {
	return `10 input n
20 if n <= 0 goto 60
30 print n
40 let n = n - 1
50 goto 20
60 end`
}

// ForwardGotoSource jumps over a PRINT with a forward reference.
func ForwardGotoSource() string {
	return `10 goto 30
20 print 1
30 end`
}

// InputsCSV returns an input feed with a single integer column.
func InputsCSV() string {
	return `value
3
4
5`
}

// MakeInputFrame creates a one-column frame of input values.
func MakeInputFrame(values ...int64) *dataframe.DataFrame {
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return dataframe.NewDataFrame(
		dataframe.NewSeriesInt64("value", nil, vals...),
	)
}

// AssertInt64Equal checks if two int64 values are equal.
func AssertInt64Equal(t *testing.T, expected, actual int64) {
	t.Helper()
	if expected != actual {
		t.Errorf("expected %d, got %d", expected, actual)
	}
}

// AssertKind checks that err is a Simpletron error of the given kind.
func AssertKind(t *testing.T, err error, kind simerr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", kind)
	}
	var se *simerr.Error
	if !errors.As(err, &se) {
		t.Fatalf("expected %s, got %T: %v", kind, err, err)
	}
	if se.Kind != kind {
		t.Errorf("expected %s, got %s: %v", kind, se.Kind, err)
	}
}
