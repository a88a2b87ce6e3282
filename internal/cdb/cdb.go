// Package cdb reads, processes and writes compilation databases.
package cdb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Entry is one record of a compilation database
type Entry struct {
	Directory string `json:"directory"`
	File      string `json:"file"`
	Command   string `json:"command"`
}

// Error reports a compilation database that cannot be read, parsed or written
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// rawEntry detects missing fields, which plain decoding would zero
type rawEntry struct {
	Directory *string `json:"directory"`
	File      *string `json:"file"`
	Command   *string `json:"command"`
}

// Load reads a compilation database.
// Unknown fields and entries missing a field are rejected.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Op: "read compilation database", Path: path, Err: err}
	}

	entries, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Op: "parse", Path: path, Err: err}
	}

	return entries, nil
}

// Decode decodes a compilation database from r
func Decode(r io.Reader) ([]Entry, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var raw []rawEntry
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	if dec.More() {
		return nil, errors.New("unexpected data after compilation database")
	}

	if raw == nil {
		return nil, errors.New("compilation database must be a JSON array, got null")
	}

	entries := make([]Entry, 0, len(raw))
	for i, re := range raw {
		switch {
		case re.Directory == nil:
			return nil, fmt.Errorf("entry %d: missing field `directory`", i)
		case re.File == nil:
			return nil, fmt.Errorf("entry %d: missing field `file`", i)
		case re.Command == nil:
			return nil, fmt.Errorf("entry %d: missing field `command`", i)
		}

		entries = append(entries, Entry{
			Directory: *re.Directory,
			File:      *re.File,
			Command:   *re.Command,
		})
	}

	return entries, nil
}

// Encode writes entries as a single JSON document
func Encode(w io.Writer, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(entries)
}

// Write writes entries to path.
// The file is replaced atomically, so a failure never leaves partial output.
func Write(path string, entries []Entry) error {
	var buf bytes.Buffer
	if err := Encode(&buf, entries); err != nil {
		return &Error{Op: "encode", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &Error{Op: "create output file", Path: path, Err: err}
	}

	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := writeAndClose(tmp, buf.Bytes()); err != nil {
		return &Error{Op: "write output file", Path: path, Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return &Error{Op: "write output file", Path: path, Err: err}
	}

	return nil
}

func writeAndClose(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}

	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
