// Package ingest reads uploaded batch files into job items.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chemaudit/chemaudit/internal/chemkit"
	"github.com/chemaudit/chemaudit/internal/jobs"
)

type Kind string

const (
	KindTabular Kind = "tabular"
	KindSDF     Kind = "sdf"
	KindSheet   Kind = "sheet"
)

// EmptyStructure is the error of an item whose structure cell is blank.
const EmptyStructure = "Empty SMILES"

var ErrNoMolecules = errors.New("no molecules found in file")

// FileError rejects the file as a whole.
type FileError struct {
	Reason string
}

func (e *FileError) Error() string {
	return e.Reason
}

type Options struct {
	// StructureColumn nominates the column holding the structures, detected when empty.
	StructureColumn string
	// NameColumn nominates the column holding the names, detected when empty.
	NameColumn string
	// Toolkit converts archive records to SMILES. The built-in toolkit is used when nil.
	Toolkit chemkit.Toolkit
}

// Reader yields the items of one file lazily, in file order.
type Reader struct {
	kind Kind
	next func() (jobs.Item, error)
	// Columns is the header row of tabular input.
	Columns         []string
	StructureColumn string
	NameColumn      string
}

var _ jobs.Source = (*Reader)(nil)

func (r *Reader) Kind() Kind {
	return r.kind
}

func (r *Reader) Next() (jobs.Item, error) {
	return r.next()
}

// DetectKind picks the reader from the file extension, then from the content.
func DetectKind(filename string, data []byte) Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".sdf", ".sd", ".mol":
		return KindSDF
	case ".xlsx", ".xlsm":
		return KindSheet
	case ".csv", ".tsv", ".txt", ".smi":
		return KindTabular
	}
	switch {
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return KindSheet
	case bytes.Contains(data, []byte("$$$$")), bytes.Contains(data, []byte("M  END")):
		return KindSDF
	}
	return KindTabular
}

// Open screens data and returns a reader for it.
func Open(filename string, data []byte, opts Options) (*Reader, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &FileError{Reason: "File is empty"}
	}
	kind := DetectKind(filename, data)
	if err := Screen(kind, data); err != nil {
		return nil, err
	}
	switch kind {
	case KindSDF:
		kit := opts.Toolkit
		if kit == nil {
			kit = chemkit.NewBuiltin()
		}
		return newSDFReader(data, kit), nil
	case KindSheet:
		rows, err := newSheetRows(data)
		if err != nil {
			return nil, err
		}
		return newTableReader(KindSheet, rows, opts)
	}
	return newTableReader(KindTabular, newDelimitedRows(data), opts)
}

// Count reads the whole file once and returns the number of items it yields.
func Count(filename string, data []byte, opts Options) (int, error) {
	r, err := Open(filename, data, opts)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		n++
	}
	if n == 0 {
		return 0, ErrNoMolecules
	}
	return n, nil
}

func defaultName(index int) string {
	return fmt.Sprintf("mol_%d", index)
}
