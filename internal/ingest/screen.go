package ingest

import (
	"bytes"
	"fmt"
)

// maxControlRatio bounds the share of control bytes in a text upload.
const maxControlRatio = 0.01

type signature struct {
	name  string
	magic []byte
}

// only spreadsheets may start with the zip signature
var blockedSignatures = []signature{
	{"Windows executable", []byte("MZ")},
	{"ELF executable", []byte("\x7fELF")},
	{"Mach-O executable", []byte("\xcf\xfa\xed\xfe")},
	{"Mach-O executable", []byte("\xce\xfa\xed\xfe")},
	{"Java class or Mach-O binary", []byte("\xca\xfe\xba\xbe")},
	{"script", []byte("#!")},
	{"gzip archive", []byte("\x1f\x8b")},
	{"bzip2 archive", []byte("BZh")},
	{"RAR archive", []byte("Rar!\x1a\x07")},
	{"7z archive", []byte("7z\xbc\xaf\x27\x1c")},
	{"xz archive", []byte("\xfd7zXZ\x00")},
}

var blockedPatterns = []struct {
	name    string
	pattern []byte
}{
	{"script tag", []byte("<script")},
	{"iframe tag", []byte("<iframe")},
	{"javascript url", []byte("javascript:")},
	{"vbscript url", []byte("vbscript:")},
	{"php tag", []byte("<?php")},
}

// Screen rejects uploads that are executables or archives, or that carry markup, null bytes or
// binary noise. Spreadsheets are only checked for their signature.
func Screen(kind Kind, data []byte) error {
	for _, sig := range blockedSignatures {
		if bytes.HasPrefix(data, sig.magic) {
			return unsafeContent("file looks like a " + sig.name)
		}
	}
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) && kind != KindSheet {
		return unsafeContent("file looks like a zip archive")
	}
	if kind == KindSheet {
		return nil
	}

	if bytes.IndexByte(data, 0) >= 0 {
		return unsafeContent("file contains null bytes")
	}
	lower := bytes.ToLower(data)
	for _, p := range blockedPatterns {
		if bytes.Contains(lower, p.pattern) {
			return unsafeContent("file contains a " + p.name)
		}
	}
	control := 0
	for _, b := range data {
		if (b < 0x20 && b != '\t' && b != '\n' && b != '\r') || b == 0x7f {
			control++
		}
	}
	if float64(control) > maxControlRatio*float64(len(data)) {
		return unsafeContent(fmt.Sprintf("file contains %d non-printable characters", control))
	}
	return nil
}

func unsafeContent(reason string) *FileError {
	return &FileError{Reason: "Unsafe file content: " + reason}
}
