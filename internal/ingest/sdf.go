package ingest

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/chemaudit/chemaudit/internal/chemkit"
	"github.com/chemaudit/chemaudit/internal/jobs"
)

const (
	recordEnd = "$$$$"
	blockEnd  = "M  END"
)

// InvalidRecord is the error of an archive record without a connection table.
const InvalidRecord = "Invalid SDF record"

var nameFields = []string{"name", "_name", "id", "compound_id", "title"}

// newSDFReader splits the archive on $$$$ lines and turns each connection table into its
// canonical SMILES. A record that is incomplete or does not parse becomes an error item.
func newSDFReader(data []byte, kit chemkit.Toolkit) *Reader {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	index := 0
	done := false
	r := &Reader{kind: KindSDF}
	r.next = func() (jobs.Item, error) {
		for !done {
			lines, ok := readRecord(scanner)
			if !ok {
				done = true
			}
			if blank(lines) {
				continue
			}
			item := parseRecord(kit, index, lines)
			index++
			return item, nil
		}
		if err := scanner.Err(); err != nil {
			return jobs.Item{}, &FileError{Reason: "Unreadable SDF file: " + err.Error()}
		}
		return jobs.Item{}, io.EOF
	}
	return r
}

// readRecord returns the lines up to the next $$$$. ok is false when the input ended.
func readRecord(scanner *bufio.Scanner) ([]string, bool) {
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == recordEnd {
			return lines, true
		}
		lines = append(lines, line)
	}
	return lines, false
}

func parseRecord(kit chemkit.Toolkit, index int, lines []string) jobs.Item {
	end := -1
	for i, l := range lines {
		if strings.HasPrefix(l, blockEnd) {
			end = i
			break
		}
	}
	title := ""
	if len(lines) > 0 {
		title = strings.TrimSpace(lines[0])
	}
	if end < 3 {
		return jobs.Item{Index: index, Input: title, Name: nameOr(title, index), PreError: InvalidRecord}
	}

	name := dataField(lines[end+1:], nameFields)
	if name == "" {
		name = title
	}
	smiles, err := recordSMILES(kit, strings.Join(lines[:end+1], "\n"))
	if err != nil {
		return jobs.Item{Index: index, Input: title, Name: nameOr(name, index), PreError: InvalidRecord + ": " + err.Error()}
	}
	return jobs.Item{Index: index, Input: smiles, Name: nameOr(name, index)}
}

// recordSMILES sanitizes the connection table and writes it as canonical SMILES.
func recordSMILES(kit chemkit.Toolkit, block string) (string, error) {
	m, err := kit.ParseMolBlock(block)
	if err != nil {
		return "", err
	}
	if _, err := kit.Sanitize(m); err != nil {
		return "", err
	}
	kit.AssignStereochemistry(m)
	return kit.CanonicalSMILES(m, chemkit.SmilesOptions{})
}

// dataField returns the value of the first "> <field>" entry matching one of fields.
func dataField(lines []string, fields []string) string {
	values := map[string]string{}
	for i := 0; i < len(lines); i++ {
		l := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(l, ">") {
			continue
		}
		open, closing := strings.Index(l, "<"), strings.LastIndex(l, ">")
		if open < 0 || closing <= open {
			continue
		}
		key := strings.ToLower(l[open+1 : closing])
		if i+1 < len(lines) {
			values[key] = strings.TrimSpace(lines[i+1])
		}
	}
	for _, f := range fields {
		if v := values[f]; v != "" {
			return v
		}
	}
	return ""
}

func nameOr(name string, index int) string {
	if name == "" {
		return defaultName(index)
	}
	return name
}
