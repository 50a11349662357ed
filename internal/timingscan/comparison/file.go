package comparison

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

const (
	header         = "V1,V2"
	baselineLabel  = "BASELINE"
	modifiedLabel  = "MODIFIED"
	fileExtension  = ".csv"
	outputFileTail = ".out"
)

// WriteSamples writes both series as a two-column table: the first series labelled BASELINE, then
// the second labelled MODIFIED. The file is closed before WriteSamples returns.
func WriteSamples(path string, first []int64, second []int64) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errors.WithStack(closeErr)
		}
	}()
	w := bufio.NewWriter(f)
	if err := writeTable(w, first, second); err != nil {
		return err
	}
	return errors.WithStack(w.Flush())
}

func writeTable(w io.Writer, first []int64, second []int64) error {
	if _, err := io.WriteString(w, header+"\n"); err != nil {
		return errors.WithStack(err)
	}
	for _, s := range first {
		if _, err := io.WriteString(w, baselineLabel+", "+strconv.FormatInt(s, 10)+"\n"); err != nil {
			return errors.WithStack(err)
		}
	}
	for _, s := range second {
		if _, err := io.WriteString(w, modifiedLabel+", "+strconv.FormatInt(s, 10)+"\n"); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// ReadSamples parses a file written by WriteSamples.
func ReadSamples(path string) ([]int64, []int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = 2
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading comparison file %s", path)
	}
	if len(records) == 0 {
		return nil, nil, errors.Errorf("comparison file %s is empty", path)
	}
	var first, second []int64
	for i, record := range records[1:] {
		sample, err := strconv.ParseInt(record[1], 10, 64)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "line %d of %s", i+2, path)
		}
		switch record[0] {
		case baselineLabel:
			first = append(first, sample)
		case modifiedLabel:
			second = append(second, sample)
		default:
			return nil, nil, errors.Errorf("line %d of %s: unknown label %q", i+2, path, record[0])
		}
	}
	return first, second, nil
}
