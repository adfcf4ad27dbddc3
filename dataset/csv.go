package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// CSVSource reads samples from a file of lines "id,input...,target...",
// as written by WriteCSV.
type CSVSource struct {
	Path    string
	Inputs  int
	Outputs int
}

func (s *CSVSource) Generate() ([]Sample, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, s.Inputs, s.Outputs)
}

// ReadCSV parses samples of inputNum inputs and outputNum targets. Fields
// follow encoding/csv quoting, so any ID written by WriteCSV reads back.
func ReadCSV(reader io.Reader, inputNum, outputNum int) ([]Sample, error) {
	expected := 1 + inputNum + outputNum
	r := csv.NewReader(bufio.NewReader(reader))
	r.FieldsPerRecord = expected
	r.ReuseRecord = true

	var samples []Sample
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrFieldCount) {
			return samples, errInvalidLine{
				lineNum:  perr.StartLine,
				splits:   len(record),
				expected: expected,
			}
		}
		if err != nil {
			return samples, fmt.Errorf("reading dataset: %w", err)
		}

		values := make([]float64, inputNum+outputNum)
		for i, field := range record[1:] {
			num, err := strconv.ParseFloat(field, 64)
			if err != nil {
				line, _ := r.FieldPos(i + 1)
				return samples, fmt.Errorf("line %d value %d: %w", line, i, err)
			}
			values[i] = num
		}
		samples = append(samples, Sample{
			ID:     record[0],
			Input:  values[:inputNum:inputNum],
			Target: values[inputNum:],
		})
	}
	return samples, nil
}

// WriteCSV writes one line per sample in the format ReadCSV reads.
func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	for _, s := range samples {
		record := make([]string, 0, 1+len(s.Input)+len(s.Target))
		record = append(record, s.ID)
		for _, v := range s.Input {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		for _, v := range s.Target {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing sample %s: %w", s.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

type errInvalidLine struct {
	lineNum  int
	splits   int
	expected int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("at line %d, expected %d values, got %d",
		e.lineNum, e.expected, e.splits)
}
