package readfiles

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/goptdesign/utils"
)

/*
ReadMatrix reads a dense matrix from a CSV file, one matrix row per record. Lines starting with
'#' are comments. A first record that does not parse as numbers is taken as a column header and
returned in names.
*/
func ReadMatrix(filename string, verbose bool) (M utils.Matrix, names []string, err error) {
	var (
		file *os.File
	)
	if verbose {
		fmt.Printf("Reading matrix file named: %s\n", filename)
	}
	if file, err = os.Open(filename); err != nil {
		err = fmt.Errorf("unable to open file %s: %w", filename, err)
		return
	}
	defer file.Close()
	if M, names, err = ReadMatrixFrom(bufio.NewReader(file)); err != nil {
		err = fmt.Errorf("%s: %w", filename, err)
		return
	}
	if verbose {
		nr, nc := M.Dims()
		fmt.Printf("Read %d rows, %d columns\n", nr, nc)
	}
	return
}

func ReadMatrixFrom(reader io.Reader) (M utils.Matrix, names []string, err error) {
	var (
		records [][]string
		data    []float64
		nc      int
	)
	r := csv.NewReader(reader)
	r.Comment = '#'
	r.TrimLeadingSpace = true
	if records, err = r.ReadAll(); err != nil {
		return
	}
	if len(records) == 0 {
		err = fmt.Errorf("no rows")
		return
	}
	if _, perr := parseRecord(records[0]); perr != nil {
		names = records[0]
		for j := range names {
			names[j] = strings.TrimSpace(names[j])
		}
		records = records[1:]
		if len(records) == 0 {
			err = fmt.Errorf("header without rows")
			return
		}
	}
	nc = len(records[0])
	data = make([]float64, 0, len(records)*nc)
	for i, rec := range records {
		var row []float64
		if row, err = parseRecord(rec); err != nil {
			err = fmt.Errorf("row %d: %w", i+1, err)
			return
		}
		data = append(data, row...)
	}
	M = utils.NewMatrix(len(records), nc, data)
	if utils.IsNan(M) {
		err = fmt.Errorf("matrix contains NaN")
	}
	return
}

func parseRecord(rec []string) (row []float64, err error) {
	row = make([]float64, len(rec))
	for j, field := range rec {
		if row[j], err = strconv.ParseFloat(strings.TrimSpace(field), 64); err != nil {
			return nil, err
		}
	}
	return
}

// WriteMatrix writes M as CSV with an optional header; values use the shortest exact form.
func WriteMatrix(w io.Writer, M utils.Matrix, names ...string) error {
	cw := csv.NewWriter(w)
	if len(names) != 0 {
		if err := cw.Write(names); err != nil {
			return err
		}
	}
	nr, nc := M.Dims()
	rec := make([]string, nc)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			rec[j] = strconv.FormatFloat(M.At(i, j), 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
