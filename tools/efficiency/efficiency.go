package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/notargets/goptdesign/criteria"
	"github.com/notargets/goptdesign/readfiles"
	"github.com/notargets/goptdesign/utils"
)

var (
	aliasFile string
)

// Compares designs written by "goptdesign generate -o", one CSV file per design.
func main() {
	aliasFilePtr := flag.String("aliasFile", aliasFile, "alias model design, rows matching the first design file")
	flag.Parse()
	aliasFile = *aliasFilePtr
	if flag.NArg() == 0 {
		fmt.Printf("usage: efficiency [-aliasFile alias.csv] design.csv ...\n")
		flag.Usage()
		os.Exit(1)
	}
	var alias utils.Matrix
	if len(aliasFile) != 0 {
		var err error
		if alias, _, err = readfiles.ReadMatrix(aliasFile, false); err != nil {
			panic(err)
		}
	}
	fmt.Printf("%-24s %6s %12s %12s %12s %12s %12s\n", "design", "trials", "D", "Deff", "A", "T", "E")
	for i, file := range flag.Args() {
		X, _, err := readfiles.ReadMatrix(file, false)
		if err != nil {
			panic(err)
		}
		ds := NewDesignStudy(file, X)
		ds.Print()
		if i == 0 && !alias.IsEmpty() {
			fmt.Printf("%-24s alias trace = %s\n", "", format(criteria.AliasTrace(X, alias, nil)))
		}
	}
}

type DesignStudy struct {
	title      string
	trials     int
	D, A, T, E criteria.Evaluation
	DEff       float64
}

func NewDesignStudy(title string, X utils.Matrix) *DesignStudy {
	nr, _ := X.Dims()
	ds := &DesignStudy{
		title:  title,
		trials: nr,
		D:      criteria.D(X, nil),
		A:      criteria.A(X, nil),
		T:      criteria.T(X, nil),
		E:      criteria.E(X, nil),
	}
	if !ds.D.Singular {
		ds.DEff = criteria.DEfficiency(X, nil)
	}
	return ds
}

func (ds *DesignStudy) Print() {
	fmt.Printf("%-24s %6d %12s %12.6f %12s %12s %12s\n", ds.title, ds.trials,
		format(ds.D), ds.DEff, format(ds.A), format(ds.T), format(ds.E))
}

func format(ev criteria.Evaluation) string {
	if ev.Singular {
		return "singular"
	}
	return fmt.Sprintf("%.6g", ev.Value)
}
