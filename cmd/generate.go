/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/profile"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/goptdesign/InputParameters"
	"github.com/notargets/goptdesign/exchange"
	"github.com/notargets/goptdesign/readfiles"
	"github.com/notargets/goptdesign/storage"
	"github.com/notargets/goptdesign/types"
	"github.com/notargets/goptdesign/utils"
)

type Search struct {
	ICFile     string
	OutputFile string
	Profile    bool
	Seed       int64
	SeedSet    bool
	Verbose    bool
}

// GenerateCmd represents the generate command
var GenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Search a candidate set for an optimal design",
	Long: `
Reads the search parameters from a YAML file and the candidate set, moments and block structure
from the CSV files it names, then runs the coordinate-exchange search.

goptdesign generate -I search.yaml -o design.csv`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		s := &Search{}
		if s.ICFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			return
		}
		s.OutputFile, _ = cmd.Flags().GetString("output")
		s.Profile, _ = cmd.Flags().GetBool("profile")
		s.Seed, _ = cmd.Flags().GetInt64("seed")
		s.SeedSet = cmd.Flags().Changed("seed")
		s.Verbose = viper.GetBool("verbose")
		if s.Profile {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		sp, err := processInput(s)
		if err != nil {
			return
		}
		if s.Verbose {
			sp.Print()
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		r, searchErr := RunSearch(ctx, sp, filepath.Dir(s.ICFile))
		log.Debug().Msg(utils.GetMemUsage())
		if searchErr != nil && !errors.Is(searchErr, context.Canceled) {
			return searchErr
		}
		if searchErr != nil {
			log.Warn().Msg("search interrupted, reporting the current design")
		}
		r.Print()
		if err = writeDesign(s.OutputFile, r); err != nil {
			return
		}
		if db := viper.GetString("db"); len(db) != 0 {
			if err = saveRun(context.Background(), db, sp, r); err != nil {
				return
			}
		}
		return searchErr
	},
}

func init() {
	rootCmd.AddCommand(GenerateCmd)
	GenerateCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for search parameters like:\n\t- Criterion\n\t- Trials\n\t- CandidateFile")
	GenerateCmd.Flags().StringP("output", "o", "", "CSV file to write the final design to")
	GenerateCmd.Flags().Int64("seed", 0, "random seed, overrides Seed in the input file")
	GenerateCmd.Flags().Bool("profile", false, "write a CPU profile to the current directory")
}

func processInput(s *Search) (sp *InputParameters.SearchParameters, err error) {
	if len(s.ICFile) == 0 {
		exampleFile := `
########################################
Title: "Quadratic, one factor"
Criterion: D # D, I, A, G, T, E or Alias
Trials: 6
Tolerance: 0.01
Seed: 1
CandidateFile: candidates.csv
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		return nil, fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile)")
	}
	var data []byte
	if data, err = os.ReadFile(s.ICFile); err != nil {
		return
	}
	sp = &InputParameters.SearchParameters{}
	if err = sp.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", s.ICFile, err)
	}
	if s.SeedSet {
		sp.Seed = s.Seed
	}
	return
}

// RunSearch loads the matrices named in sp, relative to dir, and runs the search.
func RunSearch(ctx context.Context, sp *InputParameters.SearchParameters, dir string) (r exchange.Result, err error) {
	var (
		rng  = rand.New(rand.NewSource(sp.Seed))
		kind = sp.Kind()
		p    = exchange.Problem{Criterion: kind, Tolerance: sp.Tolerance, MinDopt: sp.MinDopt}
		opts = []exchange.Option{exchange.WithLogger(log.Logger), exchange.WithMaxSweeps(sp.MaxSweeps)}
	)
	if p.Candidates, err = readMatrix(dir, sp.CandidateFile); err != nil {
		return exchange.NotAvailable(), err
	}
	nCand, _ := p.Candidates.Dims()
	if p.InitialRows, err = initialRows(sp, nCand, rng); err != nil {
		return exchange.NotAvailable(), err
	}
	p.Initial = p.Candidates.SliceRows(p.InitialRows.Add(-1))
	if len(sp.MomentsFile) != 0 {
		if p.Moments, err = readMatrix(dir, sp.MomentsFile); err != nil {
			return exchange.NotAvailable(), err
		}
	}
	if len(sp.AliasCandidateFile) != 0 {
		if p.AliasCandidates, err = readMatrix(dir, sp.AliasCandidateFile); err != nil {
			return exchange.NotAvailable(), err
		}
		if nAlias, _ := p.AliasCandidates.Dims(); nAlias != nCand {
			return exchange.NotAvailable(), fmt.Errorf("%d alias candidates for %d candidates: %w",
				nAlias, nCand, exchange.ErrDimensionMismatch)
		}
		p.AliasInitial = p.AliasCandidates.SliceRows(p.InitialRows.Add(-1))
	}
	if sp.Blocked == nil {
		return exchange.Generate(ctx, p, rng, opts...)
	}
	b, err := readBlocking(dir, sp.Blocked)
	if err != nil {
		return exchange.NotAvailable(), err
	}
	return exchange.GenerateBlocked(ctx, p, b, rng, opts...)
}

func initialRows(sp *InputParameters.SearchParameters, nCand int, rng *rand.Rand) (rows utils.Index, err error) {
	if len(sp.InitialRows) != 0 {
		for _, j := range sp.InitialRows {
			if j < 1 || j > nCand {
				return nil, fmt.Errorf("initial row %d outside 1..%d: %w", j, nCand, exchange.ErrDimensionMismatch)
			}
		}
		return utils.Index(sp.InitialRows).Copy(), nil
	}
	// A singular random start is repaired by the search
	rows = utils.NewIndex(sp.Trials)
	for i := range rows {
		rows[i] = rng.Intn(nCand) + 1
	}
	return
}

func readBlocking(dir string, bp *InputParameters.BlockParameters) (b exchange.Blocking, err error) {
	if b.Blocks, err = readMatrix(dir, bp.BlockFile); err != nil {
		return
	}
	if b.Covariance, err = readMatrix(dir, bp.CovarianceFile); err != nil {
		return
	}
	for _, in := range bp.Interactions {
		b.Interactions = append(b.Interactions, exchange.Interaction{A: in[0], B: in[1]})
	}
	if len(bp.DisallowedFile) != 0 {
		if b.Disallowed, err = readMatrix(dir, bp.DisallowedFile); err != nil {
			return
		}
		b.AnyDisallowed = true
	}
	return
}

func readMatrix(dir, name string) (M utils.Matrix, err error) {
	if !filepath.IsAbs(name) {
		name = filepath.Join(dir, name)
	}
	M, _, err = readfiles.ReadMatrix(name, false)
	return
}

func writeDesign(filename string, r exchange.Result) (err error) {
	if len(filename) == 0 || !r.Available {
		return
	}
	var f *os.File
	if f, err = os.Create(filename); err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return readfiles.WriteMatrix(f, r.Design)
}

func saveRun(ctx context.Context, db string, sp *InputParameters.SearchParameters, r exchange.Result) (err error) {
	var c *storage.Catalog
	if c, err = storage.Open(db, log.Logger); err != nil {
		return
	}
	defer c.Close()
	run := &storage.Run{
		Title:     sp.Title,
		Criterion: sp.Kind(),
		Blocked:   sp.Blocked != nil,
		Seed:      sp.Seed,
		Result:    r,
	}
	if err = c.SaveRun(ctx, run); err != nil {
		return
	}
	fmt.Printf("Stored run %s in %s\n", run.ID, db)
	return
}

// criterionLabel renders a stored criterion the way input files spell it.
func criterionLabel(c types.Criterion) string {
	switch c {
	case types.Criterion_Alias:
		return "Alias"
	case types.Criterion_Custom:
		return "Custom"
	}
	return c.String()
}
