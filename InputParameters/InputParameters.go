package InputParameters

import (
	"errors"
	"fmt"

	"github.com/ghodss/yaml"

	"github.com/notargets/goptdesign/types"
)

// Parameters obtained from the YAML input file
type SearchParameters struct {
	Title              string           `yaml:"Title"`
	Criterion          string           `yaml:"Criterion"`
	Trials             int              `yaml:"Trials"`
	InitialRows        []int            `yaml:"InitialRows"` // 1-based candidate rows, random when empty
	Tolerance          float64          `yaml:"Tolerance"`
	MinDopt            float64          `yaml:"MinDopt"`
	Seed               int64            `yaml:"Seed"`
	MaxSweeps          int              `yaml:"MaxSweeps"`
	CandidateFile      string           `yaml:"CandidateFile"`
	MomentsFile        string           `yaml:"MomentsFile"`
	AliasCandidateFile string           `yaml:"AliasCandidateFile"`
	Blocked            *BlockParameters `yaml:"Blocked"`
}

type BlockParameters struct {
	BlockFile      string   `yaml:"BlockFile"`
	CovarianceFile string   `yaml:"CovarianceFile"`
	Interactions   [][2]int `yaml:"Interactions"` // 0-based columns of [blocks | factors]
	DisallowedFile string   `yaml:"DisallowedFile"`
}

const DefaultTolerance = 0.01

var ErrInvalidParameters = errors.New("invalid search parameters")

func (sp *SearchParameters) Parse(data []byte) (err error) {
	sp.Tolerance = DefaultTolerance
	if err = yaml.Unmarshal(data, sp); err != nil {
		return
	}
	return sp.Validate()
}

// Kind is the parsed criterion; only valid after Validate succeeds.
func (sp *SearchParameters) Kind() types.Criterion {
	c, _ := types.NewCriterion(sp.Criterion)
	return c
}

func (sp *SearchParameters) Validate() error {
	kind, err := types.NewCriterion(sp.Criterion)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	var problems []string
	switch {
	case kind == types.Criterion_Custom:
		problems = append(problems, "a custom criterion can only be supplied through the library")
	case kind == types.Criterion_I && len(sp.MomentsFile) == 0:
		problems = append(problems, "criterion I needs a MomentsFile")
	case kind == types.Criterion_Alias && len(sp.AliasCandidateFile) == 0:
		problems = append(problems, "criterion Alias needs an AliasCandidateFile")
	case kind == types.Criterion_G && sp.Blocked != nil:
		problems = append(problems, "criterion G has no blocked form")
	}
	if sp.Trials <= 0 {
		problems = append(problems, "Trials must be positive")
	}
	if len(sp.InitialRows) != 0 && len(sp.InitialRows) != sp.Trials {
		problems = append(problems, fmt.Sprintf("%d InitialRows for %d Trials", len(sp.InitialRows), sp.Trials))
	}
	if sp.Tolerance < 0 {
		problems = append(problems, "Tolerance must not be negative")
	}
	if sp.MinDopt < 0 || sp.MinDopt >= 1 {
		problems = append(problems, "MinDopt must be in [0,1)")
	}
	if len(sp.CandidateFile) == 0 {
		problems = append(problems, "a CandidateFile is required")
	}
	if b := sp.Blocked; b != nil {
		if len(b.BlockFile) == 0 || len(b.CovarianceFile) == 0 {
			problems = append(problems, "blocked searches need a BlockFile and a CovarianceFile")
		}
		for _, in := range b.Interactions {
			if in[0] < 0 || in[1] < 0 {
				problems = append(problems, fmt.Sprintf("interaction %v has a negative column", in))
			}
		}
	}
	if len(problems) != 0 {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, problems)
	}
	return nil
}

func (sp *SearchParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", sp.Title)
	fmt.Printf("[%s]\t\t\t= Criterion\n", sp.Kind())
	fmt.Printf("[%d]\t\t\t= Trials\n", sp.Trials)
	fmt.Printf("%8.5f\t\t= Tolerance\n", sp.Tolerance)
	if sp.Kind() == types.Criterion_Alias {
		fmt.Printf("%8.5f\t\t= MinDopt\n", sp.MinDopt)
	}
	fmt.Printf("[%d]\t\t\t= Seed\n", sp.Seed)
	fmt.Printf("[%s]\t= Candidates\n", sp.CandidateFile)
	if len(sp.MomentsFile) != 0 {
		fmt.Printf("[%s]\t= Moments\n", sp.MomentsFile)
	}
	if len(sp.AliasCandidateFile) != 0 {
		fmt.Printf("[%s]\t= Alias Candidates\n", sp.AliasCandidateFile)
	}
	if b := sp.Blocked; b != nil {
		fmt.Printf("[%s]\t= Blocks\n", b.BlockFile)
		fmt.Printf("[%s]\t= Covariance\n", b.CovarianceFile)
		for _, in := range b.Interactions {
			fmt.Printf("Interaction[%d x %d]\n", in[0], in[1])
		}
		if len(b.DisallowedFile) != 0 {
			fmt.Printf("[%s]\t= Disallowed\n", b.DisallowedFile)
		}
	}
}
