package compare

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CaseFile is an optional YAML document replacing the built-in case set.
// Zero ratios fall back to the configured defaults for that gate.
type CaseFile struct {
	HTTP []HTTPCase `yaml:"http"`
	GRPC []GRPCCase `yaml:"grpc"`
}

// LoadCaseFile reads and validates a YAML case file.
func LoadCaseFile(path string, defaultOverWrk, defaultOverK6, defaultGrpcOverK6 float64) (*CaseFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading case file: %w", err)
	}

	var cf CaseFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing case file %s: %w", path, err)
	}

	if len(cf.HTTP) == 0 && len(cf.GRPC) == 0 {
		return nil, &CaseError{Message: fmt.Sprintf("case file %s defines no cases", path)}
	}

	for i := range cf.HTTP {
		c := &cf.HTTP[i]
		if c.Title == "" {
			return nil, &CaseError{Message: fmt.Sprintf("case file %s: http case %d has no title", path, i)}
		}

		if c.Scripts.Wrk == "" || c.Scripts.Wrkr == "" || c.Scripts.K6 == "" {
			return nil, &CaseError{Message: fmt.Sprintf("case file %s: http case %q needs wrk, wrkr and k6 scripts", path, c.Title)}
		}

		if c.RatioOverWrk == 0 {
			c.RatioOverWrk = defaultOverWrk
		}

		if c.RatioOverK6 == 0 {
			c.RatioOverK6 = defaultOverK6
		}
	}

	for i := range cf.GRPC {
		c := &cf.GRPC[i]
		if c.Title == "" {
			return nil, &CaseError{Message: fmt.Sprintf("case file %s: grpc case %d has no title", path, i)}
		}

		if c.Scripts.Wrkr == "" || c.Scripts.K6 == "" {
			return nil, &CaseError{Message: fmt.Sprintf("case file %s: grpc case %q needs wrkr and k6 scripts", path, c.Title)}
		}

		if c.RatioOverK6 == 0 {
			c.RatioOverK6 = defaultGrpcOverK6
		}
	}

	return &cf, nil
}
