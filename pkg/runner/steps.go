package runner

import (
	"fmt"
	"strings"
)

// Step names one transaction of the scenario
type Step string

const (
	StepInitVaultA Step = "init-vault-a"
	StepInitVaultB Step = "init-vault-b"
	StepDepositA   Step = "deposit-a"
	StepDepositB   Step = "deposit-b"
	StepSwapBForA  Step = "swap-b-for-a"
	StepSwapAForB  Step = "swap-a-for-b"
)

// AllSteps is the full scenario in execution order
var AllSteps = []Step{
	StepInitVaultA,
	StepInitVaultB,
	StepDepositA,
	StepDepositB,
	StepSwapBForA,
	StepSwapAForB,
}

func (s Step) Valid() bool {
	for _, known := range AllSteps {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSteps parses a comma separated list of step names. "all" or an empty string selects
// AllSteps. The given order is kept.
func ParseSteps(list string) ([]Step, error) {
	list = strings.TrimSpace(list)
	if list == "" || list == "all" {
		return append([]Step(nil), AllSteps...), nil
	}

	var steps []Step
	for _, name := range strings.Split(list, ",") {
		step := Step(strings.TrimSpace(name))
		if step == "" {
			continue
		}
		if !step.Valid() {
			return nil, fmt.Errorf("unknown step %q", step)
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps selected")
	}
	return steps, nil
}
