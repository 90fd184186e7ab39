// Human-readable result reports
package optimize

import (
	"fmt"
	"sort"
	"strings"
)

// StudyReport renders a study result as a text report.
func StudyReport(result *StudyResult) string {
	var b strings.Builder

	b.WriteString("================================================================================\n")
	b.WriteString("STUDY REPORT\n")
	b.WriteString("================================================================================\n\n")

	okCount := 0
	for _, t := range result.Trials {
		if t.Status == TrialOK {
			okCount++
		}
	}

	fmt.Fprintf(&b, "Direction:        %s\n", result.Direction)
	fmt.Fprintf(&b, "Trials:           %d (%d ok, %d failed)\n",
		len(result.Trials), okCount, len(result.Trials)-okCount)
	fmt.Fprintf(&b, "Duration:         %s\n", result.Duration)
	fmt.Fprintf(&b, "Seed:             %d\n\n", result.Seed)

	if result.BestTrial != nil {
		fmt.Fprintf(&b, "BEST TRIAL\n----------\n")
		fmt.Fprintf(&b, "Trial:            #%d (%s)\n", result.BestTrial.Number, result.BestTrial.Status)
		fmt.Fprintf(&b, "Value:            %.6f\n", result.BestTrial.Value)
		writeParams(&b, result.BestTrial.Params)
		writeMetrics(&b, result.BestMetrics)
	}

	b.WriteString("================================================================================\n")
	return b.String()
}

// MultiStudyReport renders a multi-objective study result as a text report.
func MultiStudyReport(result *MultiStudyResult, objectives []string) string {
	var b strings.Builder

	b.WriteString("================================================================================\n")
	b.WriteString("MULTI-OBJECTIVE STUDY REPORT\n")
	b.WriteString("================================================================================\n\n")

	fmt.Fprintf(&b, "Trials:           %d\n", len(result.Trials))
	fmt.Fprintf(&b, "Duration:         %s\n", result.Duration)
	fmt.Fprintf(&b, "Seed:             %d\n\n", result.Seed)

	b.WriteString("OBJECTIVES\n----------\n")
	for i, name := range objectives {
		fmt.Fprintf(&b, "%-24s %s\n", name, result.Directions[i])
	}

	front := result.ParetoFront()
	fmt.Fprintf(&b, "\nPARETO FRONT (%d trials)\n-----------\n", len(front))
	for _, t := range front {
		values := make([]string, len(t.Values))
		for i, v := range t.Values {
			values[i] = fmt.Sprintf("%.6f", v)
		}
		fmt.Fprintf(&b, "Trial #%-4d [%s]\n", t.Number, strings.Join(values, ", "))
	}

	b.WriteString("================================================================================\n")
	return b.String()
}

// EvolutionReport renders a genetic run result as a text report.
func EvolutionReport(result *EvolutionResult) string {
	var b strings.Builder

	b.WriteString("================================================================================\n")
	b.WriteString("EVOLUTION REPORT\n")
	b.WriteString("================================================================================\n\n")

	fmt.Fprintf(&b, "Generations:      %d\n", result.Generations)
	fmt.Fprintf(&b, "Best Fitness:     %.6f\n", result.BestFitness)
	fmt.Fprintf(&b, "Duration:         %s\n", result.Duration)
	fmt.Fprintf(&b, "Seed:             %d\n", result.Seed)

	if params, ok := result.Best.(ParameterSet); ok {
		writeParams(&b, params)
	}

	if len(result.FitnessHistory) > 0 {
		b.WriteString("\nMEAN FITNESS BY GENERATION\n--------------------------\n")
		for i, mean := range result.FitnessHistory {
			fmt.Fprintf(&b, "%4d  %.6f\n", i+1, mean)
		}
	}

	b.WriteString("================================================================================\n")
	return b.String()
}

func writeParams(b *strings.Builder, params ParameterSet) {
	if len(params) == 0 {
		return
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString("\nPARAMETERS\n----------\n")
	for _, name := range names {
		fmt.Fprintf(b, "%-24s %v\n", name, params[name])
	}
}

func writeMetrics(b *strings.Builder, metrics map[string]float64) {
	if len(metrics) == 0 {
		return
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString("\nMETRICS\n-------\n")
	for _, name := range names {
		fmt.Fprintf(b, "%-24s %.6f\n", name, metrics[name])
	}
}
