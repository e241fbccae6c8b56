package commands

import (
	"fmt"
	"strings"

	"github.com/demostack/platformctl/pkg/distribute"
)

// printSummary writes the end-of-run report. Failed repositories are always
// listed by name with their failing items so the operator can re-run a
// targeted fix instead of the whole batch.
func printSummary(summary *distribute.Summary) {
	fmt.Printf("\nDistribution summary: %d total, %d succeeded, %d failed\n",
		summary.Total(), len(summary.Succeeded), len(summary.Failed))
	for _, repo := range summary.Succeeded {
		fmt.Printf("  ok      %s\n", repo)
	}
	for _, f := range summary.Failed {
		fmt.Printf("  FAILED  %s (items: %s)\n", f.Repo, strings.Join(f.FailedItems, ", "))
	}
}
