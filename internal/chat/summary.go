// Package chat answers free-text questions about the machine data with a
// generative language model.
package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agrof66/machine-dashboard/internal/dashboard"
	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/agrof66/machine-dashboard/pkg/datetime"
	"github.com/agrof66/machine-dashboard/pkg/format"
)

const summaryRanking = 5

// Summary describes machines as German plain text for the model prompt.
func Summary(ds *sheet.Dataset, machines []sheet.Machine) string {
	var b strings.Builder
	totals := dashboard.Overview(machines)

	fmt.Fprintf(&b, "Datensatz: %d Maschinen\n", totals.Machines)
	if ds != nil && len(ds.Months) > 0 {
		fmt.Fprintf(&b, "Zeitraum: %s\n", datetime.Period(ds.Months))
	}
	fmt.Fprintf(&b, "Kosten YTD: %s\n", format.Euro(totals.Cost))
	fmt.Fprintf(&b, "Umsätze YTD: %s\n", format.Euro(totals.Revenue))
	fmt.Fprintf(&b, "DB YTD: %s\n", format.Euro(totals.DB))
	fmt.Fprintf(&b, "Marge YTD: %s\n", format.Percent(totals.Margin))

	if ds != nil && ds.HasBranch {
		byBranch := make(map[string]float64)
		for _, m := range machines {
			byBranch[m.Branch] += m.DBYTD
		}
		branches := make([]string, 0, len(byBranch))
		for name := range byBranch {
			branches = append(branches, name)
		}
		sort.Strings(branches)

		b.WriteString("\nDB nach Niederlassung:\n")
		for _, name := range branches {
			fmt.Fprintf(&b, "- %s: %s\n", name, format.Euro(byBranch[name]))
		}
	}

	writeMachines(&b, "Top 5 Maschinen nach DB", dashboard.Top(machines, dashboard.ByDB, summaryRanking))
	writeMachines(&b, "Schwächste 5 Maschinen nach DB", dashboard.Worst(machines, dashboard.ByDB, summaryRanking))

	if ds != nil && len(ds.Months) > 0 {
		b.WriteString("\nMonatsübersicht:\n")
		for _, r := range dashboard.Monthly(ds.Months, machines) {
			fmt.Fprintf(&b, "%s: Umsätze %s, Kosten %s, DB %s, Marge %s\n",
				r.Month, format.Euro(r.Revenue), format.Euro(r.Cost), format.Euro(r.DB), format.Percent(r.Margin))
		}
	}
	return b.String()
}

func writeMachines(b *strings.Builder, title string, machines []sheet.Machine) {
	if len(machines) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, m := range machines {
		fmt.Fprintf(b, "- %s (%s, %s): DB %s, Umsätze %s, Kosten %s\n",
			m.Label(), m.Description, m.Branch, format.Euro(m.DBYTD), format.Euro(m.RevenueYTD), format.Euro(m.CostYTD))
	}
}
