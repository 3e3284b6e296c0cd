package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moai-adk/orchestrator/internal/audit"
	"github.com/moai-adk/orchestrator/internal/config"
	"github.com/moai-adk/orchestrator/internal/debug"
	"github.com/moai-adk/orchestrator/internal/ui"
)

var auditCmd = &cobra.Command{
	Use:     "audit",
	GroupID: "views",
	Short:   "Report inconsistencies between the roadmap and the specs on disk",
	Long: `Flags pending specs that already carry a verification artifact, status/history
disagreements, records stored under the wrong id and spec directories that no
longer exist. Nothing is corrected.`,
	Run: func(cmd *cobra.Command, args []string) {
		anomalies := audit.Run(store.Roadmap(), rootDir, audit.Options{Artifacts: config.GetAuditArtifacts()})
		for _, a := range anomalies {
			debug.LogEvent("audit."+string(a.Kind), a.SpecID, a.Message)
		}
		if jsonOutput {
			if anomalies == nil {
				anomalies = []audit.Anomaly{}
			}
			outputJSON(anomalies)
			return
		}
		fmt.Print(formatAudit(anomalies))
	},
}

func formatAudit(anomalies []audit.Anomaly) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", ui.RenderCategory("Auditing Specs"))
	if len(anomalies) == 0 {
		fmt.Fprintf(&b, "%s No anomalies found.\n", ui.RenderPassIcon())
		return b.String()
	}
	for _, a := range anomalies {
		if recordBroken(a.Kind) {
			fmt.Fprintf(&b, "%s %s: %s %s\n", ui.RenderFailIcon(), a.SpecID, a.Message, ui.RenderFail("["+string(a.Kind)+"]"))
			continue
		}
		fmt.Fprintf(&b, "%s %s: %s %s\n", ui.RenderWarnIcon(), a.SpecID, a.Message, ui.RenderWarn("["+string(a.Kind)+"]"))
	}
	fmt.Fprintf(&b, "\n%d anomalies found.\n", len(anomalies))
	return b.String()
}

// recordBroken reports anomalies where the stored record contradicts itself,
// as opposed to drift between the roadmap and the spec tree.
func recordBroken(k audit.Kind) bool {
	return k == audit.KindHistoryMismatch || k == audit.KindIDMismatch
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
