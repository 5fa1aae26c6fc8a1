package notifier

import (
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"

	"CycleLedger/internal/calculator"
	"CycleLedger/internal/model"
	"CycleLedger/internal/mods"
)

// Units renders an 18-decimal fixed-point amount with trailing zeros trimmed.
func Units(v sdkmath.Int) string {
	if v.IsNil() {
		return "0"
	}
	s := sdkmath.LegacyNewDecFromIntWithPrec(v, calculator.WeightDecimals).String()
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func percent(bp uint16) string {
	return fmt.Sprintf("%.2f%%", float64(bp)/100)
}

// FormatCycle formats a project's current funding cycle.
func FormatCycle(p model.Project, fc model.FundingCycle, queued *model.FundingCycle) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔁 <b>%s</b> | cycle #%d\n\n", p.Handle, fc.Number))
	b.WriteString(fmt.Sprintf("Started: %s\n", fc.StartAt.Format("2006-01-02 15:04")))
	if fc.Duration > 0 {
		b.WriteString(fmt.Sprintf("Ends: %s\n", fc.EndAt().Format("2006-01-02 15:04")))
	} else {
		b.WriteString("Ends: never (until reconfigured)\n")
	}
	b.WriteString(fmt.Sprintf("Target: %s %s (tapped %s)\n", Units(fc.Target), fc.Currency, Units(fc.Tapped)))
	b.WriteString(fmt.Sprintf("Weight: %s tickets per unit\n", Units(fc.Weight)))
	b.WriteString(fmt.Sprintf("Reserved: %s | Curve: %s | Fee: %s\n",
		percent(fc.ReservedRate), percent(fc.BondingCurveRate), percent(fc.Fee)))
	if queued != nil {
		b.WriteString(fmt.Sprintf("\n⏳ Reconfiguration queued for %s\n", queued.StartAt.Format("2006-01-02 15:04")))
	}
	return b.String()
}

// FormatReserved formats the reserved tickets waiting to be printed.
func FormatReserved(p model.Project, printable sdkmath.Int, tracking model.TrackingState) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🎟 <b>%s</b> reserved tickets\n\n", p.Handle))
	b.WriteString(fmt.Sprintf("Printable now: %s\n", Units(printable)))
	b.WriteString(fmt.Sprintf("Printed so far: %s\n", Units(tracking.TotalReservedPrinted)))
	b.WriteString(fmt.Sprintf("Weighted issued: %s\n", Units(tracking.TotalWeightedIssued)))
	return b.String()
}

// FormatSupply formats a project's ticket supply and funds.
func FormatSupply(p model.Project, supply sdkmath.Int, funds model.ProjectFunds) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📦 <b>%s</b> supply\n\n", p.Handle))
	b.WriteString(fmt.Sprintf("Tickets: %s\n", Units(supply)))
	b.WriteString(fmt.Sprintf("Balance: %s\n", Units(funds.Balance)))
	b.WriteString(fmt.Sprintf("Overflow: %s\n", Units(funds.Overflow)))
	return b.String()
}

// FormatPrint formats a completed reserved-ticket print.
func FormatPrint(p model.Project, d mods.Distribution) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🖨 <b>%s</b> printed %s reserved tickets\n\n", p.Handle, Units(d.Total)))
	for _, a := range d.Allocations {
		b.WriteString(fmt.Sprintf("  %s: %s\n", a.Beneficiary, Units(a.Amount)))
	}
	if d.Remainder.IsPositive() {
		b.WriteString(fmt.Sprintf("  %s (owner): %s\n", d.Owner, Units(d.Remainder)))
	}
	return b.String()
}

// ProjectLine is one row of the daily summary.
type ProjectLine struct {
	Project model.Project
	Cycle   uint64
	Supply  sdkmath.Int
	Balance sdkmath.Int
}

// FormatSummary formats the periodic ledger summary.
func FormatSummary(lines []ProjectLine, feeBalance sdkmath.Int, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>CycleLedger summary</b> | %s\n\n", now.Format("2006-01-02")))
	if len(lines) == 0 {
		b.WriteString("No projects yet.\n")
	}
	for _, l := range lines {
		b.WriteString(fmt.Sprintf("%s (#%d) cycle %d: %s tickets, %s held\n",
			l.Project.Handle, l.Project.ID, l.Cycle, Units(l.Supply), Units(l.Balance)))
	}
	b.WriteString(fmt.Sprintf("\nProtocol fees: %s\n", Units(feeBalance)))
	return b.String()
}
