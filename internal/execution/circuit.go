package execution

// circuitDecision is the account-level drawdown evaluation for the
// current trading day.
type circuitDecision struct {
	SoftHalt    bool
	HardHalt    bool
	DrawdownPct float64
}

// evalDrawdown computes the peak-to-trough drawdown (as a percentage of
// startingEquity) and compares it against the soft/hard halt thresholds.
func evalDrawdown(startingEquity, minEquity, softPct, hardPct float64) circuitDecision {
	dd := 0.0
	if startingEquity > 0 {
		dd = (startingEquity - minEquity) / startingEquity * 100.0
	}
	return circuitDecision{SoftHalt: dd >= softPct, HardHalt: dd >= hardPct, DrawdownPct: dd}
}
