package strategy

import "github.com/macd3/futures-engine/internal/events"

// fixedTPRules is the staged exit plan every auto_timeframe trade_plan
// carries: TP1 at 1R for 40%, TP2 at 2R for 40%, and a 20% trailing
// runner, all reduce-only. These ratios are fixed, not tunable per signal.
func fixedTPRules(runnerMode string) events.TPRules {
	return events.TPRules{
		TP1:        events.TPRule{R: 1.0, Pct: 0.4},
		TP2:        events.TPRule{R: 2.0, Pct: 0.4},
		Tp3Trail:   events.TPRunnerRule{Pct: 0.2, Mode: runnerMode},
		ReduceOnly: true,
	}
}

// secondarySLRule is the single fixed secondary exit rule every
// trade_plan carries; execution implements what it means.
func secondarySLRule() events.SecondarySLRule {
	return events.SecondarySLRule{Type: "NEXT_BAR_NOT_SHORTEN_EXIT"}
}

func side(bias string) string {
	if bias == "LONG" {
		return "BUY"
	}
	return "SELL"
}
