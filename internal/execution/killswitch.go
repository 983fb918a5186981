package execution

import "context"

// killSwitchFlag is the runtime_flags row name the API's admin
// kill-switch endpoint flips to halt all new entries without a redeploy.
const killSwitchFlag = "KILL_SWITCH"

// isKillSwitchOn checks whether new entries are halted: the config-level
// force flag always wins, otherwise fall back to the operator-controlled
// runtime flag.
func (s *Service) isKillSwitchOn(ctx context.Context) (bool, error) {
	if s.cfg.KillSwitchForceOn {
		return true, nil
	}
	value, ok, err := s.store.GetFlag(ctx, killSwitchFlag)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return value == "true" || value == "1" || value == "on", nil
}

// shouldEmitKillSwitchAlert rate-limits the KILL_SWITCH_ON risk event so
// a burst of blocked plans while the switch is on doesn't spam the
// notifier — only the first block in each window emits.
func (s *Service) shouldEmitKillSwitchAlert() bool {
	window := s.cfg.KillSwitchWindow.Milliseconds()
	if window <= 0 {
		window = 300_000
	}
	now := nowMs()
	if now-s.lastKillSwitchAlertMs < window {
		return false
	}
	s.lastKillSwitchAlertMs = now
	return true
}
