package domain

// Parameters is the timing tuple guiding one breathing protocol for a user.
type Parameters struct {
	InhaleSeconds        float64
	ExhaleSeconds        float64
	PauseSeconds         float64
	TotalDurationSeconds int
}

// EffectiveDuration resolves the seconds a session should run: a positive
// caller override wins, otherwise the protocol total applies.
func (p Parameters) EffectiveDuration(customSeconds int) int {
	if customSeconds > 0 {
		return customSeconds
	}
	return p.TotalDurationSeconds
}
