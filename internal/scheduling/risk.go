package scheduling

import "clinic-booking-server/internal/models"

// RiskAssessment is stored on the appointment at creation and never recomputed.
type RiskAssessment struct {
	CancellationRisk models.RiskLevel `json:"cancellationRisk"`
	NoShowRisk       models.RiskLevel `json:"noShowRisk"`
}

// ScoreRisk maps booking lead time (hours) to a risk tier:
// under 24h high, under 72h medium, otherwise low.
func ScoreRisk(leadHours float64) RiskAssessment {
	level := models.RiskLow
	switch {
	case leadHours < 24:
		level = models.RiskHigh
	case leadHours < 72:
		level = models.RiskMedium
	}
	return RiskAssessment{CancellationRisk: level, NoShowRisk: level}
}
