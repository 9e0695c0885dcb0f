package domain

import "time"

// Alert is the record kept for every notification the pipeline emitted.
type Alert struct {
	Token        TokenCandidate
	Safety       SafetyAssessment
	Verification VerificationResult
	SentAt       time.Time
}
