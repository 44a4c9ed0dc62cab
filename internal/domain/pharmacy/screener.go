package pharmacy

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Screener cross-references a patient's known allergies against drug
// descriptors. It is advisory only: any lookup failure, including an open
// breaker, yields an empty hit list so prescription creation never blocks
// on the allergy collaborator. That silent degradation is a recorded
// product decision.
type Screener struct {
	source  AllergySource
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

func NewScreener(source AllergySource, logger zerolog.Logger) *Screener {
	s := &Screener{source: source, logger: logger}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "allergy-lookup",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("allergy lookup breaker state changed")
		},
	})
	return s
}

// Screen returns the allergy substances that appear, case-insensitively, as
// substrings of any drug descriptor. Each substance is reported at most
// once.
func (s *Screener) Screen(ctx context.Context, patientID uuid.UUID, drugNames []string) []string {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.source.AllergySubstances(ctx, patientID)
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", patientID.String()).
			Msg("allergy lookup failed, screening skipped")
		return []string{}
	}
	substances := result.([]string)

	hits := []string{}
	for _, substance := range substances {
		needle := strings.ToLower(strings.TrimSpace(substance))
		if needle == "" {
			continue
		}
		for _, name := range drugNames {
			if strings.Contains(strings.ToLower(name), needle) {
				hits = append(hits, substance)
				break
			}
		}
	}
	return hits
}
