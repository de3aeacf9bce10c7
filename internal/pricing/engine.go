// Package pricing maps a catalogue service and the client's selection to a total price.
// Every function here is pure: no I/O, no clock, no shared state.
package pricing

import (
	"sort"

	"github.com/Domenick1991/studiobooking/internal/domain"
)

// Params carries the quantities the client selected.
type Params struct {
	DurationMinutes int
	SongCount       int
	BeatLicenseID   string
}

// Compute returns the total in cents for svc priced by rule.
// rule may be nil for consultations.
func Compute(svc domain.Service, rule *domain.PricingRule, p Params) (int64, error) {
	switch svc.Type {
	case domain.ServiceTypeConsultation:
		if svc.PriceCents < 0 {
			return 0, domain.PreconditionError("service %s has a negative price", svc.ID)
		}
		return svc.PriceCents, nil

	case domain.ServiceTypePerSong:
		if p.SongCount < 1 {
			return 0, domain.InputError("song count must be at least 1")
		}
		if rule == nil {
			return 0, missingRule(svc)
		}
		return rule.PricePerSongCents * int64(p.SongCount), nil

	case domain.ServiceTypeHourlyTiered:
		if p.DurationMinutes <= 0 {
			return 0, domain.InputError("duration must be positive")
		}
		if rule == nil || len(rule.Tiers) == 0 {
			return 0, missingRule(svc)
		}
		return TierPrice(rule.Tiers, float64(p.DurationMinutes)/60), nil

	case domain.ServiceTypeProduction:
		if p.DurationMinutes <= 0 {
			return 0, domain.InputError("duration must be positive")
		}
		if rule == nil {
			return 0, missingRule(svc)
		}
		total := hourlyRate(rule.PricePerHourCents, p.DurationMinutes)
		if p.BeatLicenseID != "" {
			license, ok := rule.License(p.BeatLicenseID)
			if !ok {
				return 0, domain.InputError("unknown beat license %q", p.BeatLicenseID)
			}
			total += license.PriceCents
		}
		return total, nil
	}
	return 0, domain.InputError("unsupported service type %q", svc.Type)
}

// TierPrice picks the smallest tier covering hours. Requests beyond the
// largest tier are clamped to it.
func TierPrice(tiers []domain.PriceTier, hours float64) int64 {
	sorted := make([]domain.PriceTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Hours < sorted[j].Hours })

	for _, t := range sorted {
		if t.Hours >= hours {
			return t.PriceCents
		}
	}
	return sorted[len(sorted)-1].PriceCents
}

// hourlyRate prorates a per-hour price to minutes, rounding half up to the cent.
func hourlyRate(perHour int64, minutes int) int64 {
	return (perHour*int64(minutes) + 30) / 60
}

func missingRule(svc domain.Service) error {
	return domain.PreconditionError("service %s has no usable pricing rule", svc.ID)
}
