package domain

import "time"

type ServiceType string

const (
	ServiceTypeConsultation ServiceType = "consultation"
	ServiceTypeHourlyTiered ServiceType = "hourly_tiered"
	ServiceTypePerSong      ServiceType = "per_song"
	ServiceTypeProduction   ServiceType = "production"
)

func (t ServiceType) IsValid() bool {
	switch t {
	case ServiceTypeConsultation, ServiceTypeHourlyTiered, ServiceTypePerSong, ServiceTypeProduction:
		return true
	}
	return false
}

// HasFixedDuration reports whether bookings of this type derive their end from the service duration.
func (t ServiceType) HasFixedDuration() bool {
	return t == ServiceTypeConsultation || t == ServiceTypePerSong
}

type Service struct {
	ID              string      `json:"id" yaml:"id"`
	Name            string      `json:"name" yaml:"name"`
	Category        string      `json:"category" yaml:"category"`
	Type            ServiceType `json:"type" yaml:"type"`
	DurationMinutes int         `json:"duration_minutes" yaml:"duration_minutes"`
	PriceCents      int64       `json:"price_cents" yaml:"price_cents"`
	PricingRuleID   string      `json:"pricing_rule_id,omitempty" yaml:"pricing_rule_id"`
	EngineerID      string      `json:"engineer_id,omitempty" yaml:"engineer_id"`
	ProducerName    string      `json:"producer_name,omitempty" yaml:"producer_name"`
	Active          bool        `json:"active" yaml:"active"`
	CreatedAt       time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt       time.Time   `json:"updated_at" yaml:"-"`
}

type PriceTier struct {
	Hours      float64 `json:"hours" yaml:"hours"`
	PriceCents int64   `json:"price_cents" yaml:"price_cents"`
}

type BeatLicense struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	PriceCents int64  `json:"price_cents" yaml:"price_cents"`
}

type PricingRule struct {
	ID                string        `json:"id" yaml:"id"`
	Name              string        `json:"name" yaml:"name"`
	Tiers             []PriceTier   `json:"tiers,omitempty" yaml:"tiers"`
	PricePerSongCents int64         `json:"price_per_song_cents,omitempty" yaml:"price_per_song_cents"`
	PricePerHourCents int64         `json:"price_per_hour_cents,omitempty" yaml:"price_per_hour_cents"`
	BeatLicenses      []BeatLicense `json:"beat_licenses,omitempty" yaml:"beat_licenses"`
	Active            bool          `json:"active" yaml:"active"`
	CreatedAt         time.Time     `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time     `json:"updated_at" yaml:"-"`
}

func (r *PricingRule) License(id string) (BeatLicense, bool) {
	for _, l := range r.BeatLicenses {
		if l.ID == id {
			return l, true
		}
	}
	return BeatLicense{}, false
}
