package variants

import (
	"time"
)

// PersonaID identifies a base persona.
type PersonaID string

// VariantID identifies one generated variant.
type VariantID string

// Persona is the base audience profile that variants deviate from.
type Persona struct {
	ID          PersonaID `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Profile     string    `json:"profile"`
	VoiceSample string    `json:"voice_sample,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// EngagementTier enum
type EngagementTier string

const (
	TierHeavy    EngagementTier = "heavy"
	TierModerate EngagementTier = "moderate"
	TierLight    EngagementTier = "light"
	TierLapsed   EngagementTier = "lapsed"
)

// Valid reports whether t is one of the known tiers.
func (t EngagementTier) Valid() bool {
	switch t {
	case TierHeavy, TierModerate, TierLight, TierLapsed:
		return true
	}
	return false
}

// VariantProfile is one synthetic individual derived from a persona.
// Immutable once stored; a new generation replaces the whole set.
type VariantProfile struct {
	ID                  VariantID      `json:"id"`
	PersonaID           PersonaID      `json:"persona_id"`
	Index               int            `json:"index"`
	Name                string         `json:"name"`
	Age                 int            `json:"age"`
	Location            string         `json:"location,omitempty"`
	AttitudeScore       int            `json:"attitude_score"`
	PrimaryPlatform     string         `json:"primary_platform"`
	EngagementTier      EngagementTier `json:"engagement_tier"`
	DistinguishingTrait string         `json:"distinguishing_trait,omitempty"`
	VoiceModifier       string         `json:"voice_modifier,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}

// AttitudeShape controls how attitude scores are distributed across a batch.
type AttitudeShape string

const (
	ShapeNormal       AttitudeShape = "normal"
	ShapeSkewPositive AttitudeShape = "skew_positive"
	ShapeSkewNegative AttitudeShape = "skew_negative"
)

// DiversityConfig tunes a generation batch.
type DiversityConfig struct {
	AgeSpread int           `json:"age_spread"`
	Attitude  AttitudeShape `json:"attitude_distribution"`
	Platforms []string      `json:"platforms,omitempty"`
}

// WithDefaults fills unset fields.
func (c DiversityConfig) WithDefaults() DiversityConfig {
	if c.AgeSpread <= 0 {
		c.AgeSpread = 10
	}
	switch c.Attitude {
	case ShapeNormal, ShapeSkewPositive, ShapeSkewNegative:
	default:
		c.Attitude = ShapeNormal
	}
	return c
}
