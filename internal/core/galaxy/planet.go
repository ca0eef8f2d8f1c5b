// Package galaxy places new chatbot planets in the user's solar system.
package galaxy

import (
	"math"
	"math/rand/v2"

	"github.com/markdave123-py/studygalaxy/internal/models"
)

var orbitRadii = []float64{5, 8, 12, 17, 23}

var textureTypes = []models.TextureType{
	models.TextureRocky,
	models.TextureIcy,
	models.TextureDesert,
	models.TextureOcean,
	models.TextureVolcanic,
}

const (
	initialSize     = 0.5
	initialActivity = 0.3
	orbitSpeedScale = 0.5
)

// Placer generates planet data. The zero value uses the global random source.
type Placer struct {
	Rand *rand.Rand
}

// NewPlacer returns a Placer backed by r; nil r means the global source.
func NewPlacer(r *rand.Rand) *Placer {
	return &Placer{Rand: r}
}

// Place returns planet data for a user who already owns existingCount chatbots.
// Planets cycle through five orbit rings; texture and angle are random.
func (p *Placer) Place(existingCount int) models.PlanetData {
	ring := existingCount % len(orbitRadii)
	if ring < 0 {
		ring = 0
	}
	radius := orbitRadii[ring]

	return models.PlanetData{
		OrbitRadius: radius,
		OrbitSpeed:  orbitSpeedScale / radius,
		TextureType: textureTypes[p.intN(len(textureTypes))],
		Size:        initialSize,
		Activity:    initialActivity,
		AngleOffset: p.float64() * 2 * math.Pi,
	}
}

func (p *Placer) intN(n int) int {
	if p == nil || p.Rand == nil {
		return rand.IntN(n)
	}
	return p.Rand.IntN(n)
}

func (p *Placer) float64() float64 {
	if p == nil || p.Rand == nil {
		return rand.Float64()
	}
	return p.Rand.Float64()
}

// ClampActivity keeps an activity scalar within [0,1].
func ClampActivity(activity float64) float64 {
	if math.IsNaN(activity) {
		return 0
	}
	return math.Max(0, math.Min(1, activity))
}

// ValidTexture reports whether t is one of the known planet textures.
func ValidTexture(t models.TextureType) bool {
	for _, known := range textureTypes {
		if known == t {
			return true
		}
	}
	return false
}
