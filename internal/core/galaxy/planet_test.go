package galaxy

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceCyclesOrbitRings(t *testing.T) {
	p := NewPlacer(rand.New(rand.NewPCG(1, 2)))

	want := []float64{5, 8, 12, 17, 23, 5, 8}
	for count, radius := range want {
		pd := p.Place(count)
		assert.Equal(t, radius, pd.OrbitRadius, "existing=%d", count)
		assert.InDelta(t, 0.5/radius, pd.OrbitSpeed, 1e-12)
		assert.Equal(t, 0.5, pd.Size)
		assert.Equal(t, 0.3, pd.Activity)
		assert.True(t, ValidTexture(pd.TextureType))
		assert.GreaterOrEqual(t, pd.AngleOffset, 0.0)
		assert.Less(t, pd.AngleOffset, 2*math.Pi)
	}
}

func TestPlaceIsDeterministicWithSeed(t *testing.T) {
	a := NewPlacer(rand.New(rand.NewPCG(7, 7))).Place(3)
	b := NewPlacer(rand.New(rand.NewPCG(7, 7))).Place(3)
	assert.Equal(t, a, b)
}

func TestZeroPlacerUsesGlobalSource(t *testing.T) {
	var p Placer
	pd := p.Place(1)
	assert.Equal(t, 8.0, pd.OrbitRadius)
}

func TestClampActivity(t *testing.T) {
	assert.Equal(t, 0.0, ClampActivity(-1))
	assert.Equal(t, 1.0, ClampActivity(3))
	assert.Equal(t, 0.42, ClampActivity(0.42))
	assert.Equal(t, 0.0, ClampActivity(math.NaN()))
}
