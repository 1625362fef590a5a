package game

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec3_Normalized(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Vec3{}, Vec3{}.Normalized(), "zero vector stays zero")

	n := Vec3{X: 3, Y: 4}.Normalized()
	assert.InDelta(t, 1.0, n.Length(), 1e-9)
	assert.InDelta(t, 0.6, n.X, 1e-9)
	assert.InDelta(t, 0.8, n.Y, 1e-9)
}

func TestVec3_Clamped(t *testing.T) {
	t.Parallel()
	v := Vec3{X: 1500, Y: -1500, Z: 42}.Clamped(1000)
	assert.Equal(t, Vec3{X: 1000, Y: -1000, Z: 42}, v)
}

func TestVec3_IsFinite(t *testing.T) {
	t.Parallel()
	assert.True(t, Vec3{X: 1, Y: 2, Z: 3}.IsFinite())
	assert.False(t, Vec3{X: math.NaN()}.IsFinite())
	assert.False(t, Vec3{Z: math.Inf(-1)}.IsFinite())
}

func TestRaySphere(t *testing.T) {
	t.Parallel()

	t.Run("head-on hit", func(t *testing.T) {
		t.Parallel()
		dist, ok := raySphere(Vec3{}, Vec3{X: 1}, Vec3{X: 10}, 2)
		require.True(t, ok)
		assert.InDelta(t, 8.0, dist, 1e-9)
	})

	t.Run("sphere behind the origin", func(t *testing.T) {
		t.Parallel()
		_, ok := raySphere(Vec3{}, Vec3{X: 1}, Vec3{X: -10}, 2)
		assert.False(t, ok)
	})

	t.Run("origin inside the sphere", func(t *testing.T) {
		t.Parallel()
		dist, ok := raySphere(Vec3{}, Vec3{X: 1}, Vec3{X: 1}, 2)
		require.True(t, ok)
		assert.InDelta(t, 3.0, dist, 1e-9)
	})
}

func TestRayCapsule(t *testing.T) {
	t.Parallel()

	t.Run("horizontal hit on the cylinder", func(t *testing.T) {
		t.Parallel()
		feet := Vec3{X: 10}
		dist, ok := rayCapsule(Vec3{Y: 0.9}, Vec3{X: 1}, feet, capsuleHeight, capsuleRadius)
		require.True(t, ok)
		assert.InDelta(t, 10-capsuleRadius, dist, 1e-9)
	})

	t.Run("horizontal miss past the side", func(t *testing.T) {
		t.Parallel()
		feet := Vec3{X: 10, Z: 1}
		_, ok := rayCapsule(Vec3{Y: 0.9}, Vec3{X: 1}, feet, capsuleHeight, capsuleRadius)
		assert.False(t, ok)
	})

	t.Run("overhead miss", func(t *testing.T) {
		t.Parallel()
		feet := Vec3{X: 10}
		_, ok := rayCapsule(Vec3{Y: 5}, Vec3{X: 1}, feet, capsuleHeight, capsuleRadius)
		assert.False(t, ok)
	})

	t.Run("vertical ray hits the top cap, not the cylinder", func(t *testing.T) {
		t.Parallel()
		// straight down the capsule axis the cylinder test degenerates;
		// only the cap sphere can report the hit
		feet := Vec3{}
		origin := Vec3{Y: 5}
		dist, ok := rayCapsule(origin, Vec3{Y: -1}, feet, capsuleHeight, capsuleRadius)
		require.True(t, ok)
		assert.InDelta(t, 5-capsuleHeight, dist, 1e-9)
	})

	t.Run("grazing the top cap off axis", func(t *testing.T) {
		t.Parallel()
		feet := Vec3{X: 10}
		// above the cylinder band but within reach of the upper cap sphere
		dist, ok := rayCapsule(Vec3{Y: capsuleHeight - capsuleRadius + 0.2}, Vec3{X: 1}, feet, capsuleHeight, capsuleRadius)
		require.True(t, ok)
		assert.Less(t, dist, 10.0)
	})

	t.Run("degenerate height is widened to a sphere", func(t *testing.T) {
		t.Parallel()
		dist, ok := rayCapsule(Vec3{Y: capsuleRadius}, Vec3{X: 1}, Vec3{X: 10}, 0, capsuleRadius)
		require.True(t, ok)
		assert.InDelta(t, 10-capsuleRadius, dist, 1e-9)
	})
}

func TestPerturbCone(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	dir := Vec3{X: 1}

	t.Run("zero spread is the identity", func(t *testing.T) {
		assert.Equal(t, dir, perturbCone(dir, 0, rng))
	})

	t.Run("stays within the cone and unit length", func(t *testing.T) {
		spread := 0.08
		for i := 0; i < 1000; i++ {
			out := perturbCone(dir, spread, rng)
			assert.InDelta(t, 1.0, out.Length(), 1e-9)
			angle := math.Acos(clamp(out.Dot(dir), -1, 1))
			assert.LessOrEqual(t, angle, spread+1e-9)
		}
	})

	t.Run("handles near-vertical directions", func(t *testing.T) {
		up := Vec3{Y: 1}
		out := perturbCone(up, 0.1, rng)
		assert.InDelta(t, 1.0, out.Length(), 1e-9)
		angle := math.Acos(clamp(out.Dot(up), -1, 1))
		assert.LessOrEqual(t, angle, 0.1+1e-9)
	})
}
