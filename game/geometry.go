package game

import (
	"math"
	"math/rand"
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

func (v Vec3) DistanceTo(o Vec3) float64 {
	return v.Sub(o).Length()
}

// Normalized returns the unit vector, or the zero vector for a zero input.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func (v Vec3) Clamped(limit float64) Vec3 {
	return Vec3{
		X: clamp(v.X, -limit, limit),
		Y: clamp(v.Y, -limit, limit),
		Z: clamp(v.Z, -limit, limit),
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

// raySphere solves |origin + t*dir - center|^2 = r^2 for the smallest t >= 0.
// dir must be normalized.
func raySphere(origin, dir, center Vec3, radius float64) (float64, bool) {
	oc := origin.Sub(center)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	if t := -b - sq; t >= 0 {
		return t, true
	}
	if t := -b + sq; t >= 0 {
		return t, true
	}
	return 0, false
}

// rayCapsule intersects a ray with a vertical capsule standing on feet: the
// capsule spans [feet.Y, feet.Y+height] with the given radius, modelled as a
// Y-axis cylinder bounded to the span between the two cap centers plus a
// sphere around each cap center. Returns the smallest non-negative hit
// distance. dir must be normalized.
func rayCapsule(origin, dir, feet Vec3, height, radius float64) (float64, bool) {
	if height < 2*radius {
		height = 2 * radius
	}
	lowCap := Vec3{feet.X, feet.Y + radius, feet.Z}
	highCap := Vec3{feet.X, feet.Y + height - radius, feet.Z}

	best := math.MaxFloat64
	found := false

	// Infinite cylinder around the capsule axis, solved in the XZ plane,
	// accepted only between the cap centers.
	ox, oz := origin.X-feet.X, origin.Z-feet.Z
	a := dir.X*dir.X + dir.Z*dir.Z
	if a > 1e-12 {
		b := ox*dir.X + oz*dir.Z
		c := ox*ox + oz*oz - radius*radius
		disc := b*b - a*c
		if disc >= 0 {
			sq := math.Sqrt(disc)
			for _, t := range [2]float64{(-b - sq) / a, (-b + sq) / a} {
				if t < 0 {
					continue
				}
				y := origin.Y + dir.Y*t
				if y >= lowCap.Y && y <= highCap.Y && t < best {
					best = t
					found = true
				}
			}
		}
	}

	for _, center := range [2]Vec3{lowCap, highCap} {
		if t, ok := raySphere(origin, dir, center, radius); ok && t < best {
			best = t
			found = true
		}
	}

	if !found {
		return 0, false
	}
	return best, true
}

// perturbCone deviates dir by a uniformly random angle within [0, spread]
// radians around a uniformly random azimuth. dir must be normalized.
func perturbCone(dir Vec3, spread float64, rng *rand.Rand) Vec3 {
	if spread <= 0 {
		return dir
	}

	// Orthonormal basis around dir.
	up := Vec3{0, 1, 0}
	if math.Abs(dir.Y) > 0.99 {
		up = Vec3{1, 0, 0}
	}
	right := Vec3{
		dir.Y*up.Z - dir.Z*up.Y,
		dir.Z*up.X - dir.X*up.Z,
		dir.X*up.Y - dir.Y*up.X,
	}.Normalized()
	fwdUp := Vec3{
		right.Y*dir.Z - right.Z*dir.Y,
		right.Z*dir.X - right.X*dir.Z,
		right.X*dir.Y - right.Y*dir.X,
	}

	theta := rng.Float64() * spread
	phi := rng.Float64() * 2 * math.Pi
	sin := math.Sin(theta)

	return dir.Scale(math.Cos(theta)).
		Add(right.Scale(sin * math.Cos(phi))).
		Add(fwdUp.Scale(sin * math.Sin(phi))).
		Normalized()
}
