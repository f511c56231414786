package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestAngles(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
}

func TestClamp(t *testing.T) {
	test.That(t, Clamp(-1, 0.01, 10), test.ShouldEqual, 0.01)
	test.That(t, Clamp(11, 0.01, 10), test.ShouldEqual, 10.0)
	test.That(t, Clamp(3, 0.01, 10), test.ShouldEqual, 3.0)
}

func TestFinite(t *testing.T) {
	test.That(t, IsFinite(1), test.ShouldBeTrue)
	test.That(t, IsFinite(math.NaN()), test.ShouldBeFalse)
	test.That(t, IsFinite(math.Inf(-1)), test.ShouldBeFalse)
}
