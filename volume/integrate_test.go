package volume

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/foodvolume/pointcloud"
	"go.viam.com/foodvolume/rimage"
	"go.viam.com/foodvolume/rimage/transform"
)

func TestIntegrate(t *testing.T) {
	heights := []float64{0.01, 0.02, -0.03, 0}
	areas := []float64{1e-6, 2e-6, 5e-6, 7e-6}

	v, err := Integrate(heights, areas)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldAlmostEqual, 0.01*1e-6+0.02*2e-6)

	t.Run("linear in heights and areas", func(t *testing.T) {
		for _, k := range []float64{0.5, 2, 3.7} {
			scaledH := make([]float64, len(heights))
			scaledA := make([]float64, len(areas))
			for i := range heights {
				scaledH[i] = k * heights[i]
				scaledA[i] = k * areas[i]
			}
			vh, err := Integrate(scaledH, areas)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, vh, test.ShouldAlmostEqual, k*v)
			va, err := Integrate(heights, scaledA)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, va, test.ShouldAlmostEqual, k*v)
		}
	})

	t.Run("below the plane contributes nothing", func(t *testing.T) {
		v, err := Integrate([]float64{-0.01, -0.5}, []float64{1, 1})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, v, test.ShouldEqual, 0)
	})

	_, err = Integrate(heights, areas[:2])
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRejectSpikes(t *testing.T) {
	heights := []float64{0.01, 0.2, -0.1, 0.05}
	kept, rejected := RejectSpikes(heights, 0.1)
	test.That(t, kept, test.ShouldResemble, []float64{0.01, 0, -0.1, 0.05})
	test.That(t, rejected, test.ShouldEqual, 1)
	// input untouched
	test.That(t, heights[1], test.ShouldEqual, 0.2)

	kept, rejected = RejectSpikes(heights, 0)
	test.That(t, kept, test.ShouldResemble, heights)
	test.That(t, rejected, test.ShouldEqual, 0)
}

func TestHeightMap(t *testing.T) {
	params, err := transform.NewIntrinsicsFromFocalLength(4, 4, 100)
	test.That(t, err, test.ShouldBeNil)
	dm := rimage.NewConstantDepthMap(4, 4, 1)
	dm.Set(1, 1, 0.9)
	dm.Set(2, 2, 1.1)
	cloud, err := params.DepthMapToPointCloud(dm)
	test.That(t, err, test.ShouldBeNil)

	plane := pointcloud.NewPlane(r3.Vector{Z: 1}, r3.Vector{Z: 1}).OrientTowards(r3.Vector{})
	heights := HeightMap(cloud, plane, []int{cloud.Index(1, 1), cloud.Index(2, 2), cloud.Index(0, 0)})
	test.That(t, heights[0], test.ShouldAlmostEqual, 0.1)
	test.That(t, heights[1], test.ShouldAlmostEqual, -0.1)
	test.That(t, heights[2], test.ShouldAlmostEqual, 0)
}

func TestFootprintAreas(t *testing.T) {
	const f = 200.0
	params, err := transform.NewIntrinsicsFromFocalLength(10, 10, f)
	test.That(t, err, test.ShouldBeNil)
	dm := rimage.NewConstantDepthMap(10, 10, 0.5)
	cloud, err := params.DepthMapToPointCloud(dm)
	test.That(t, err, test.ShouldBeNil)
	plane := pointcloud.NewPlane(r3.Vector{Z: 1}, r3.Vector{Z: 0.5}).OrientTowards(r3.Vector{})

	var food []int
	for y := 2; y < 6; y++ {
		for x := 3; x < 8; x++ {
			food = append(food, cloud.Index(x, y))
		}
	}
	// a lone pixel has no neighbours to difference against
	lone := cloud.Index(0, 9)
	food = append(food, lone)

	want := 0.5 * 0.5 / (f * f)
	for _, model := range []FootprintModel{FootprintPlaneProjected, FootprintPinhole} {
		areas, err := FootprintAreas(cloud, params, plane, food, model)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, areas, test.ShouldHaveLength, len(food))
		for _, a := range areas {
			test.That(t, a, test.ShouldAlmostEqual, want, 1e-15)
		}
	}

	t.Run("tilted plane", func(t *testing.T) {
		// orthogonal projection onto a plane tilted by 60 degrees halves the footprint
		tilted := pointcloud.NewPlane(r3.Vector{X: -0.8660254037844386, Z: 0.5}, r3.Vector{Z: 0.5})
		areas, err := FootprintAreas(cloud, params, tilted, food[:len(food)-1], FootprintPlaneProjected)
		test.That(t, err, test.ShouldBeNil)
		for _, a := range areas {
			test.That(t, a, test.ShouldAlmostEqual, want*0.5, 1e-15)
		}
	})

	_, err = FootprintAreas(cloud, params, plane, food, "stretched")
	test.That(t, err, test.ShouldNotBeNil)
}
