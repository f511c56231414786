package pointcloud

import (
	"github.com/golang/geo/r3"
)

// PointAndData is a tiny struct to facilitate returning a point and its data.
type PointAndData struct {
	P r3.Vector
	D Data
}

// BasicPointCloud is an unordered cloud backed by a slice, used for clouds that have no image
// layout such as the ones read back from PCD files.
type BasicPointCloud struct {
	points []PointAndData
	meta   MetaData
}

// New returns an empty BasicPointCloud.
func New() *BasicPointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated BasicPointCloud.
func NewWithPrealloc(size int) *BasicPointCloud {
	return &BasicPointCloud{
		points: make([]PointAndData, 0, size),
		meta:   NewMetaData(),
	}
}

func (cloud *BasicPointCloud) Size() int {
	return len(cloud.points)
}

func (cloud *BasicPointCloud) MetaData() MetaData {
	return cloud.meta
}

// Set appends the point to the cloud.
func (cloud *BasicPointCloud) Set(p r3.Vector, d Data) {
	cloud.points = append(cloud.points, PointAndData{P: p, D: d})
	cloud.meta.Merge(p, d)
}

// Points returns the positions in insertion order.
func (cloud *BasicPointCloud) Points() []r3.Vector {
	out := make([]r3.Vector, len(cloud.points))
	for i, pd := range cloud.points {
		out[i] = pd.P
	}
	return out
}

func (cloud *BasicPointCloud) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	for i, pd := range cloud.points {
		if numBatches > 0 && i%numBatches != myBatch {
			continue
		}
		if !fn(pd.P, pd.D) {
			return
		}
	}
}
