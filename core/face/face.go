// Package face implements the biometric identity-matching engine:
// locating a face in a frame, extracting an appearance descriptor from it,
// building enrollment templates and scoring probes against them.
//
// The descriptor is deliberately weak: raw pixel intensities of a fixed
// 100×100 crop, compared with Pearson correlation. It is not a production
// grade recognizer (no embeddings, no liveness, no pose normalization) and
// is not meant to become one.
package face

import "image"

// CropSize is the side of the square every located face is resized to.
const CropSize = 100

// DescriptorLen is the fixed length of every descriptor and template.
const DescriptorLen = CropSize * CropSize

// Descriptor is a row-major flattened vector of crop pixel intensities.
// Descriptors are ephemeral: computed on demand, never stored on their own.
// The element-wise mean of several descriptors forms an enrollment template.
type Descriptor []float64

// Region is a face bounding box in image coordinates.
type Region struct {
	X, Y, W, H int
}

func (r Region) Area() int { return r.W * r.H }

func (r Region) rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Locator finds the most prominent face-like region in a grayscale frame.
// Implementations must be pure functions of the pixel data: same frame,
// same answer. ok is false when no candidate region is detected; malformed
// but decodable frames never error.
type Locator interface {
	Locate(img *image.Gray) (region Region, ok bool)
}
