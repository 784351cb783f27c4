package face

import (
	"errors"
	"image"

	"gonum.org/v1/gonum/floats"
)

// MaxEnrollmentImages caps how many frames one enrollment may use;
// frames beyond the cap are ignored, not rejected.
const MaxEnrollmentImages = 5

// ErrNoFaceDetected means no usable face was found in any enrollment frame.
var ErrNoFaceDetected = errors.New("no face detected in any of the images")

// BuildTemplate builds an enrollment template: each frame is run through the
// extractor independently, frames without a face are discarded, and the
// element-wise mean of the surviving descriptors becomes the template.
// It returns the number of frames that contributed. Enrolling twice with the
// same frames yields the same template bit-for-bit; re-enrollment replaces a
// stored template entirely, it is never merged with the previous one.
func (e *Extractor) BuildTemplate(images []image.Image) (Descriptor, int, error) {
	if len(images) > MaxEnrollmentImages {
		images = images[:MaxEnrollmentImages]
	}

	var descs []Descriptor
	for _, img := range images {
		if d, ok := e.Extract(img); ok {
			descs = append(descs, d)
		}
	}
	if len(descs) == 0 {
		return nil, 0, ErrNoFaceDetected
	}

	tmpl := make(Descriptor, DescriptorLen)
	for _, d := range descs {
		floats.Add(tmpl, d)
	}
	floats.Scale(1/float64(len(descs)), tmpl)
	return tmpl, len(descs), nil
}
