package face

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Extractor turns raw frames into descriptors using a Locator.
type Extractor struct {
	loc Locator
}

func NewExtractor(loc Locator) *Extractor {
	return &Extractor{loc: loc}
}

// Extract converts the frame to single-channel intensity, locates the most
// prominent face, crops it, resizes the crop to CropSize×CropSize and
// flattens it row-major. ok is false when no face is found; every caller
// must handle that before attempting a comparison. No normalization happens
// here, it is deferred to comparison time.
func (e *Extractor) Extract(img image.Image) (Descriptor, bool) {
	gray := Grayscale(img)

	region, ok := e.loc.Locate(gray)
	if !ok || region.Area() == 0 {
		return nil, false
	}

	crop := gray.SubImage(region.rect().Intersect(gray.Bounds()))
	resized := image.NewGray(image.Rect(0, 0, CropSize, CropSize))
	// ApproxBiLinear is deterministic; extraction must be bit-for-bit
	// reproducible for the same input so that enrollment is idempotent.
	draw.ApproxBiLinear.Scale(resized, resized.Bounds(), crop, crop.Bounds(), draw.Src, nil)

	desc := make(Descriptor, 0, DescriptorLen)
	for y := 0; y < CropSize; y++ {
		row := resized.Pix[y*resized.Stride : y*resized.Stride+CropSize]
		for _, px := range row {
			desc = append(desc, float64(px))
		}
	}
	return desc, true
}

// HasFace reports whether a face is present in the frame without extracting.
func (e *Extractor) HasFace(img image.Image) bool {
	_, ok := e.loc.Locate(Grayscale(img))
	return ok
}

// Grayscale converts any decoded image to 8-bit single-channel intensity.
func Grayscale(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}
