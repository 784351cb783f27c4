package face

import (
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"
)

// detection quality cutoff; pigo detections below it are noise.
const minDetectionQuality = 5.0

type pigoLocator struct {
	classifier *pigo.Pigo
}

var _ Locator = (*pigoLocator)(nil)

// NewPigoLocator loads a pigo facefinder cascade from disk. The returned
// locator is safe for concurrent use: RunCascade does not mutate the
// classifier.
func NewPigoLocator(cascadeFile string) (Locator, error) {
	data, err := os.ReadFile(cascadeFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading cascade file")
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, errors.Wrap(err, "unpacking cascade file")
	}
	return &pigoLocator{classifier: classifier}, nil
}

// Locate runs the cascade over the frame and returns the candidate with the
// largest area. Largest-area is a deterministic tie-break across candidates,
// not "first detected".
func (l *pigoLocator) Locate(img *image.Gray) (Region, bool) {
	bounds := img.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	if rows == 0 || cols == 0 {
		return Region{}, false
	}

	maxSize := rows
	if cols > rows {
		maxSize = cols
	}
	params := pigo.CascadeParams{
		MinSize:     30,
		MaxSize:     maxSize,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: img.Pix,
			Rows:   rows,
			Cols:   cols,
			Dim:    img.Stride,
		},
	}

	dets := l.classifier.RunCascade(params, 0.0 /* angle */)
	dets = l.classifier.ClusterDetections(dets, 0.2)

	var best Region
	var found bool
	for _, det := range dets {
		if det.Q < minDetectionQuality {
			continue
		}
		half := det.Scale / 2
		r := clampRegion(Region{X: det.Col - half, Y: det.Row - half, W: det.Scale, H: det.Scale}, cols, rows)
		if r.Area() > best.Area() {
			best = r
			found = true
		}
	}
	return best, found
}

func clampRegion(r Region, cols, rows int) Region {
	if r.X < 0 {
		r.W += r.X
		r.X = 0
	}
	if r.Y < 0 {
		r.H += r.Y
		r.Y = 0
	}
	if r.X+r.W > cols {
		r.W = cols - r.X
	}
	if r.Y+r.H > rows {
		r.H = rows - r.Y
	}
	if r.W < 0 {
		r.W = 0
	}
	if r.H < 0 {
		r.H = 0
	}
	return r
}
