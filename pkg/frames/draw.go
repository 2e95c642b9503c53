package frames

import (
	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/abworrall/direct-pose/pkg/emath"
)

var (
	inlierColor  = colorful.Hsv(120, 1, 1) // green
	outlierColor = colorful.Hsv(0, 1, 1)   // red
)

const markerRadius = 2.0

// DrawProjections writes img with a circle at every projected point;
// slots holding (-1,-1) are skipped.
func DrawProjections(img emath.FloatGrid, inliers, outliers []r2.Point, filename string) error {
	dc := gg.NewContextForImage(img.ToGray())
	dc.SetLineWidth(1)

	draw := func(pts []r2.Point) {
		for _, p := range pts {
			if p.X < 0 && p.Y < 0 {
				continue
			}
			dc.DrawCircle(p.X, p.Y, markerRadius)
			dc.Stroke()
		}
	}

	dc.SetColor(inlierColor)
	draw(inliers)
	dc.SetColor(outlierColor)
	draw(outliers)

	return dc.SavePNG(filename)
}
