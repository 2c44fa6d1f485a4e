package capture

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// surface is the off-screen raster a capture operation composes frames
// on. Each recording and screenshot gets its own surface; surfaces are
// never shared between sessions or concurrent recordings.
type surface struct {
	rgba *image.RGBA
}

// render copies the decoded frame onto the surface, allocating the
// raster lazily from the first frame's bounds and scaling any frame
// that arrives with different dimensions.
func (s *surface) render(frame image.Image) {
	bounds := frame.Bounds()
	if s.rgba == nil {
		s.rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	}
	if bounds.Dx() == s.rgba.Bounds().Dx() && bounds.Dy() == s.rgba.Bounds().Dy() {
		draw.Copy(s.rgba, image.Point{}, frame, bounds, draw.Src, nil)
		return
	}
	draw.ApproxBiLinear.Scale(s.rgba, s.rgba.Bounds(), frame, bounds, draw.Src, nil)
}

// encodeJPEG returns the surface contents as a self-contained JPEG.
func (s *surface) encodeJPEG() ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, s.rgba, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFrame(payload []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(payload))
	return img, err
}
