package tracking

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facecapture/pkg/face"
)

// CapturedFace is an image and face recorded by a session
type CapturedFace struct {
	Image   face.Image   `json:"image"`
	Face    face.Face    `json:"face"`
	Bearing face.Bearing `json:"bearing"`
}

// FaceImage returns the captured frame cropped to the face bounds, JPEG encoded
func (c CapturedFace) FaceImage() ([]byte, error) {
	if len(c.Image.JPEG) == 0 {
		return nil, errors.New("tracking: captured face has no image data")
	}
	img, err := gocv.IMDecode(c.Image.JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("tracking: decode captured image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, errors.New("tracking: captured image is empty")
	}

	roi := cropRect(c.Face.Bounds, img.Cols(), img.Rows())
	if roi.Empty() {
		return nil, fmt.Errorf("tracking: face bounds %+v outside image", c.Face.Bounds)
	}
	region := img.Region(roi)
	defer region.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, region)
	if err != nil {
		return nil, fmt.Errorf("tracking: encode face image: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// cropRect converts bounds to integer pixels clipped to the image
func cropRect(b face.Rect, width, height int) image.Rectangle {
	r := image.Rect(
		int(math.Floor(b.MinX())), int(math.Floor(b.MinY())),
		int(math.Ceil(b.MaxX())), int(math.Ceil(b.MaxY())),
	)
	return r.Intersect(image.Rect(0, 0, width, height))
}

// ResultTransformer may rewrite a faceCaptured candidate before it is emitted.
// Returning a result in another state declines the capture.
type ResultTransformer func(ctx context.Context, r Result) (Result, error)
