package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"

	"github.com/teslashibe/go-facecapture/internal/log"
	"github.com/teslashibe/go-facecapture/pkg/face"
)

const (
	errCodeAccessDenied          = "AccessDeniedException"
	errCodeUnrecognizedClient    = "UnrecognizedClientException"
	errCodeInvalidSignature      = "InvalidSignatureException"
	errCodeInvalidImageFormat    = "InvalidImageFormatException"
	errCodeImageTooLarge         = "ImageTooLargeException"
	errCodeProvisionedThroughput = "ProvisionedThroughputExceededException"

	// rekognitionMaxImageSize is the largest inline image DetectFaces accepts (5MB)
	rekognitionMaxImageSize = 5 * 1024 * 1024
)

// ErrThrottled is returned when Rekognition rejects a call for exceeding the account's throughput
var ErrThrottled = errors.New("detection: rekognition throughput exceeded")

// RekognitionAPI is the subset of the Rekognition client used by the detector
type RekognitionAPI interface {
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
}

// RekognitionConfig holds Rekognition detector configuration
type RekognitionConfig struct {
	Region        string  // AWS region
	MinConfidence float64 // Faces below this confidence (0-100) are dropped
}

// DefaultRekognitionConfig returns production defaults
func DefaultRekognitionConfig() RekognitionConfig {
	return RekognitionConfig{
		Region:        "us-east-1",
		MinConfidence: 90,
	}
}

// RekognitionDetector detects faces with AWS Rekognition DetectFaces
type RekognitionDetector struct {
	api    RekognitionAPI
	config RekognitionConfig
	logger *slog.Logger
}

var _ Detector = (*RekognitionDetector)(nil)

// NewRekognition creates a detector using the AWS default credential chain
func NewRekognition(ctx context.Context, cfg RekognitionConfig) (*RekognitionDetector, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewRekognitionWithAPI(rekognition.NewFromConfig(awsCfg), cfg), nil
}

// NewRekognitionWithAPI creates a detector on top of an existing client
func NewRekognitionWithAPI(api RekognitionAPI, cfg RekognitionConfig) *RekognitionDetector {
	return &RekognitionDetector{
		api:    api,
		config: cfg,
		logger: log.With("component", "rekognition"),
	}
}

// Detect sends the frame's JPEG to Rekognition and converts the face details to
// pixel coordinates of the frame
func (d *RekognitionDetector) Detect(ctx context.Context, img face.Image, limit int) ([]face.Face, error) {
	if len(img.JPEG) == 0 || img.Width == 0 || img.Height == 0 {
		return nil, ErrEmptyImage
	}
	if len(img.JPEG) > rekognitionMaxImageSize {
		return nil, fmt.Errorf("%w: too large for rekognition (%d bytes)", ErrInvalidImage, len(img.JPEG))
	}

	output, err := d.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: img.JPEG},
		Attributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		return nil, parseRekognitionError(err)
	}

	faces := make([]face.Face, 0, len(output.FaceDetails))
	for _, detail := range output.FaceDetails {
		if detail.BoundingBox == nil {
			continue
		}
		if aws.ToFloat32(detail.Confidence) < float32(d.config.MinConfidence) {
			continue
		}
		faces = append(faces, rekognitionFace(detail, img.Size()))
	}

	d.logger.Debug("rekognition detected faces", "count", len(faces), "reported", len(output.FaceDetails))
	return Finalize(faces, limit), nil
}

// rekognitionFace converts a face detail with ratios of the image size to pixels
func rekognitionFace(detail types.FaceDetail, size face.Size) face.Face {
	box := detail.BoundingBox
	f := face.Face{
		Bounds: face.Rect{
			X:      float64(aws.ToFloat32(box.Left)) * size.Width,
			Y:      float64(aws.ToFloat32(box.Top)) * size.Height,
			Width:  float64(aws.ToFloat32(box.Width)) * size.Width,
			Height: float64(aws.ToFloat32(box.Height)) * size.Height,
		},
		Quality: qualityScore(detail.Quality),
	}
	if p := detail.Pose; p != nil {
		f.Angle = face.EulerAngle{
			Yaw:   float64(aws.ToFloat32(p.Yaw)),
			Pitch: float64(aws.ToFloat32(p.Pitch)),
			Roll:  float64(aws.ToFloat32(p.Roll)),
		}
	}

	var mouthLeft, mouthRight *face.Point
	for _, lm := range detail.Landmarks {
		pt := face.Point{
			X: float64(aws.ToFloat32(lm.X)) * size.Width,
			Y: float64(aws.ToFloat32(lm.Y)) * size.Height,
		}
		f.Landmarks = append(f.Landmarks, pt)
		switch lm.Type {
		case types.LandmarkTypeEyeLeft:
			f.LeftEye = face.Ptr(pt)
		case types.LandmarkTypeEyeRight:
			f.RightEye = face.Ptr(pt)
		case types.LandmarkTypeNose:
			f.NoseTip = face.Ptr(pt)
		case types.LandmarkTypeMouthLeft:
			mouthLeft = face.Ptr(pt)
		case types.LandmarkTypeMouthRight:
			mouthRight = face.Ptr(pt)
		}
	}
	if mouthLeft != nil && mouthRight != nil {
		f.MouthCentre = &face.Point{X: (mouthLeft.X + mouthRight.X) / 2, Y: (mouthLeft.Y + mouthRight.Y) / 2}
	}
	return f
}

// qualityScore combines brightness and sharpness (0-100) into 0-1, weighting sharpness
func qualityScore(q *types.ImageQuality) float64 {
	if q == nil {
		return 0
	}
	brightness := float64(aws.ToFloat32(q.Brightness)) / 100
	sharpness := float64(aws.ToFloat32(q.Sharpness)) / 100
	return brightness*0.3 + sharpness*0.7
}

func parseRekognitionError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case errCodeAccessDenied, errCodeUnrecognizedClient, errCodeInvalidSignature:
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.ErrorMessage())
		case errCodeInvalidImageFormat, errCodeImageTooLarge:
			return fmt.Errorf("%w: %s", ErrInvalidImage, apiErr.ErrorMessage())
		case errCodeProvisionedThroughput:
			return ErrThrottled
		}
	}
	return fmt.Errorf("detection: rekognition detect faces: %w", err)
}
