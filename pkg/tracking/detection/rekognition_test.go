package detection

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facecapture/pkg/face"
)

// mockRekognitionAPI is a mock implementation of RekognitionAPI for testing
type mockRekognitionAPI struct {
	detectFacesFunc func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
	lastInput       *rekognition.DetectFacesInput
}

func (m *mockRekognitionAPI) DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
	m.lastInput = params
	if m.detectFacesFunc != nil {
		return m.detectFacesFunc(ctx, params, optFns...)
	}
	return &rekognition.DetectFacesOutput{}, nil
}

func landmark(t types.LandmarkType, x, y float32) types.Landmark {
	return types.Landmark{Type: t, X: aws.Float32(x), Y: aws.Float32(y)}
}

func faceDetail(left, top, width, height, confidence float32) types.FaceDetail {
	return types.FaceDetail{
		BoundingBox: &types.BoundingBox{
			Left:   aws.Float32(left),
			Top:    aws.Float32(top),
			Width:  aws.Float32(width),
			Height: aws.Float32(height),
		},
		Confidence: aws.Float32(confidence),
		Pose:       &types.Pose{Yaw: aws.Float32(-12), Pitch: aws.Float32(4), Roll: aws.Float32(1)},
		Quality:    &types.ImageQuality{Brightness: aws.Float32(50), Sharpness: aws.Float32(100)},
		Landmarks: []types.Landmark{
			landmark(types.LandmarkTypeEyeLeft, 0.25, 0.25),
			landmark(types.LandmarkTypeEyeRight, 0.75, 0.25),
			landmark(types.LandmarkTypeNose, 0.5, 0.5),
			landmark(types.LandmarkTypeMouthLeft, 0.25, 0.75),
			landmark(types.LandmarkTypeMouthRight, 0.75, 0.75),
		},
	}
}

func TestRekognition_Detect(t *testing.T) {
	api := &mockRekognitionAPI{
		detectFacesFunc: func(context.Context, *rekognition.DetectFacesInput, ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			return &rekognition.DetectFacesOutput{
				FaceDetails: []types.FaceDetail{
					faceDetail(0.1, 0.1, 0.1, 0.1, 99),
					faceDetail(0.25, 0.25, 0.5, 0.5, 99.5),
					faceDetail(0, 0, 1, 1, 40), // below MinConfidence
				},
			}, nil
		},
	}
	d := NewRekognitionWithAPI(api, DefaultRekognitionConfig())
	img := face.Image{Width: 400, Height: 800, JPEG: []byte{0xff, 0xd8, 0xff}}

	faces, err := d.Detect(context.Background(), img, 0)
	require.NoError(t, err)
	require.Len(t, faces, 2)

	f := faces[0]
	assert.Equal(t, face.Rect{X: 100, Y: 200, Width: 200, Height: 400}, f.Bounds)
	assert.Equal(t, face.EulerAngle{Yaw: -12, Pitch: 4, Roll: 1}, f.Angle)
	assert.InDelta(t, 0.85, f.Quality, 1e-6)
	require.NotNil(t, f.LeftEye)
	assert.Equal(t, face.Point{X: 100, Y: 200}, *f.LeftEye)
	require.NotNil(t, f.MouthCentre)
	assert.Equal(t, face.Point{X: 200, Y: 600}, *f.MouthCentre)
	assert.Len(t, f.Landmarks, 5)

	require.NotNil(t, api.lastInput)
	assert.Equal(t, []types.Attribute{types.AttributeAll}, api.lastInput.Attributes)
	assert.Equal(t, img.JPEG, api.lastInput.Image.Bytes)

	faces, err = d.Detect(context.Background(), img, 1)
	require.NoError(t, err)
	assert.Len(t, faces, 1)
}

func TestRekognition_DetectEmptyImage(t *testing.T) {
	d := NewRekognitionWithAPI(&mockRekognitionAPI{}, DefaultRekognitionConfig())

	_, err := d.Detect(context.Background(), face.Image{Width: 10, Height: 10}, 1)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestRekognition_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"access denied", &smithy.GenericAPIError{Code: errCodeAccessDenied, Message: "denied"}, ErrInvalidCredentials},
		{"unrecognized client", &smithy.GenericAPIError{Code: errCodeUnrecognizedClient}, ErrInvalidCredentials},
		{"bad image", &smithy.GenericAPIError{Code: errCodeInvalidImageFormat}, ErrInvalidImage},
		{"throttled", &smithy.GenericAPIError{Code: errCodeProvisionedThroughput}, ErrThrottled},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &mockRekognitionAPI{
				detectFacesFunc: func(context.Context, *rekognition.DetectFacesInput, ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
					return nil, tc.err
				},
			}
			d := NewRekognitionWithAPI(api, DefaultRekognitionConfig())

			_, err := d.Detect(context.Background(), face.Image{Width: 1, Height: 1, JPEG: []byte{1}}, 1)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("other errors are wrapped", func(t *testing.T) {
		boom := errors.New("network down")
		api := &mockRekognitionAPI{
			detectFacesFunc: func(context.Context, *rekognition.DetectFacesInput, ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
				return nil, boom
			},
		}
		d := NewRekognitionWithAPI(api, DefaultRekognitionConfig())

		_, err := d.Detect(context.Background(), face.Image{Width: 1, Height: 1, JPEG: []byte{1}}, 1)
		assert.ErrorIs(t, err, boom)
	})
}

func TestQualityScore(t *testing.T) {
	assert.Zero(t, qualityScore(nil))
	assert.InDelta(t, 0.3, qualityScore(&types.ImageQuality{Brightness: aws.Float32(100)}), 1e-6)
	assert.InDelta(t, 1.0, qualityScore(&types.ImageQuality{Brightness: aws.Float32(100), Sharpness: aws.Float32(100)}), 1e-6)
}
