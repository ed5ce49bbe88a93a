// facecapture: runs a face capture session against a local webcam
//
// Frames go from the camera to the session and to the dashboard; the session
// result is printed as JSON when it ends.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facecapture/internal/config"
	"github.com/teslashibe/go-facecapture/internal/log"
	"github.com/teslashibe/go-facecapture/pkg/face"
	"github.com/teslashibe/go-facecapture/pkg/liveness"
	"github.com/teslashibe/go-facecapture/pkg/plugin"
	"github.com/teslashibe/go-facecapture/pkg/session"
	"github.com/teslashibe/go-facecapture/pkg/tracking"
	"github.com/teslashibe/go-facecapture/pkg/tracking/detection"
	"github.com/teslashibe/go-facecapture/pkg/web"
)

var debug = flag.Bool("debug", false, "Enable debug logging")

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	log.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println()
	fmt.Println("🙂 Face capture")
	fmt.Printf("   Detector: %s, captures: %d, bearings: %v\n", cfg.Detector, cfg.CaptureCount, cfg.Bearings)
	fmt.Println()

	detector, closeDetector, err := newDetector(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDetector()

	plugins, closePlugins, err := newPlugins(cfg)
	if err != nil {
		return err
	}
	defer closePlugins()

	settings, err := cfg.SessionSettings()
	if err != nil {
		return err
	}
	sess, err := session.New(detector, settings, session.WithPlugins(plugins...))
	if err != nil {
		return err
	}

	webcam, err := gocv.OpenVideoCapture(cfg.Camera)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", cfg.Camera, err)
	}
	defer webcam.Close()

	server := web.NewServer(cfg.Port)
	go func() {
		if err := server.Start(ctx); err != nil {
			log.Error("dashboard stopped", "error", err)
		}
	}()
	server.Attach(ctx, sess)

	if err := sess.Start(ctx); err != nil {
		return err
	}
	go printPrompts(sess.Subscribe(8))

	if err := capture(ctx, webcam, sess, server, cfg.Mirror); err != nil {
		sess.Cancel()
		return err
	}

	res, err := sess.Wait(context.Background())
	if err != nil {
		return err
	}
	return printResult(res)
}

func newDetector(ctx context.Context, cfg *config.Config) (detection.Detector, func(), error) {
	switch cfg.Detector {
	case config.DetectorRekognition:
		d, err := detection.NewRekognition(ctx, detection.RekognitionConfig{
			Region:        cfg.AWSRegion,
			MinConfidence: cfg.MinConfidence,
		})
		if err != nil {
			return nil, nil, err
		}
		return d, func() {}, nil
	default:
		dc := detection.DefaultConfig()
		dc.ModelPath = cfg.YuNetModel
		d, err := detection.NewYuNet(dc)
		if err != nil {
			return nil, nil, err
		}
		return d, func() { d.Close() }, nil
	}
}

func newPlugins(cfg *config.Config) ([]plugin.Runner, func(), error) {
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	plugins := []plugin.Runner{plugin.Run[plugin.FPS](plugin.NewFPSMeasurement())}
	if cfg.SpoofModel != "" {
		sc := detection.DefaultSpoofConfig()
		sc.ModelPath = cfg.SpoofModel
		spoof, err := detection.NewSpoofDeviceDetector(sc)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, spoof.Close)
		p := liveness.NewPassiveLiveness(spoof, liveness.DefaultPassiveLivenessConfig())
		plugins = append(plugins, plugin.Run[liveness.SpoofFrame](p))
	}
	if cfg.Record {
		rec := plugin.NewVideoRecording(cfg.RecordingPath, 0)
		closers = append(closers, rec.Close)
		plugins = append(plugins, plugin.Run[string](rec))
	}
	return plugins, closeAll, nil
}

// capture reads the webcam and submits frames until the session ends
func capture(ctx context.Context, webcam *gocv.VideoCapture, sess *session.Session, server *web.Server, mirror bool) error {
	img := gocv.NewMat()
	defer img.Close()

	start := time.Now()
	var serial uint64
	for {
		select {
		case <-sess.Done():
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		if ok := webcam.Read(&img); !ok {
			return errors.New("camera closed")
		}
		if img.Empty() {
			continue
		}
		if mirror {
			gocv.Flip(img, &img, 1)
		}

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
		if err != nil {
			return fmt.Errorf("encode frame: %w", err)
		}
		jpeg := append([]byte(nil), buf.GetBytes()...)
		buf.Close()

		serial++
		sess.Submit(tracking.Input{
			SerialNumber: serial,
			Time:         time.Since(start),
			Image:        face.Image{Width: img.Cols(), Height: img.Rows(), JPEG: jpeg},
		})
		server.SendCameraFrame(jpeg)
	}
}

// printPrompts tells the user what to do as the tracking state changes
func printPrompts(results <-chan tracking.Result) {
	last := tracking.State(-1)
	for r := range results {
		if r.State == last {
			continue
		}
		last = r.State
		switch r.State {
		case tracking.StateStarted:
			fmt.Println("👀 Looking for a face...")
		case tracking.StateFaceFound:
			fmt.Println("🔲 Centre your face in the oval")
		case tracking.StateFaceFixed, tracking.StateFaceMisaligned:
			fmt.Printf("↪️  Turn your head: %s\n", r.RequestedBearing())
		case tracking.StateFaceAligned:
			fmt.Println("✋ Hold still")
		case tracking.StateFaceCaptured:
			fmt.Println("📸 Captured")
		case tracking.StatePaused:
			fmt.Println("⏸️  Get ready for the next pose")
		}
	}
}

func printResult(res session.Result) error {
	fmt.Println()
	switch res.Status {
	case session.StatusSuccess:
		fmt.Printf("✅ Captured %d face(s)\n", len(res.CapturedFaces))
	case session.StatusFailure:
		fmt.Printf("❌ Session failed: %v\n", res.Err)
	case session.StatusCancelled:
		fmt.Println("👋 Cancelled")
	}
	for name, md := range res.Metadata {
		fmt.Printf("   %s: %s\n", name, md.Summary)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
