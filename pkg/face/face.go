package face

import "sort"

// Face is a single detected face
type Face struct {
	Bounds    Rect       `json:"bounds"`
	Angle     EulerAngle `json:"angle"`
	Quality   float64    `json:"quality"`
	Landmarks []Point    `json:"landmarks,omitempty"`

	// Named landmarks, nil when the detector doesn't report them
	LeftEye     *Point `json:"leftEye,omitempty"`
	RightEye    *Point `json:"rightEye,omitempty"`
	NoseTip     *Point `json:"noseTip,omitempty"`
	MouthCentre *Point `json:"mouthCentre,omitempty"`
}

// Prominence is the ordering key used to pick the most relevant face
func (f Face) Prominence() float64 {
	return f.Bounds.Area() * f.Quality
}

// SortByProminence orders faces by bounds area times quality, largest first
func SortByProminence(faces []Face) {
	sort.SliceStable(faces, func(i, j int) bool {
		return faces[i].Prominence() > faces[j].Prominence()
	})
}

// WithBoundsSetToAspectRatio returns a copy whose bounds have been grown around
// their centre to the given width/height ratio
func (f Face) WithBoundsSetToAspectRatio(ratio float64) Face {
	out := f.clone()
	out.Bounds = f.Bounds.WithAspectRatio(ratio)
	return out
}

// Scaled returns a copy with bounds and landmarks multiplied by sx, sy
func (f Face) Scaled(sx, sy float64) Face {
	return f.transform(func(p Point) Point { return p.Scaled(sx, sy) }, func(r Rect) Rect { return r.Scaled(sx, sy) })
}

// Mirrored returns a copy flipped horizontally inside a frame of the given width.
// Only geometry changes; the angle is kept as detected.
func (f Face) Mirrored(width float64) Face {
	return f.transform(func(p Point) Point { return Point{X: width - p.X, Y: p.Y} }, func(r Rect) Rect { return r.Mirrored(width) })
}

func (f Face) transform(pt func(Point) Point, rect func(Rect) Rect) Face {
	out := f.clone()
	out.Bounds = rect(f.Bounds)
	for i := range out.Landmarks {
		out.Landmarks[i] = pt(out.Landmarks[i])
	}
	for _, p := range []**Point{&out.LeftEye, &out.RightEye, &out.NoseTip, &out.MouthCentre} {
		if *p != nil {
			v := pt(**p)
			*p = &v
		}
	}
	return out
}

// clone copies the landmark slice and named points so a derived face never
// aliases the original
func (f Face) clone() Face {
	out := f
	if f.Landmarks != nil {
		out.Landmarks = append([]Point(nil), f.Landmarks...)
	}
	out.LeftEye = copyPoint(f.LeftEye)
	out.RightEye = copyPoint(f.RightEye)
	out.NoseTip = copyPoint(f.NoseTip)
	out.MouthCentre = copyPoint(f.MouthCentre)
	return out
}

func copyPoint(p *Point) *Point {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to a copy of p, handy for filling named landmarks
func Ptr(p Point) *Point {
	return &p
}
