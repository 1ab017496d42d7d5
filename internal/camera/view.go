// Package camera holds the virtual camera configuration used to cull
// generated stars against the view frustum.
package camera

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/litescript/starfield/internal/astro"
)

// Rect is a viewport rectangle in window coordinates.
type Rect struct {
	X, Y          int
	Width, Height int
}

// View bundles the projection matrix, view matrix and viewport that define
// the visibility test. A View is a value; generators copy it at
// configuration time so it cannot change during a run.
type View struct {
	Projection mgl64.Mat4
	View       mgl64.Mat4
	Viewport   Rect
}

// Default returns the standard camera: 45° vertical field of view at 16:9,
// sitting at the origin and looking down -Z.
func Default(width, height int) View {
	return View{
		Projection: mgl64.Perspective(
			mgl64.DegToRad(astro.CameraVFOVDeg),
			astro.CameraAspectRatio,
			astro.CameraNearPlane,
			astro.CameraFarPlane,
		),
		View:     mgl64.Ident4(),
		Viewport: Rect{Width: width, Height: height},
	}
}

// LookAt returns a copy of v with its view matrix pointed from eye at center.
func (v View) LookAt(eye, center, up mgl64.Vec3) View {
	v.View = mgl64.LookAtV(eye, center, up)
	return v
}

// Project maps a world-space point to window coordinates; Z is the
// normalised depth in [0, 1] for points between the clip planes.
func (v View) Project(p mgl64.Vec3) mgl64.Vec3 {
	r := v.Viewport
	return mgl64.Project(p, v.View, v.Projection, r.X, r.Y, r.Width, r.Height)
}

// IsVisible reports whether p lands strictly inside the viewport and
// strictly between the near and far planes.
func IsVisible(p mgl64.Vec3, v View) bool {
	w := v.Project(p)
	r := v.Viewport
	return w.Z() > 0 && w.Z() < 1 &&
		w.X() > 0 && w.X() < float64(r.X+r.Width) &&
		w.Y() > 0 && w.Y() < float64(r.Y+r.Height)
}

// Cull returns the visible subset of points, preserving order.
func Cull(points []mgl64.Vec3, v View) []mgl64.Vec3 {
	visible := make([]mgl64.Vec3, 0, len(points))
	for _, p := range points {
		if IsVisible(p, v) {
			visible = append(visible, p)
		}
	}
	return visible
}
