// Package astro provides photometry and the sky/camera constants the star
// field generators are calibrated against.
package astro

import "math"

// Camera field of view. The horizontal field is the vertical one scaled by
// the aspect ratio, matching how the angular area is normalised in the
// surface brightness tables.
const (
	CameraAspectRatio = 16.0 / 9.0
	CameraNearPlane   = 0.1
	CameraFarPlane    = 1e6
	CameraVFOVDeg     = 45.0
	CameraHFOVDeg     = CameraAspectRatio * CameraVFOVDeg

	// CameraAreaSqDeg is the angular sky area covered by the camera.
	CameraAreaSqDeg = CameraVFOVDeg * CameraHFOVDeg
	// CameraAreaSqArcsec is CameraAreaSqDeg in square arcseconds.
	CameraAreaSqArcsec = CameraAreaSqDeg * 3600 * 3600
)

// Stellar population parameters.
const (
	StellarDensity          = 100.0 // cubic parsecs per star
	StellarRadius           = 1.0
	AbsoluteVisualMagnitude = 4.83 // solar
)

// ClusterCenterDistance is how far in front of the camera the fractal
// cluster center sits.
const ClusterCenterDistance = CameraVFOVDeg / CameraAspectRatio

// CameraData describes the camera's sky coverage for table headers.
type CameraData struct {
	HFOVDeg      float64 `json:"hfov_deg"`
	VFOVDeg      float64 `json:"vfov_deg"`
	AreaSqDeg    float64 `json:"area_sq_deg"`
	AreaSqArcsec float64 `json:"area_sq_arcsec"`
}

// DefaultCameraData returns the coverage of the default camera.
func DefaultCameraData() CameraData {
	return CameraData{
		HFOVDeg:      CameraHFOVDeg,
		VFOVDeg:      CameraVFOVDeg,
		AreaSqDeg:    CameraAreaSqDeg,
		AreaSqArcsec: CameraAreaSqArcsec,
	}
}

// FrustumSolidAngle returns the solid angle in steradians of a rectangular
// pyramid with the given full horizontal and vertical opening angles.
func FrustumSolidAngle(hfovDeg, vfovDeg float64) float64 {
	a := DegToRad(hfovDeg / 2)
	b := DegToRad(vfovDeg / 2)
	return 4 * math.Asin(math.Sin(a)*math.Sin(b))
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
