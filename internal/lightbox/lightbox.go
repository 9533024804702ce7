// Package lightbox models the pan and zoom image viewer. A Viewer is a plain
// value: handlers decode it from the query string, apply one interaction and
// encode the result into the next link.
package lightbox

import (
	"math"
	"net/url"
	"strconv"

	"finitefield.org/sheetboard/internal/markup"
)

// Zoom limits and step factors.
const (
	MinScale      = 1.0
	MaxScale      = 4.0
	ZoomInFactor  = 1.12
	ZoomOutFactor = 0.88
)

// ZoomedAbove is the scale at which the image counts as zoomed. At or below
// it translation is reset and dragging is disabled.
const ZoomedAbove = 1.01

// Geometry is the viewer's layout: the image's unscaled rendered size and the
// overlay it is centred in.
type Geometry struct {
	BaseWidth    float64
	BaseHeight   float64
	BoundsWidth  float64
	BoundsHeight float64
}

// DefaultGeometry is used when the client has not reported its layout.
var DefaultGeometry = Geometry{BaseWidth: 960, BaseHeight: 640, BoundsWidth: 960, BoundsHeight: 640}

// State is the mutable part of the viewer.
type State struct {
	Visible  bool
	Src      string
	Alt      string
	Scale    float64
	TX       float64
	TY       float64
	Dragging bool
	LastX    float64
	LastY    float64
}

// Viewer pairs a State with its Geometry.
type Viewer struct {
	State
	Geometry Geometry
}

// New returns a closed viewer at rest.
func New(g Geometry) Viewer {
	return Viewer{State: State{Scale: MinScale}, Geometry: g}
}

// Open shows src at rest. It reports false, leaving v untouched, for an
// empty source.
func (v *Viewer) Open(src, alt string) bool {
	if src == "" {
		return false
	}
	v.Visible = true
	v.Src = src
	v.Alt = alt
	v.Reset()
	return true
}

// Close hides the viewer and clears the source.
func (v *Viewer) Close() {
	v.Visible = false
	v.Src = ""
	v.Alt = ""
	v.Reset()
}

// Reset returns to scale 1 with no translation.
func (v *Viewer) Reset() {
	v.Scale = MinScale
	v.TX = 0
	v.TY = 0
	v.Dragging = false
}

// ZoomTo changes the scale keeping the overlay point (px, py) fixed.
func (v *Viewer) ZoomTo(next, px, py float64) {
	if v.Scale <= 0 {
		v.Scale = MinScale
	}
	clamped := math.Min(MaxScale, math.Max(MinScale, next))
	ratio := clamped / v.Scale
	if ratio == 1 {
		return
	}
	cx := v.Geometry.BoundsWidth/2 + v.TX
	cy := v.Geometry.BoundsHeight/2 + v.TY
	v.TX -= (px - cx) * (ratio - 1)
	v.TY -= (py - cy) * (ratio - 1)
	v.Scale = clamped
	if v.Scale <= ZoomedAbove {
		v.TX = 0
		v.TY = 0
	}
	v.Clamp()
}

// Wheel zooms one notch: out for a positive deltaY, in otherwise.
func (v *Viewer) Wheel(deltaY, px, py float64) {
	if !v.Visible {
		return
	}
	factor := ZoomInFactor
	if deltaY > 0 {
		factor = ZoomOutFactor
	}
	v.ZoomTo(v.Scale*factor, px, py)
}

// ToggleZoom switches between 1x and 2x around (px, py).
func (v *Viewer) ToggleZoom(px, py float64) {
	if !v.Visible {
		return
	}
	target := 2.0
	if v.Scale > 1 {
		target = 1
	}
	v.ZoomTo(target, px, py)
}

// BeginDrag starts a drag at (x, y). Dragging needs a zoomed, open viewer.
func (v *Viewer) BeginDrag(x, y float64) bool {
	if !v.Visible || !v.Zoomed() {
		return false
	}
	v.Dragging = true
	v.LastX = x
	v.LastY = y
	return true
}

// DragTo pans by the movement since the last pointer position.
func (v *Viewer) DragTo(x, y float64) {
	if !v.Dragging {
		return
	}
	v.TX += x - v.LastX
	v.TY += y - v.LastY
	v.LastX = x
	v.LastY = y
	v.Clamp()
}

// EndDrag stops dragging.
func (v *Viewer) EndDrag() {
	v.Dragging = false
}

// Clamp keeps the scaled image from being panned past the overlay edges.
func (v *Viewer) Clamp() {
	maxX := math.Max(0, (v.Geometry.BaseWidth*v.Scale-v.Geometry.BoundsWidth)/2)
	maxY := math.Max(0, (v.Geometry.BaseHeight*v.Scale-v.Geometry.BoundsHeight)/2)
	v.TX = math.Min(maxX, math.Max(-maxX, v.TX))
	v.TY = math.Min(maxY, math.Max(-maxY, v.TY))
}

// Zoomed reports whether the scale is above ZoomedAbove.
func (v Viewer) Zoomed() bool {
	return v.Scale > ZoomedAbove
}

// Transform is the CSS transform for the current state.
func (v Viewer) Transform() string {
	return "translate(" + num(v.TX) + "px, " + num(v.TY) + "px) scale(" + num(v.Scale) + ")"
}

// Pan moves the image by (dx, dy) as a single drag gesture.
func (v *Viewer) Pan(dx, dy float64) {
	if !v.BeginDrag(0, 0) {
		return
	}
	v.DragTo(dx, dy)
	v.EndDrag()
}

// Controls are the states reached from v by each viewer button.
type Controls struct {
	ZoomIn, ZoomOut, Toggle, Reset, Close Viewer
	PanLeft, PanRight, PanUp, PanDown     Viewer
	CanZoomIn, CanZoomOut, CanPan         bool
}

// Controls computes the next state of every control. Zooming is centred on
// the overlay; panning moves by step pixels.
func (v Viewer) Controls(step float64) Controls {
	cx, cy := v.Geometry.BoundsWidth/2, v.Geometry.BoundsHeight/2
	c := Controls{
		ZoomIn:     v,
		ZoomOut:    v,
		Toggle:     v,
		Reset:      v,
		Close:      v,
		PanLeft:    v,
		PanRight:   v,
		PanUp:      v,
		PanDown:    v,
		CanZoomIn:  v.Scale < MaxScale,
		CanZoomOut: v.Scale > MinScale,
		CanPan:     v.Zoomed(),
	}
	c.ZoomIn.Wheel(-1, cx, cy)
	c.ZoomOut.Wheel(1, cx, cy)
	c.Toggle.ToggleZoom(cx, cy)
	c.Reset.Reset()
	c.Close.Close()
	c.PanLeft.Pan(-step, 0)
	c.PanRight.Pan(step, 0)
	c.PanUp.Pan(0, -step)
	c.PanDown.Pan(0, step)
	return c
}

// Query parameter names.
const (
	paramSrc    = "src"
	paramAlt    = "alt"
	paramScale  = "s"
	paramTX     = "tx"
	paramTY     = "ty"
	paramWidth  = "w"
	paramHeight = "h"
	paramBoundW = "bw"
	paramBoundH = "bh"
)

// Query encodes the viewer. A closed viewer encodes to no parameters.
func (v Viewer) Query() url.Values {
	q := url.Values{}
	if !v.Visible {
		return q
	}
	q.Set(paramSrc, v.Src)
	if v.Alt != "" {
		q.Set(paramAlt, v.Alt)
	}
	if v.Scale != MinScale {
		q.Set(paramScale, num(round(v.Scale)))
	}
	if v.TX != 0 {
		q.Set(paramTX, num(round(v.TX)))
	}
	if v.TY != 0 {
		q.Set(paramTY, num(round(v.TY)))
	}
	if v.Geometry != DefaultGeometry {
		q.Set(paramWidth, num(v.Geometry.BaseWidth))
		q.Set(paramHeight, num(v.Geometry.BaseHeight))
		q.Set(paramBoundW, num(v.Geometry.BoundsWidth))
		q.Set(paramBoundH, num(v.Geometry.BoundsHeight))
	}
	return q
}

// FromQuery decodes a viewer. Unusable values fall back to defaults, an
// unsafe source leaves the viewer closed, and the result is clamped.
func FromQuery(q url.Values) Viewer {
	v := New(geometryFromQuery(q))
	if !v.Open(markup.SafeURL(q.Get(paramSrc)), q.Get(paramAlt)) {
		return v
	}
	if s, ok := parseNum(q.Get(paramScale)); ok {
		v.Scale = math.Min(MaxScale, math.Max(MinScale, s))
	}
	if v.Zoomed() {
		v.TX, _ = parseNum(q.Get(paramTX))
		v.TY, _ = parseNum(q.Get(paramTY))
	}
	v.Clamp()
	return v
}

func geometryFromQuery(q url.Values) Geometry {
	g := DefaultGeometry
	set := func(dst *float64, key string) {
		if n, ok := parseNum(q.Get(key)); ok && n > 0 {
			*dst = n
		}
	}
	set(&g.BaseWidth, paramWidth)
	set(&g.BaseHeight, paramHeight)
	set(&g.BoundsWidth, paramBoundW)
	set(&g.BoundsHeight, paramBoundH)
	return g
}

func parseNum(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func num(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
