package lightbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var testGeometry = Geometry{BaseWidth: 1000, BaseHeight: 500, BoundsWidth: 800, BoundsHeight: 600}

func openViewer(t *testing.T) Viewer {
	t.Helper()
	v := New(testGeometry)
	require.True(t, v.Open("/media/a.png", "a"))
	return v
}

func TestOpenCloseReset(t *testing.T) {
	t.Parallel()

	v := New(testGeometry)
	require.False(t, v.Open("", "nothing"))
	require.False(t, v.Visible)

	v = openViewer(t)
	v.ZoomTo(3, 100, 100)
	require.True(t, v.Zoomed())

	v.Reset()
	require.Equal(t, 1.0, v.Scale)
	require.Zero(t, v.TX)
	require.Zero(t, v.TY)

	v.Close()
	require.False(t, v.Visible)
	require.Empty(t, v.Src)
}

func TestZoomKeepsFocalPoint(t *testing.T) {
	t.Parallel()

	v := openViewer(t)
	v.ZoomTo(2, 600, 300)
	require.Equal(t, 2.0, v.Scale)
	require.Equal(t, -200.0, v.TX)
	require.Equal(t, 0.0, v.TY)

	// The image-space point under the cursor is unchanged.
	cx := testGeometry.BoundsWidth/2 + v.TX
	require.Equal(t, 200.0, (600-cx)/v.Scale)
	require.Equal(t, "translate(-200px, 0px) scale(2)", v.Transform())
}

func TestZoomClampsScale(t *testing.T) {
	t.Parallel()

	v := openViewer(t)
	v.ZoomTo(10, 400, 300)
	require.Equal(t, MaxScale, v.Scale)

	v.ZoomTo(0.2, 0, 0)
	require.Equal(t, MinScale, v.Scale)
	require.Zero(t, v.TX, "translation resets at rest")
	require.Zero(t, v.TY)
}

func TestWheel(t *testing.T) {
	t.Parallel()

	v := openViewer(t)
	v.Wheel(1, 400, 300)
	require.Equal(t, 1.0, v.Scale, "cannot zoom out below 1")

	v.Wheel(-1, 400, 300)
	require.InDelta(t, 1.12, v.Scale, 1e-9)
	v.Wheel(-1, 400, 300)
	require.InDelta(t, 1.2544, v.Scale, 1e-9)
	v.Wheel(1, 400, 300)
	require.InDelta(t, 1.2544*0.88, v.Scale, 1e-9)

	closed := New(testGeometry)
	closed.Wheel(-1, 0, 0)
	require.Equal(t, 1.0, closed.Scale, "closed viewer ignores the wheel")
}

func TestToggleZoom(t *testing.T) {
	t.Parallel()

	v := openViewer(t)
	v.ToggleZoom(600, 300)
	require.Equal(t, 2.0, v.Scale)
	v.ToggleZoom(600, 300)
	require.Equal(t, 1.0, v.Scale)
	require.Zero(t, v.TX)
}

func TestDragOnlyWhenZoomed(t *testing.T) {
	t.Parallel()

	v := openViewer(t)
	require.False(t, v.BeginDrag(0, 0))
	v.DragTo(50, 50)
	require.Zero(t, v.TX)

	v.ZoomTo(2, 400, 300)
	require.True(t, v.BeginDrag(10, 10))
	v.DragTo(40, 30)
	require.Equal(t, 30.0, v.TX)
	require.Equal(t, 20.0, v.TY)

	v.DragTo(-2000, 2000)
	require.Equal(t, -600.0, v.TX, "(1000*2-800)/2")
	require.Equal(t, 200.0, v.TY, "(500*2-600)/2")

	v.EndDrag()
	v.DragTo(0, 0)
	require.Equal(t, -600.0, v.TX)
}

func TestClampWhenImageFits(t *testing.T) {
	t.Parallel()

	v := New(Geometry{BaseWidth: 100, BaseHeight: 100, BoundsWidth: 800, BoundsHeight: 600})
	require.True(t, v.Open("/a.png", ""))
	v.ZoomTo(4, 0, 0)
	require.Zero(t, v.TX, "a scaled image smaller than the bounds cannot move")
	require.Zero(t, v.TY)
}

func TestQueryRoundTrip(t *testing.T) {
	t.Parallel()

	v := openViewer(t)
	v.ZoomTo(2, 600, 300)

	q := v.Query()
	require.Equal(t, "2", q.Get("s"))
	require.Equal(t, "-200", q.Get("tx"))
	require.Equal(t, v, FromQuery(q))

	require.Empty(t, New(DefaultGeometry).Query(), "closed viewer has no parameters")
}

func TestFromQuerySanitises(t *testing.T) {
	t.Parallel()

	v := FromQuery(map[string][]string{"src": {"javascript:alert(1)"}, "s": {"2"}})
	require.False(t, v.Visible)

	v = FromQuery(map[string][]string{"src": {"/a.png"}, "s": {"9"}, "tx": {"5000"}, "w": {"-1"}})
	require.True(t, v.Visible)
	require.Equal(t, MaxScale, v.Scale)
	require.Equal(t, DefaultGeometry, v.Geometry)
	require.Equal(t, (960*4-960)/2.0, v.TX)

	v = FromQuery(map[string][]string{"src": {"/a.png"}, "tx": {"40"}, "s": {"nope"}})
	require.Equal(t, 1.0, v.Scale)
	require.Zero(t, v.TX, "no translation at rest")
}

func TestControls(t *testing.T) {
	t.Parallel()

	v := openViewer(t)
	c := v.Controls(80)
	require.False(t, c.CanPan)
	require.False(t, c.CanZoomOut)
	require.True(t, c.CanZoomIn)
	require.Equal(t, v, c.PanLeft, "panning at rest is a no-op")
	require.InDelta(t, 1.12, c.ZoomIn.Scale, 1e-9)
	require.Equal(t, 2.0, c.Toggle.Scale)
	require.False(t, c.Close.Visible)

	v.ZoomTo(2, 400, 300)
	c = v.Controls(80)
	require.True(t, c.CanPan)
	require.Equal(t, -80.0, c.PanLeft.TX)
	require.Equal(t, 80.0, c.PanDown.TY)
	require.False(t, c.PanLeft.Dragging)
	require.Equal(t, 1.0, c.Reset.Scale)
}
