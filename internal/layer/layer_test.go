package layer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/popgrid/internal/geometry"
)

func point(x, y float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(2154)
}

func TestLayer_Add(t *testing.T) {
	l := New("poi", KindPOI, 2154)
	f0 := l.Add(point(1, 2), Attrs{"type": Text("school")})
	f1 := l.Add(point(3, 4), nil)

	assert.Equal(t, 0, f0.Index)
	assert.Equal(t, 1, f1.Index)
	assert.Equal(t, 2, l.Len())
	assert.NotNil(t, f1.Attrs)

	var nilLayer *Layer
	assert.Zero(t, nilLayer.Len())
}

func TestLayer_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		l := New("establishments", KindEstablishments, 2154)
		l.Add(point(1, 2), Attrs{"naf": Text("47.11F"), "tranche": Text("03")})
		require.NoError(t, l.Validate())
	})

	t.Run("missing required key", func(t *testing.T) {
		l := New("poi", KindPOI, 2154)
		l.Add(point(1, 2), Attrs{"tag": Text("amenity")})
		err := l.Validate()
		require.Error(t, err)

		var ae *AttributeError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, KindPOI, ae.Kind)
		assert.Equal(t, "type", ae.Key)
	})

	t.Run("non-numeric height", func(t *testing.T) {
		l := New("buildings", KindBuildings, 2154)
		l.Add(geometry.Rect{MaxX: 10, MaxY: 10}.Polygon(2154), Attrs{"height": Text("tall")})
		var ae *AttributeError
		require.True(t, errors.As(l.Validate(), &ae))
		assert.Equal(t, 0, ae.Feature)
		assert.Equal(t, "tall", ae.Got)
	})

	t.Run("missing optional height", func(t *testing.T) {
		l := New("buildings", KindBuildings, 2154)
		l.Add(geometry.Rect{MaxX: 10, MaxY: 10}.Polygon(2154), Attrs{"height": Missing()})
		require.NoError(t, l.Validate())
	})

	t.Run("geographic layer", func(t *testing.T) {
		l := New("poi", KindPOI, 4326)
		l.Add(point(2.3, 48.8), Attrs{"type": Text("school")})
		var ige *geometry.InvalidGeometryError
		require.True(t, errors.As(l.Validate(), &ige))
	})

	t.Run("line in building layer", func(t *testing.T) {
		l := New("buildings", KindBuildings, 2154)
		l.Add(geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1}), nil)
		var ige *geometry.InvalidGeometryError
		require.True(t, errors.As(l.Validate(), &ige))
	})
}

func TestAttrs_Float(t *testing.T) {
	a := Attrs{
		"n":     Number(12.5),
		"s":     Text("7"),
		"comma": Text("3,5"),
		"bad":   Text("n/a"),
		"blank": Missing(),
	}

	v, ok, err := a.Float("n")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 12.5, v, 1e-12)

	v, ok, err = a.Float("s")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 7.0, v, 1e-12)

	v, _, err = a.Float("comma")
	require.NoError(t, err)
	assert.InDelta(t, 3.5, v, 1e-12)

	_, ok, err = a.Float("blank")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = a.Float("absent")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = a.Float("bad")
	var ae *AttributeError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "bad", ae.Key)
}

func TestParse(t *testing.T) {
	assert.Equal(t, Missing(), Parse("  "))
	assert.Equal(t, Missing(), Parse("\x00\x00"))
	assert.Equal(t, Text("12"), Parse(" 12\x00"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "siege", Fold("Siège "))
	assert.Equal(t, Fold("école"), Fold("ECOLE"))
	assert.Equal(t, "cafe", Fold("café"))
}
