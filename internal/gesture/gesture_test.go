package gesture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/tree"
)

func fixture(t *testing.T) (Classifier, *tree.Index) {
	t.Helper()
	parent := "P"
	ix := tree.FromNotes([]models.Note{
		{ID: "P", Title: "P"},
		{ID: "C", Title: "C", ParentID: &parent},
		{ID: "R", Title: "R", Position: 1},
	})
	return Classifier{
		Thresholds: DefaultThresholds(),
		Container:  Rect{Left: 0, Top: 0, Width: 300, Height: 600},
		Parents:    ix,
	}, ix
}

func node(t *testing.T, ix *tree.Index, id string) *tree.Node {
	t.Helper()
	n, ok := ix.Node(id)
	require.True(t, ok)
	return n
}

func TestClassifyVerticalZones(t *testing.T) {
	c, ix := fixture(t)
	row := &Rect{Left: 0, Top: 100, Width: 300, Height: 20}
	start := Point{X: 150, Y: 50}
	r := node(t, ix, "R")

	cases := []struct {
		y    float64
		want Position
	}{
		{100, Before},
		{106.9, Before},
		{107, Before},
		{107.1, On},
		{112.9, On},
		{113.1, After},
		{119.9, After},
	}
	for _, tc := range cases {
		got, ok := c.Classify(Point{X: 150, Y: tc.y}, start, r, row)
		require.True(t, ok)
		assert.Equal(t, DropTarget{TargetID: "R", Position: tc.want}, got, "y=%v", tc.y)
	}
}

func TestClassifyZoneEdgesBelongToBands(t *testing.T) {
	c, ix := fixture(t)
	c.Thresholds.ZoneBand = 0.25
	row := &Rect{Left: 0, Top: 100, Width: 300, Height: 20}
	start := Point{X: 150, Y: 50}
	r := node(t, ix, "R")

	got, ok := c.Classify(Point{X: 150, Y: 105}, start, r, row)
	require.True(t, ok)
	assert.Equal(t, Before, got.Position, "upper band edge")

	got, ok = c.Classify(Point{X: 150, Y: 115}, start, r, row)
	require.True(t, ok)
	assert.Equal(t, After, got.Position, "lower band edge")

	got, _ = c.Classify(Point{X: 150, Y: 110}, start, r, row)
	assert.Equal(t, On, got.Position)
}

func TestClassifyNilRectIsOn(t *testing.T) {
	c, ix := fixture(t)
	got, ok := c.Classify(Point{X: 150, Y: 10}, Point{X: 150, Y: 10}, node(t, ix, "R"), nil)
	require.True(t, ok)
	assert.Equal(t, On, got.Position)
}

func TestClassifyRootMargin(t *testing.T) {
	c, ix := fixture(t)
	row := &Rect{Top: 0, Height: 20, Width: 300}
	got, ok := c.Classify(Point{X: 63, Y: 1}, Point{X: 80, Y: 1}, node(t, ix, "C"), row)
	require.True(t, ok)
	assert.True(t, got.IsRoot())

	got, _ = c.Classify(Point{X: 65, Y: 1}, Point{X: 80, Y: 1}, node(t, ix, "C"), row)
	assert.False(t, got.IsRoot())
}

func TestClassifyRootOffsetWithoutHover(t *testing.T) {
	c, _ := fixture(t)
	got, ok := c.Classify(Point{X: 120, Y: 10}, Point{X: 240, Y: 10}, nil, nil)
	require.True(t, ok)
	assert.Equal(t, DropTarget{TargetID: RootID, Position: On}, got)
}

func TestClassifyNothingHovered(t *testing.T) {
	c, _ := fixture(t)
	_, ok := c.Classify(Point{X: 150, Y: 10}, Point{X: 150, Y: 10}, nil, nil)
	assert.False(t, ok)
}

func TestClassifyIndentOverridesZone(t *testing.T) {
	c, ix := fixture(t)
	row := &Rect{Top: 0, Height: 20, Width: 300}
	got, ok := c.Classify(Point{X: 200, Y: 1}, Point{X: 150, Y: 1}, node(t, ix, "R"), row)
	require.True(t, ok)
	assert.Equal(t, DropTarget{TargetID: "R", Position: On}, got)
}

func TestClassifyOutdent(t *testing.T) {
	c, ix := fixture(t)
	row := &Rect{Top: 0, Height: 20, Width: 300}

	got, ok := c.Classify(Point{X: 150, Y: 10}, Point{X: 200, Y: 10}, node(t, ix, "C"), row)
	require.True(t, ok)
	assert.Equal(t, DropTarget{TargetID: "P", Position: After}, got)

	// A root has no parent to outdent to, so the vertical zone applies.
	got, _ = c.Classify(Point{X: 150, Y: 1}, Point{X: 200, Y: 1}, node(t, ix, "R"), row)
	assert.Equal(t, DropTarget{TargetID: "R", Position: Before}, got)
}

func TestClassifyIsPure(t *testing.T) {
	c, ix := fixture(t)
	row := &Rect{Top: 40, Height: 24, Width: 300}
	over := node(t, ix, "C")
	first, _ := c.Classify(Point{X: 170, Y: 50}, Point{X: 150, Y: 0}, over, row)
	for i := 0; i < 10; i++ {
		again, _ := c.Classify(Point{X: 170, Y: 50}, Point{X: 150, Y: 0}, over, row)
		assert.Equal(t, first, again)
	}
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())

	th := DefaultThresholds()
	th.Indent = 120
	assert.Error(t, th.Validate())

	th = DefaultThresholds()
	th.ZoneBand = 0.5
	assert.Error(t, th.Validate())
}
