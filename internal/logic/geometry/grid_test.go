package geometry

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGrid_RowMajorOrder(t *testing.T) {
	got := Grid(2, 2)
	want := []NormRect{
		{0, 0, 0.5, 0.5}, {0.5, 0, 0.5, 0.5},
		{0, 0.5, 0.5, 0.5}, {0.5, 0.5, 0.5, 0.5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Grid(2, 2) mismatch (-want +got):\n%s", diff)
	}
}

func TestGrid_ClampsToOneCell(t *testing.T) {
	got := Grid(0, -3)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0] != (NormRect{0, 0, 1, 1}) {
		t.Errorf("cell = %+v, want full canvas", got[0])
	}
}

func TestCalculateSlotPlan_ThreeBands(t *testing.T) {
	plan := CalculateSlotPlan(1080, 1350, Grid(1, 3))
	want := []image.Rectangle{
		image.Rect(0, 0, 1080, 450),
		image.Rect(0, 450, 1080, 900),
		image.Rect(0, 900, 1080, 1350),
	}
	if diff := cmp.Diff(want, plan.Slots); diff != "" {
		t.Errorf("slots mismatch (-want +got):\n%s", diff)
	}
	if plan.Bounds() != image.Rect(0, 0, 1080, 1350) {
		t.Errorf("Bounds = %v", plan.Bounds())
	}
}

// Adjacent cells must tile the canvas exactly even when the size does not
// divide evenly.
func TestCalculateSlotPlan_TilesWithoutGaps(t *testing.T) {
	plan := CalculateSlotPlan(1001, 997, Grid(3, 3))
	area := 0
	for i, a := range plan.Slots {
		area += a.Dx() * a.Dy()
		for j, b := range plan.Slots {
			if i != j && !a.Intersect(b).Empty() {
				t.Errorf("slots %d %v and %d %v overlap", i, a, j, b)
			}
		}
	}
	if area != 1001*997 {
		t.Errorf("covered area = %d, want %d", area, 1001*997)
	}
}
