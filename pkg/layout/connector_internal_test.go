package layout

import "testing"

func TestConnectorPathShapes(t *testing.T) {
	tests := []struct {
		name     string
		start    Point
		end      Point
		radius   float64
		wantDir  Direction
		wantR    float64
		wantPath string
	}{
		{
			name: "straight", start: Point{50, 10}, end: Point{50, 40}, radius: 10,
			wantDir: Straight, wantR: 0, wantPath: "M 50 10 V 40",
		},
		{
			name: "right", start: Point{0, 0}, end: Point{100, 40}, radius: 10,
			wantDir: BendRight, wantR: 10,
			wantPath: "M 0 0 V 10 Q 0 20 10 20 H 90 Q 100 20 100 30 V 40",
		},
		{
			name: "narrow_dx", start: Point{0, 0}, end: Point{-6, 40}, radius: 10,
			wantDir: BendLeft, wantR: 3,
			wantPath: "M 0 0 V 17 Q 0 20 -3 20 H -3 Q -6 20 -6 23 V 40",
		},
		{
			name: "zero_radius", start: Point{0, 0}, end: Point{20, 10}, radius: 0,
			wantDir: BendRight, wantR: 0,
			wantPath: "M 0 0 V 5 Q 0 5 0 5 H 20 Q 20 5 20 5 V 10",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, r, path := connectorPath(tt.start, tt.end, tt.radius)
			if dir != tt.wantDir {
				t.Errorf("direction = %v, want %v", dir, tt.wantDir)
			}
			if r != tt.wantR {
				t.Errorf("radius = %g, want %g", r, tt.wantR)
			}
			if path != tt.wantPath {
				t.Errorf("path\n got: %s\nwant: %s", path, tt.wantPath)
			}
		})
	}
}

func TestDirectionText(t *testing.T) {
	for d, want := range map[Direction]string{Straight: "straight", BendLeft: "left", BendRight: "right"} {
		b, _ := d.MarshalText()
		if string(b) != want {
			t.Errorf("%d.MarshalText() = %s, want %s", d, b, want)
		}
	}
}
