package guide

import (
	"strings"
	"testing"

	"github.com/csheth/loopmind/internal/feed"
)

func TestBuildTailorsToDepth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		depth feed.Depth
		want  string
	}{
		{"beginner", feed.DepthBeginner, "Come back tomorrow"},
		{"intermediate", feed.DepthIntermediate, "Connect the cards"},
		{"advanced", feed.DepthAdvanced, "Challenge the material"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			steps := Build(Metadata{Title: "Creatine", Depth: tt.depth, CardCount: 12})
			if len(steps) != 4 {
				t.Fatalf("got %d steps, want 4", len(steps))
			}
			last := steps[len(steps)-1]
			if last.Title != tt.want {
				t.Fatalf("final step = %q, want %q", last.Title, tt.want)
			}
		})
	}
}

func TestBuildFallsBackWithoutTitleOrCount(t *testing.T) {
	t.Parallel()

	steps := Build(Metadata{})
	if len(steps) == 0 {
		t.Fatal("expected steps")
	}
	if !strings.Contains(steps[0].Description, "the cards") {
		t.Fatalf("expected generic card label, got %q", steps[0].Description)
	}
	if !strings.Contains(steps[0].Description, "this topic") {
		t.Fatalf("expected generic title, got %q", steps[0].Description)
	}
}
