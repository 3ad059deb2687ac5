package version

import (
	"testing"

	"github.com/fatih/color"
)

func override(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	Version, GitCommit, BuildDate = v, commit, date
	t.Cleanup(func() { Version, GitCommit, BuildDate = origVersion, origCommit, origDate })
}

func TestLine_OptionalFields(t *testing.T) {
	override(t, "1.2.3", "", "")
	if got := Line(false); got != "shade 1.2.3" {
		t.Errorf("Line = %q", got)
	}
	override(t, "1.2.3-rc.1", "abc123", "2024-01-15")
	if got := Line(false); got != "shade 1.2.3-rc.1 (abc123) built 2024-01-15" {
		t.Errorf("Line = %q", got)
	}
}

func TestColored_KeepsText(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })

	for _, v := range []string{"0.1.0-dev", "1.0.0", "1.2.3-rc.1+build.123", "nightly"} {
		override(t, v, "", "")
		if got := Colored(); got != v {
			t.Errorf("Colored(%q) = %q", v, got)
		}
	}
}
