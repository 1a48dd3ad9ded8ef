package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func withVersion(t *testing.T, version, commit string) {
	t.Helper()
	oldVersion, oldCommit := Version, Commit
	Version, Commit = version, commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })
}

func TestApply(t *testing.T) {
	withVersion(t, "", "")

	apply(&debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	if Version != "v1.4.0" {
		t.Errorf("Version = %q", Version)
	}
	if Commit != "0123456-dirty" {
		t.Errorf("Commit = %q", Commit)
	}
}

func TestApply_KeepsLdflags(t *testing.T) {
	withVersion(t, "v2.0.0", "feedbee")

	apply(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}},
	})

	if Version != "v2.0.0" || Commit != "feedbee" {
		t.Errorf("ldflags values overwritten: %s %s", Version, Commit)
	}
}

func TestApply_DevelBuild(t *testing.T) {
	withVersion(t, "", "")
	apply(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

	if Version != "" || Commit != "" {
		t.Errorf("devel build should leave values for the fallback: %q %q", Version, Commit)
	}
}

func TestUserAgent(t *testing.T) {
	withVersion(t, "v1.2.3", "abc")
	if got := UserAgent(); got != "salusconnect/1.2.3" {
		t.Errorf("UserAgent() = %q", got)
	}
	if !strings.Contains(Full(), "commit: abc") {
		t.Errorf("Full() = %q", Full())
	}
}
