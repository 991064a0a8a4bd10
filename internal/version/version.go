package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/tether"

// buildVersion is set via -ldflags "-X pkt.systems/tether/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running binary.
type Info struct {
	Module   string
	Version  string
	Revision string
	Modified bool
}

// String renders "module version", marking builds from a modified tree.
func (i Info) String() string {
	s := i.Module + " " + i.Version
	if i.Modified {
		s += " (modified)"
	}
	return s
}

// Read returns the build information of the running binary.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info, buildVersion)
}

// Current returns the best available version string.
func Current() string {
	return Read().Version
}

func fromBuildInfo(info *debug.BuildInfo, override string) Info {
	out := Info{Module: defaultModule, Version: "v0.0.0-unknown"}
	if info == nil {
		if v := strings.TrimSpace(override); v != "" {
			out.Version = v
		}
		return out
	}
	if path := strings.TrimSpace(info.Main.Path); path != "" {
		out.Module = path
	}
	var vcsTime string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.Revision = setting.Value
		case "vcs.time":
			vcsTime = setting.Value
		case "vcs.modified":
			out.Modified = setting.Value == "true"
		}
	}
	switch v := strings.TrimSpace(info.Main.Version); {
	case strings.TrimSpace(override) != "":
		out.Version = strings.TrimSpace(override)
	case v != "" && v != "(devel)":
		out.Version = v
	default:
		if pseudo := pseudoVersion(out.Revision, vcsTime); pseudo != "" {
			out.Version = pseudo
		}
	}
	out.Version = strings.TrimSuffix(out.Version, "+dirty")
	return out
}

// pseudoVersion formats a Go pseudo-version from VCS stamps.
func pseudoVersion(revision, vcsTime string) string {
	if revision == "" || vcsTime == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, vcsTime)
	if err != nil {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	return "v0.0.0-" + parsed.UTC().Format("20060102150405") + "-" + revision
}
