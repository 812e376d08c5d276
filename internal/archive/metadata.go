// Package archive writes the package archive formats produced by a
// build: .conda (zip of two zstd-compressed tars) and tar.bz2 (legacy)
// (spec §4.9).
package archive

import (
	"github.com/tidwall/sjson"
)

// IndexMeta is the subset of recipe/build-config data needed for
// info/index.json (spec §4.9).
type IndexMeta struct {
	Name          string
	Version       string
	BuildString   string
	BuildNumber   int
	Depends       []string
	Constrains    []string
	Subdir        string
	Platform      string
	Arch          string
	NoarchType    string // "" when not noarch
	Timestamp     int64
	License       string
	TrackFeatures []string
	Features      []string
}

// BuildIndexJSON serializes m into info/index.json's exact field set,
// built incrementally with sjson rather than a fixed struct tag set so
// that noarch is omitted cleanly when empty; list fields such as
// track_features and features are always written, as [] when empty.
func BuildIndexJSON(m IndexMeta) ([]byte, error) {
	json := "{}"
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		json, err = sjson.Set(json, path, value)
	}

	set("name", m.Name)
	set("version", m.Version)
	set("build", m.BuildString)
	set("build_number", m.BuildNumber)
	set("depends", stringsOrEmpty(m.Depends))
	set("constrains", stringsOrEmpty(m.Constrains))
	set("subdir", m.Subdir)
	set("platform", m.Platform)
	set("arch", m.Arch)
	set("timestamp", m.Timestamp)
	set("license", m.License)
	set("track_features", stringsOrEmpty(m.TrackFeatures))
	set("features", stringsOrEmpty(m.Features))
	if m.NoarchType != "" {
		set("noarch", m.NoarchType)
	}
	if err != nil {
		return nil, err
	}
	return []byte(json), nil
}

// AboutMeta is the subset of recipe About-section data needed for
// info/about.json (spec §4.9).
type AboutMeta struct {
	Homepage      []string
	Repository    string
	Documentation string
	License       string
	LicenseFamily string
	Summary       string
	Description   string
	Channels      []string
}

// BuildAboutJSON serializes m into info/about.json.
func BuildAboutJSON(m AboutMeta) ([]byte, error) {
	json := "{}"
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		json, err = sjson.Set(json, path, value)
	}

	set("home", stringsOrEmpty(m.Homepage))
	set("dev_url", m.Repository)
	set("doc_url", m.Documentation)
	set("license", m.License)
	set("license_family", m.LicenseFamily)
	set("summary", m.Summary)
	set("description", m.Description)
	set("channels", stringsOrEmpty(m.Channels))
	if err != nil {
		return nil, err
	}
	return []byte(json), nil
}

func stringsOrEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// RunExportsMeta mirrors recipe.Stage1RunExports for serialization,
// kept as its own type so archive does not import internal/recipe
// just for this one shape.
type RunExportsMeta struct {
	Strong           []string
	Weak             []string
	StrongConstrains []string
	WeakConstrains   []string
}

// BuildRunExportsJSON serializes m into info/run_exports.json. Returns
// nil, nil when every list is empty so callers can leave
// Package.RunExports unset rather than writing an empty-but-present
// manifest entry.
func BuildRunExportsJSON(m RunExportsMeta) ([]byte, error) {
	if len(m.Strong) == 0 && len(m.Weak) == 0 && len(m.StrongConstrains) == 0 && len(m.WeakConstrains) == 0 {
		return nil, nil
	}
	json := "{}"
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		json, err = sjson.Set(json, path, value)
	}
	set("strong", stringsOrEmpty(m.Strong))
	set("weak", stringsOrEmpty(m.Weak))
	set("strong_constrains", stringsOrEmpty(m.StrongConstrains))
	set("weak_constrains", stringsOrEmpty(m.WeakConstrains))
	if err != nil {
		return nil, err
	}
	return []byte(json), nil
}
