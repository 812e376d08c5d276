package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"

	"github.com/condaforge/condabuild/internal/recipe"
)

// testYAMLEntry mirrors one conda recipe test entry as written into
// info/tests/tests.yaml: a Commands-style test carries script, the
// module imports it checks, and any files staged alongside it (spec
// §4.9 "Tests carried in the package").
//
// PackageContents-type tests are executed only at build time and are
// never written here (spec §4.9's explicit carve-out); this module's
// recipe.Stage1Test shape has no PackageContents discriminator yet, so
// every test reaching this function is treated as a Commands test.
type testYAMLEntry struct {
	Script  []string `yaml:"script,omitempty"`
	Imports []string `yaml:"imports,omitempty"`
	Files   []string `yaml:"files,omitempty"`
}

// BuildTestsYAML serializes a recipe's already stage-1-evaluated test
// block to YAML verbatim, for writing into info/tests/tests.yaml. The
// script body is not re-rendered here: recipe.Eval already rendered
// every template against the build's variant (spec §4.9 "the script
// body is pre-rendered through the template engine so consumers need
// no template runtime"; spec §9 Open Question "whether test-script
// bodies should be re-rendered at install time" is decided against,
// see DESIGN.md). Returns nil, nil when tests is empty so callers can
// leave Package.TestsYAML unset.
func BuildTestsYAML(tests []recipe.Stage1Test) ([]byte, error) {
	if len(tests) == 0 {
		return nil, nil
	}
	entries := make([]testYAMLEntry, len(tests))
	for i, t := range tests {
		entries[i] = testYAMLEntry{Script: t.Script, Imports: t.Imports, Files: t.Files}
	}
	return yaml.Marshal(entries)
}

// StageTestFiles copies every file under recipeDir matching one of a
// Commands test's files.source/files.recipe glob selections into
// destDir (conventionally
// etc/conda/test-files/<output-name>/<test-index>/), for the archive
// payload to carry alongside the recipe's pre-rendered test script
// (spec §4.9 "matching files are copied into
// etc/conda/test-files/<name>/<idx>/; the test's cwd is set to that
// directory").
func StageTestFiles(recipeDir, destDir string, globs []string) ([]string, error) {
	if len(globs) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}

	var staged []string
	for _, g := range globs {
		matches, err := doublestar.Glob(os.DirFS(recipeDir), g)
		if err != nil {
			return nil, fmt.Errorf("archive: invalid test file glob %q: %w", g, err)
		}
		for _, m := range matches {
			src := filepath.Join(recipeDir, m)
			info, err := os.Stat(src)
			if err != nil || info.IsDir() {
				continue
			}
			dst := filepath.Join(destDir, m)
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return nil, err
			}
			if err := copyFile(src, dst); err != nil {
				return nil, err
			}
			staged = append(staged, m)
		}
	}
	return staged, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}

// TestFilesDir returns the conventional staging directory for a
// Commands test's files selection: etc/conda/test-files/<name>/<idx>/
// (spec §4.9), used as the destination for StageTestFiles. tests.yaml
// does not record it: its entries carry no cwd field.
func TestFilesDir(outputName string, testIndex int) string {
	return filepath.Join("etc", "conda", "test-files", outputName, fmt.Sprintf("%d", testIndex))
}
