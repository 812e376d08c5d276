package pipeline

import (
	"os"
	"path/filepath"

	"github.com/condaforge/condabuild/internal/archive"
	"github.com/condaforge/condabuild/internal/buildconfig"
	"github.com/condaforge/condabuild/internal/capture"
	"github.com/condaforge/condabuild/internal/prefix"
	"github.com/condaforge/condabuild/internal/recipe"
)

// buildArchivePackage assembles the archive.Package and resolves the
// final build string for one built variant (spec §4.9).
func buildArchivePackage(cfg *buildconfig.Config, stage1 *recipe.Stage1Recipe, entries []capture.Entry, placeholders map[string]*prefix.Placeholder, opts Options) (archive.Package, string, error) {
	buildString := stage1.BuildString
	if buildString == "" {
		buildString = buildconfig.BuildString(cfg.VariantHash, stage1.BuildNumber)
	}

	noarchType := ""
	if stage1.NoarchPython {
		noarchType = "python"
	}
	platform, arch := splitPlatform(string(cfg.TargetPlatform))
	subdir := string(cfg.TargetPlatform)
	if noarchType != "" {
		subdir = "noarch"
	}

	indexJSON, err := archive.BuildIndexJSON(archive.IndexMeta{
		Name:        stage1.PackageName,
		Version:     stage1.PackageVersion,
		BuildString: buildString,
		BuildNumber: stage1.BuildNumber,
		Depends:     stage1.RunDeps,
		Constrains:  stage1.RunConstraints,
		Subdir:      subdir,
		Platform:    platform,
		Arch:        arch,
		NoarchType:  noarchType,
		Timestamp:   cfg.Timestamp,
		License:     stage1.License,
	})
	if err != nil {
		return archive.Package{}, buildString, err
	}

	aboutJSON, err := archive.BuildAboutJSON(archive.AboutMeta{
		Homepage:      splitNonEmpty(stage1.Homepage),
		License:       stage1.License,
		Summary:       stage1.Summary,
		Description:   stage1.Description,
		Channels:      opts.Channels,
	})
	if err != nil {
		return archive.Package{}, buildString, err
	}

	pathEntries, err := archive.BuildPathEntries(entries, placeholders)
	if err != nil {
		return archive.Package{}, buildString, err
	}
	pathsJSON, err := archive.BuildPathsJSON(pathEntries)
	if err != nil {
		return archive.Package{}, buildString, err
	}

	runExportsJSON, err := archive.BuildRunExportsJSON(archive.RunExportsMeta{
		Strong:           stage1.RunExports.Strong,
		Weak:             stage1.RunExports.Weak,
		StrongConstrains: stage1.RunExports.StrongConstrains,
		WeakConstrains:   stage1.RunExports.WeakConstrains,
	})
	if err != nil {
		return archive.Package{}, buildString, err
	}

	testsYAML, err := archive.BuildTestsYAML(stage1.Tests)
	if err != nil {
		return archive.Package{}, buildString, err
	}

	var recipeFiles map[string][]byte
	if cfg.StoreRecipe {
		recipeFiles, err = collectRecipeFiles(cfg.RecipeDir)
		if err != nil {
			return archive.Package{}, buildString, err
		}
	}

	payloadFiles := make([]archive.PayloadFile, 0, len(entries))
	for _, e := range entries {
		switch e.ContentType {
		case capture.ContentSymlink:
			payloadFiles = append(payloadFiles, archive.PayloadFile{
				RelPath:    e.RelPath,
				PathType:   "softlink",
				LinkTarget: e.LinkTarget,
			})
		default:
			info, statErr := os.Stat(e.SourcePath)
			mode := os.FileMode(0o644)
			if statErr == nil {
				mode = info.Mode()
			}
			payloadFiles = append(payloadFiles, archive.PayloadFile{
				RelPath:    e.RelPath,
				SourcePath: e.SourcePath,
				PathType:   "hardlink",
				Mode:       mode,
			})
		}
	}

	pkg := archive.Package{
		IndexJSON:    indexJSON,
		AboutJSON:    aboutJSON,
		PathsJSON:    pathsJSON,
		RunExports:   runExportsJSON,
		TestsYAML:    testsYAML,
		RecipeFiles:  recipeFiles,
		PayloadFiles: payloadFiles,
		ZstdLevel:    cfg.ZstdLevel,
		Timestamp:    cfg.Timestamp,
	}
	return pkg, buildString, nil
}

// writeArchive writes pkg to its final location under
// <OutputDir>/<subdir>/<name>-<version>-<buildString>.<ext>, creating
// the subdir directory as needed (spec §4.9 package filename layout).
func writeArchive(cfg *buildconfig.Config, stage1 *recipe.Stage1Recipe, buildString string, pkg archive.Package, opts Options) (string, error) {
	subdir := string(cfg.TargetPlatform)
	if stage1.NoarchPython {
		subdir = "noarch"
	}
	dir := filepath.Join(cfg.OutputDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := stage1.PackageName + "-" + stage1.PackageVersion + "-" + buildString
	if cfg.ArchiveFormat == buildconfig.FormatTarBz2 {
		outPath := filepath.Join(dir, name+".tar.bz2")
		return outPath, archive.WriteTarBz2(outPath, pkg)
	}

	outPath := filepath.Join(dir, name+".conda")
	return outPath, archive.WriteConda(outPath, name, pkg)
}

func collectRecipeFiles(dir string) (map[string][]byte, error) {
	files := map[string][]byte{}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
