package prcontext

import (
	"fmt"
	"strings"

	"github.com/waigani/diffparser"
)

// analyzePatch parses a single file's unified diff hunks and returns the
// changed-line count plus the set of new-file line numbers covered by the
// patch. GitHub's per-file patches carry bare hunks, so a synthetic file
// header is prepended for the parser.
func analyzePatch(path, patch string) (int, map[int]struct{}) {
	synthetic := fmt.Sprintf("diff --git a/%s b/%s\n--- a/%s\n+++ b/%s\n%s",
		path, path, path, path, patch)

	diff, err := diffparser.Parse(synthetic)
	if err != nil || len(diff.Files) == 0 {
		return countChangedLines(patch), nil
	}

	changed := 0
	newLines := make(map[int]struct{})
	for _, file := range diff.Files {
		for _, hunk := range file.Hunks {
			for _, line := range hunk.NewRange.Lines {
				newLines[line.Number] = struct{}{}
				if line.Mode == diffparser.ADDED {
					changed++
				}
			}
			for _, line := range hunk.OrigRange.Lines {
				if line.Mode == diffparser.REMOVED {
					changed++
				}
			}
		}
	}
	return changed, newLines
}

// countChangedLines is the fallback when the patch cannot be parsed: a plain
// count of added and removed lines with no inline anchoring.
func countChangedLines(patch string) int {
	changed := 0
	for _, line := range strings.Split(patch, "\n") {
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			changed++
		}
	}
	return changed
}

var generatedSuffixes = []string{
	".min.js",
	".min.css",
	".pb.go",
	"_gen.go",
	".generated.go",
	"go.sum",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"Cargo.lock",
	"poetry.lock",
	".svg",
	".map",
}

var generatedDirs = []string{
	"vendor/",
	"node_modules/",
	"dist/",
	"build/",
	".generated/",
}

// generatedFile reports whether a path looks machine-generated. Such files
// add noise without review value, so the truncation policy drops them first.
func generatedFile(path string) bool {
	for _, suffix := range generatedSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	for _, dir := range generatedDirs {
		if strings.HasPrefix(path, dir) || strings.Contains(path, "/"+dir) {
			return true
		}
	}
	return false
}
