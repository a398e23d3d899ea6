package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// validatePath resolves requestedPath to an absolute path and verifies it
// falls under one of the allowed roots. Symlinks are resolved before the
// check so a link cannot escape the sandbox; for paths that do not exist
// yet, the parent directory is checked instead.
func validatePath(requestedPath string, allowedRoots []string) (string, error) {
	expanded := os.ExpandEnv(filepath.FromSlash(requestedPath))

	absolute, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}

	if !underAnyRoot(filepath.Clean(absolute), allowedRoots) {
		return "", fmt.Errorf("access denied - path %s outside allowed directories %s",
			requestedPath, strings.Join(allowedRoots, ", "))
	}

	realPath, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}

		// The target does not exist yet; its parent must.
		parentDir := filepath.Dir(absolute)
		realParent, err := filepath.EvalSymlinks(parentDir)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("access denied - parent directory %s does not exist", parentDir)
			}
			return "", err
		}

		if !underAnyRoot(filepath.Clean(realParent), allowedRoots) {
			return "", fmt.Errorf("access denied - parent directory %s outside allowed directories %s",
				parentDir, strings.Join(allowedRoots, ", "))
		}

		return absolute, nil
	}

	if !underAnyRoot(filepath.Clean(realPath), allowedRoots) {
		return "", fmt.Errorf("access denied - real path %s outside allowed directories %s",
			realPath, strings.Join(allowedRoots, ", "))
	}

	return realPath, nil
}

func underAnyRoot(path string, roots []string) bool {
	for _, root := range roots {
		if isSubpath(path, root) {
			return true
		}
	}
	return false
}

func isSubpath(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".."
}

func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func createUnifiedDiff(originalContent, newContent, filePath string) string {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(normalizeLineEndings(originalContent), normalizeLineEndings(newContent), true)
	patches := dmp.PatchMake(diffs)

	var diff strings.Builder
	diff.WriteString(fmt.Sprintf("--- %s (original)\n", filePath))
	diff.WriteString(fmt.Sprintf("+++ %s (modified)\n", filePath))

	for _, patch := range patches {
		diff.WriteString(dmp.PatchToText([]diffmatchpatch.Patch{patch}))
	}

	return diff.String()
}

// applyFileEdits applies the edits to the file at filePath and returns a
// unified diff of the result. When dryRun is set the diff is produced but
// the file is left untouched.
func applyFileEdits(filePath string, edits []editOperation, dryRun bool) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	modified, err := applyEdits(string(content), edits)
	if err != nil {
		return "", err
	}

	diff := createUnifiedDiff(string(content), modified, filePath)

	if !dryRun {
		if err := os.WriteFile(filePath, []byte(modified), 0600); err != nil {
			return "", fmt.Errorf("failed to write file: %w", err)
		}
	}

	return diff, nil
}

func applyEdits(content string, edits []editOperation) (string, error) {
	modified := normalizeLineEndings(content)

	for _, edit := range edits {
		oldText := normalizeLineEndings(edit.OldText)
		newText := normalizeLineEndings(edit.NewText)

		// Exact match first, then a whitespace-insensitive line match.
		if strings.Contains(modified, oldText) {
			modified = strings.Replace(modified, oldText, newText, 1)
			continue
		}

		replaced, found := replaceByLines(modified, oldText, newText)
		if !found {
			return "", fmt.Errorf("could not find exact match for edit:\n%s", edit.OldText)
		}
		modified = replaced
	}

	return modified, nil
}

// replaceByLines matches oldText against content line by line, ignoring
// leading and trailing whitespace, and substitutes newText re-indented to
// the matched block's original indentation.
func replaceByLines(content, oldText, newText string) (string, bool) {
	oldLines := strings.Split(oldText, "\n")
	contentLines := strings.Split(content, "\n")

	for i := 0; i <= len(contentLines)-len(oldLines); i++ {
		if !linesMatch(contentLines[i:i+len(oldLines)], oldLines) {
			continue
		}

		indent := leadingWhitespace(contentLines[i])
		newLines := reindent(indent, oldLines, strings.Split(newText, "\n"))

		result := make([]string, 0, len(contentLines)-len(oldLines)+len(newLines))
		result = append(result, contentLines[:i]...)
		result = append(result, newLines...)
		result = append(result, contentLines[i+len(oldLines):]...)

		return strings.Join(result, "\n"), true
	}

	return content, false
}

func linesMatch(contentBlock, oldLines []string) bool {
	for j, oldLine := range oldLines {
		if strings.TrimSpace(oldLine) != strings.TrimSpace(contentBlock[j]) {
			return false
		}
	}
	return true
}

func reindent(baseIndent string, oldLines, newLines []string) []string {
	result := make([]string, 0, len(newLines))

	for j, line := range newLines {
		if j == 0 {
			result = append(result, baseIndent+strings.TrimLeft(line, " \t"))
			continue
		}

		if strings.TrimSpace(line) == "" {
			result = append(result, baseIndent)
			continue
		}

		oldIndent := ""
		if j < len(oldLines) {
			oldIndent = leadingWhitespace(oldLines[j])
		}
		extra := len(leadingWhitespace(line)) - len(oldIndent)
		if extra < 0 {
			extra = 0
		}
		result = append(result, baseIndent+strings.Repeat(" ", extra)+strings.TrimLeft(line, " \t"))
	}

	return result
}

func leadingWhitespace(s string) string {
	return strings.TrimRight(s[:len(s)-len(strings.TrimLeft(s, " \t"))], "\n\r")
}

// searchFilesWithPattern walks rootPath recursively and returns the full
// paths of entries whose name contains pattern, case-insensitive. Entries
// whose path relative to rootPath matches an exclude glob are skipped.
// Subdirectories are walked concurrently, capped at 50 goroutines.
func searchFilesWithPattern(rootPath, pattern string, allowedRoots, excludePatterns []string) ([]string, error) {
	var results []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, 50)

	var excludes []glob.Glob
	for _, pattern := range excludePatterns {
		if !strings.Contains(pattern, "*") {
			pattern = "**/" + pattern + "/**"
		}
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		excludes = append(excludes, compiled)
	}

	searchPattern := strings.ToLower(pattern)

	var search func(currentPath string)
	search = func(currentPath string) {
		defer wg.Done()

		validPath, err := validatePath(currentPath, allowedRoots)
		if err != nil {
			return
		}

		entries, err := os.ReadDir(validPath)
		if err != nil {
			return
		}

		for _, entry := range entries {
			fullPath := filepath.Join(currentPath, entry.Name())

			if _, err := validatePath(fullPath, allowedRoots); err != nil {
				continue
			}

			relativePath, err := filepath.Rel(rootPath, fullPath)
			if err != nil {
				continue
			}

			excluded := false
			for _, pattern := range excludes {
				if pattern.Match(relativePath) {
					excluded = true
					break
				}
			}
			if excluded {
				continue
			}

			if strings.Contains(strings.ToLower(entry.Name()), searchPattern) {
				mu.Lock()
				results = append(results, fullPath)
				mu.Unlock()
			}

			if entry.IsDir() {
				wg.Add(1)
				go func(path string) {
					semaphore <- struct{}{}
					search(path)
					<-semaphore
				}(fullPath)
			}
		}
	}

	wg.Add(1)
	search(rootPath)
	wg.Wait()

	return results, nil
}
