package filesystem

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relaywire/mcpwire"
)

func TestReadFile(t *testing.T) {
	tempDir := createTempDir(t)
	ts := newTestToolset(t, tempDir)

	testContent := "test content"
	testFile := filepath.Join(tempDir, "test.txt")
	if err := os.WriteFile(testFile, []byte(testContent), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	result := callTool(t, ts, "read_file", readFileArgs{Path: testFile})
	if result.IsError {
		t.Fatalf("Expected success, got tool error: %s", result.Content[0].Text)
	}
	if len(result.Content) != 1 {
		t.Fatalf("Expected 1 content item, got %d", len(result.Content))
	}
	if result.Content[0].Text != testContent {
		t.Errorf("Expected content %q, got %q", testContent, result.Content[0].Text)
	}

	result = callTool(t, ts, "read_file", readFileArgs{Path: filepath.Join(tempDir, "nonexistent.txt")})
	if !result.IsError {
		t.Error("Expected tool error for non-existent file, got none")
	}
}

func TestReadFileOutsideRoots(t *testing.T) {
	tempDir := createTempDir(t)
	ts := newTestToolset(t, tempDir)

	outside := createTempDir(t)
	outsideFile := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(outsideFile, []byte("secret"), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	result := callTool(t, ts, "read_file", readFileArgs{Path: outsideFile})
	if !result.IsError {
		t.Error("Expected tool error for path outside allowed directories, got none")
	}
	if !strings.Contains(result.Content[0].Text, "access denied") {
		t.Errorf("Expected access denied message, got %q", result.Content[0].Text)
	}
}

func TestWriteFile(t *testing.T) {
	tempDir := createTempDir(t)
	ts := newTestToolset(t, tempDir)

	testContent := "test content"
	testFile := filepath.Join(tempDir, "write_test.txt")

	result := callTool(t, ts, "write_file", writeFileArgs{Path: testFile, Content: testContent})
	if result.IsError {
		t.Fatalf("Expected success, got tool error: %s", result.Content[0].Text)
	}

	content, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to read written file: %v", err)
	}
	if string(content) != testContent {
		t.Errorf("Expected content %q, got %q", testContent, string(content))
	}
}

func TestEditFile(t *testing.T) {
	tempDir := createTempDir(t)
	ts := newTestToolset(t, tempDir)

	testFile := filepath.Join(tempDir, "edit_test.txt")
	initialContent := "line1\nline2\nline3\n"
	if err := os.WriteFile(testFile, []byte(initialContent), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	result := callTool(t, ts, "edit_file", editFileArgs{
		Path: testFile,
		Edits: []editOperation{
			{OldText: "line2", NewText: "modified line2"},
		},
	})
	if result.IsError {
		t.Fatalf("Expected success, got tool error: %s", result.Content[0].Text)
	}

	content, _ := os.ReadFile(testFile)
	if !strings.Contains(string(content), "modified line2") {
		t.Error("File content was not modified as expected")
	}

	if !strings.Contains(result.Content[0].Text, "--- "+testFile) {
		t.Errorf("Expected unified diff in result, got %q", result.Content[0].Text)
	}
}

func TestEditFileDryRun(t *testing.T) {
	tempDir := createTempDir(t)
	ts := newTestToolset(t, tempDir)

	testFile := filepath.Join(tempDir, "dry_run_test.txt")
	initialContent := "line1\nline2\n"
	if err := os.WriteFile(testFile, []byte(initialContent), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	result := callTool(t, ts, "edit_file", editFileArgs{
		Path: testFile,
		Edits: []editOperation{
			{OldText: "line1", NewText: "changed line1"},
		},
		DryRun: true,
	})
	if result.IsError {
		t.Fatalf("Expected success, got tool error: %s", result.Content[0].Text)
	}

	content, _ := os.ReadFile(testFile)
	if string(content) != initialContent {
		t.Error("Dry run should not modify the file")
	}
}

func TestListDirectory(t *testing.T) {
	tempDir := createTempDir(t)
	ts := newTestToolset(t, tempDir)

	testFiles := []string{"file1.txt", "file2.txt"}
	testDirs := []string{"dir1", "dir2"}

	for _, file := range testFiles {
		if err := os.WriteFile(filepath.Join(tempDir, file), []byte("test"), 0600); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}
	for _, dir := range testDirs {
		if err := os.Mkdir(filepath.Join(tempDir, dir), 0700); err != nil {
			t.Fatalf("Failed to create test directory: %v", err)
		}
	}

	result := callTool(t, ts, "list_directory", listDirectoryArgs{Path: tempDir})
	if result.IsError {
		t.Fatalf("Expected success, got tool error: %s", result.Content[0].Text)
	}
	if len(result.Content) != len(testFiles)+len(testDirs) {
		t.Errorf("Expected %d items, got %d", len(testFiles)+len(testDirs), len(result.Content))
	}
	for _, content := range result.Content {
		if !strings.HasPrefix(content.Text, "[FILE] ") && !strings.HasPrefix(content.Text, "[DIR] ") {
			t.Errorf("Invalid content format: %s", content.Text)
		}
	}
}

func TestSearchFiles(t *testing.T) {
	tempDir := createTempDir(t)
	ts := newTestToolset(t, tempDir)

	testFiles := []string{"test1.txt", "test2.txt", "other.txt"}
	for _, file := range testFiles {
		if err := os.WriteFile(filepath.Join(tempDir, file), []byte("test"), 0600); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	result := callTool(t, ts, "search_files", searchFilesArgs{Path: tempDir, Pattern: "test"})
	if result.IsError {
		t.Fatalf("Expected success, got tool error: %s", result.Content[0].Text)
	}
	if len(result.Content) != 2 {
		t.Errorf("Expected 2 files, got %d", len(result.Content))
	}
}

func TestSearchFilesExclude(t *testing.T) {
	tempDir := createTempDir(t)
	ts := newTestToolset(t, tempDir)

	if err := os.Mkdir(filepath.Join(tempDir, "vendor"), 0700); err != nil {
		t.Fatalf("Failed to create test directory: %v", err)
	}
	files := []string{"match_one.txt", filepath.Join("vendor", "match_two.txt")}
	for _, file := range files {
		if err := os.WriteFile(filepath.Join(tempDir, file), []byte("test"), 0600); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	result := callTool(t, ts, "search_files", searchFilesArgs{
		Path:    tempDir,
		Pattern: "match",
		Exclude: []string{"vendor"},
	})
	if result.IsError {
		t.Fatalf("Expected success, got tool error: %s", result.Content[0].Text)
	}
	if len(result.Content) != 1 {
		t.Fatalf("Expected 1 file, got %d", len(result.Content))
	}
	if !strings.Contains(result.Content[0].Text, "match_one.txt") {
		t.Errorf("Expected match_one.txt, got %s", result.Content[0].Text)
	}
}

func TestGetFileInfo(t *testing.T) {
	tempDir := createTempDir(t)
	ts := newTestToolset(t, tempDir)

	testFile := filepath.Join(tempDir, "info_test.txt")
	if err := os.WriteFile(testFile, []byte("test content"), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	result := callTool(t, ts, "get_file_info", getFileInfoArgs{Path: testFile})
	if result.IsError {
		t.Fatalf("Expected success, got tool error: %s", result.Content[0].Text)
	}
	if !strings.Contains(result.Content[0].Text, "Size: 12") {
		t.Errorf("Expected size in result, got %q", result.Content[0].Text)
	}
}

func TestListAllowedDirectories(t *testing.T) {
	tempDir := createTempDir(t)
	ts := newTestToolset(t, tempDir)

	result := callTool(t, ts, "list_allowed_directories", nil)
	if result.IsError {
		t.Fatalf("Expected success, got tool error: %s", result.Content[0].Text)
	}
	if len(result.Content) != 1 {
		t.Fatalf("Expected 1 path, got %d", len(result.Content))
	}
	if result.Content[0].Text != tempDir {
		t.Errorf("Expected path %s, got %s", tempDir, result.Content[0].Text)
	}
}

func TestCallToolUnknown(t *testing.T) {
	tempDir := createTempDir(t)
	ts := newTestToolset(t, tempDir)

	_, err := ts.callTool(context.Background(), mcpwire.RequestContext{},
		mcpwire.CallToolParams{Name: "no_such_tool"})
	if err == nil {
		t.Fatal("Expected error for unknown tool, got none")
	}
}

func TestListTools(t *testing.T) {
	tempDir := createTempDir(t)
	ts := newTestToolset(t, tempDir)

	result, err := ts.listTools(context.Background(), mcpwire.RequestContext{}, mcpwire.ListToolsParams{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Tools) != 7 {
		t.Errorf("Expected 7 tools, got %d", len(result.Tools))
	}
}

func TestRegister(t *testing.T) {
	tempDir := createTempDir(t)
	ts := newTestToolset(t, tempDir)

	reg := mcpwire.NewRegistry()
	ts.Register(reg, "operator")

	for _, method := range []string{mcpwire.MethodToolsList, mcpwire.MethodToolsCall} {
		entry, ok := reg.Lookup(method)
		if !ok {
			t.Fatalf("Expected %s to be registered", method)
		}
		if len(entry.AllowedRoles) != 1 || entry.AllowedRoles[0] != "operator" {
			t.Errorf("Expected operator role restriction on %s, got %v", method, entry.AllowedRoles)
		}
	}
}

func newTestToolset(t *testing.T, root string) Toolset {
	t.Helper()

	ts, err := NewToolset([]string{root})
	if err != nil {
		t.Fatalf("Failed to create toolset: %v", err)
	}
	return ts
}

func callTool(t *testing.T, ts Toolset, name string, args any) mcpwire.CallToolResult {
	t.Helper()

	var rawArgs json.RawMessage
	if args != nil {
		bs, err := json.Marshal(args)
		if err != nil {
			t.Fatalf("Failed to marshal args: %v", err)
		}
		rawArgs = bs
	}

	result, err := ts.callTool(context.Background(), mcpwire.RequestContext{}, mcpwire.CallToolParams{
		Name:      name,
		Arguments: rawArgs,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return result
}

// createTempDir resolves symlinks in the temp path so sandbox checks
// compare real paths.
func createTempDir(t *testing.T) string {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to resolve temp dir: %v", err)
	}
	return dir
}
