// Package filesystem exposes sandboxed filesystem operations as a toolset.
// All operations are restricted to a configured set of root directories;
// paths are resolved through symlinks before the restriction is enforced.
package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/relaywire/mcpwire"
)

// Toolset provides filesystem tools rooted at a fixed set of directories.
// Register wires it into a router's handler registry under the standard
// tools/list and tools/call methods.
type Toolset struct {
	rootPaths []string
}

// NewToolset creates a filesystem toolset restricted to the given root
// directories. Every root must exist and be a directory.
func NewToolset(roots []string) (Toolset, error) {
	if len(roots) == 0 {
		return Toolset{}, fmt.Errorf("at least one root directory is required")
	}

	normalized := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(filepath.Clean(root))
		if err != nil {
			return Toolset{}, fmt.Errorf("failed to resolve root directory %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return Toolset{}, fmt.Errorf("failed to stat root directory: %w", err)
		}
		if !info.IsDir() {
			return Toolset{}, fmt.Errorf("root directory is not a directory: %s", root)
		}
		normalized = append(normalized, abs)
	}

	return Toolset{rootPaths: normalized}, nil
}

// Register installs the toolset's handlers on the registry. The optional
// roles restrict both methods to callers holding at least one of them.
func (t Toolset) Register(reg *mcpwire.Registry, roles ...string) {
	listHandler := mcpwire.NewHandler(t.listTools).WithAllowedRoles(roles...)
	callHandler := mcpwire.NewHandler(t.callTool).
		WithValidate(validateCallParams).
		WithAllowedRoles(roles...)

	reg.Register(mcpwire.MethodToolsList, listHandler)
	reg.Register(mcpwire.MethodToolsCall, callHandler)
}

func (t Toolset) listTools(
	_ context.Context,
	_ mcpwire.RequestContext,
	_ mcpwire.ListToolsParams,
) (mcpwire.ListToolsResult, error) {
	return toolList, nil
}

func (t Toolset) callTool(
	_ context.Context,
	_ mcpwire.RequestContext,
	params mcpwire.CallToolParams,
) (mcpwire.CallToolResult, error) {
	switch params.Name {
	case "read_file":
		return t.readFile(params)
	case "write_file":
		return t.writeFile(params)
	case "edit_file":
		return t.editFile(params)
	case "list_directory":
		return t.listDirectory(params)
	case "search_files":
		return t.searchFiles(params)
	case "get_file_info":
		return t.getFileInfo(params)
	case "list_allowed_directories":
		return t.listAllowedDirectories()
	default:
		return mcpwire.CallToolResult{}, fmt.Errorf("%w: unknown tool %s",
			mcpwire.ErrValidationFailed, params.Name)
	}
}

func validateCallParams(params mcpwire.CallToolParams) error {
	if params.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	return nil
}

func (t Toolset) readFile(params mcpwire.CallToolParams) (mcpwire.CallToolResult, error) {
	var args readFileArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcpwire.CallToolResult{}, fmt.Errorf("%w: %w", mcpwire.ErrValidationFailed, err)
	}

	validPath, err := validatePath(args.Path, t.rootPaths)
	if err != nil {
		return toolError(err), nil
	}

	info, err := os.Stat(validPath)
	if err != nil {
		return toolError(fmt.Errorf("failed to stat %s: %w", args.Path, err)), nil
	}
	if info.IsDir() {
		return toolError(fmt.Errorf("path %s is a directory, not a file", args.Path)), nil
	}

	bs, err := os.ReadFile(validPath)
	if err != nil {
		return toolError(fmt.Errorf("failed to read %s: %w", args.Path, err)), nil
	}

	return textResult(string(bs)), nil
}

func (t Toolset) writeFile(params mcpwire.CallToolParams) (mcpwire.CallToolResult, error) {
	var args writeFileArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcpwire.CallToolResult{}, fmt.Errorf("%w: %w", mcpwire.ErrValidationFailed, err)
	}

	validPath, err := validatePath(args.Path, t.rootPaths)
	if err != nil {
		return toolError(err), nil
	}

	if err := os.WriteFile(validPath, []byte(args.Content), 0600); err != nil {
		return toolError(fmt.Errorf("failed to write %s: %w", args.Path, err)), nil
	}

	return textResult(fmt.Sprintf("File %s written successfully", args.Path)), nil
}

func (t Toolset) editFile(params mcpwire.CallToolParams) (mcpwire.CallToolResult, error) {
	var args editFileArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcpwire.CallToolResult{}, fmt.Errorf("%w: %w", mcpwire.ErrValidationFailed, err)
	}

	validPath, err := validatePath(args.Path, t.rootPaths)
	if err != nil {
		return toolError(err), nil
	}

	diff, err := applyFileEdits(validPath, args.Edits, args.DryRun)
	if err != nil {
		return toolError(err), nil
	}

	return textResult(diff), nil
}

func (t Toolset) listDirectory(params mcpwire.CallToolParams) (mcpwire.CallToolResult, error) {
	var args listDirectoryArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcpwire.CallToolResult{}, fmt.Errorf("%w: %w", mcpwire.ErrValidationFailed, err)
	}

	validPath, err := validatePath(args.Path, t.rootPaths)
	if err != nil {
		return toolError(err), nil
	}

	entries, err := os.ReadDir(validPath)
	if err != nil {
		return toolError(fmt.Errorf("failed to read directory %s: %w", args.Path, err)), nil
	}

	contents := make([]mcpwire.Content, 0, len(entries))
	for _, entry := range entries {
		prefix := "[FILE] "
		if entry.IsDir() {
			prefix = "[DIR] "
		}
		contents = append(contents, mcpwire.Content{
			Type: mcpwire.ContentTypeText,
			Text: prefix + entry.Name(),
		})
	}

	return mcpwire.CallToolResult{Content: contents}, nil
}

func (t Toolset) searchFiles(params mcpwire.CallToolParams) (mcpwire.CallToolResult, error) {
	var args searchFilesArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcpwire.CallToolResult{}, fmt.Errorf("%w: %w", mcpwire.ErrValidationFailed, err)
	}

	validPath, err := validatePath(args.Path, t.rootPaths)
	if err != nil {
		return toolError(err), nil
	}

	matches, err := searchFilesWithPattern(validPath, args.Pattern, t.rootPaths, args.Exclude)
	if err != nil {
		return toolError(fmt.Errorf("failed to search files: %w", err)), nil
	}

	if len(matches) == 0 {
		return textResult("No files found"), nil
	}

	contents := make([]mcpwire.Content, 0, len(matches))
	for _, match := range matches {
		contents = append(contents, mcpwire.Content{
			Type: mcpwire.ContentTypeText,
			Text: match,
		})
	}

	return mcpwire.CallToolResult{Content: contents}, nil
}

func (t Toolset) getFileInfo(params mcpwire.CallToolParams) (mcpwire.CallToolResult, error) {
	var args getFileInfoArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcpwire.CallToolResult{}, fmt.Errorf("%w: %w", mcpwire.ErrValidationFailed, err)
	}

	validPath, err := validatePath(args.Path, t.rootPaths)
	if err != nil {
		return toolError(err), nil
	}

	info, err := os.Stat(validPath)
	if err != nil {
		return toolError(fmt.Errorf("failed to stat %s: %w", args.Path, err)), nil
	}

	return textResult(fmt.Sprintf("File %s info:\nSize: %d\nLast modified: %s\nMode: %s\nIsDir: %t",
		args.Path, info.Size(), info.ModTime(), info.Mode(), info.IsDir())), nil
}

func (t Toolset) listAllowedDirectories() (mcpwire.CallToolResult, error) {
	contents := make([]mcpwire.Content, 0, len(t.rootPaths))
	for _, root := range t.rootPaths {
		contents = append(contents, mcpwire.Content{
			Type: mcpwire.ContentTypeText,
			Text: root,
		})
	}
	return mcpwire.CallToolResult{Content: contents}, nil
}

func textResult(text string) mcpwire.CallToolResult {
	return mcpwire.CallToolResult{
		Content: []mcpwire.Content{
			{
				Type: mcpwire.ContentTypeText,
				Text: text,
			},
		},
	}
}

// Tool failures are reported in-band so the peer can surface them, rather
// than as protocol errors.
func toolError(err error) mcpwire.CallToolResult {
	return mcpwire.CallToolResult{
		Content: []mcpwire.Content{
			{
				Type: mcpwire.ContentTypeText,
				Text: err.Error(),
			},
		},
		IsError: true,
	}
}
