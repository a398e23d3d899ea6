package filesystem

import "github.com/relaywire/mcpwire"

type readFileArgs struct {
	Path string `json:"path"`
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type editFileArgs struct {
	Path   string          `json:"path"`
	Edits  []editOperation `json:"edits"`
	DryRun bool            `json:"dryRun"`
}

type editOperation struct {
	OldText string `json:"oldText"`
	NewText string `json:"newText"`
}

type listDirectoryArgs struct {
	Path string `json:"path"`
}

type searchFilesArgs struct {
	Path    string   `json:"path"`
	Pattern string   `json:"pattern"`
	Exclude []string `json:"excludePatterns"`
}

type getFileInfoArgs struct {
	Path string `json:"path"`
}

var toolList = mcpwire.ListToolsResult{
	Tools: []mcpwire.Tool{
		{
			Name: "read_file",
			Description: "Read the complete contents of a file. Only works within " +
				"allowed directories.",
			InputSchema: pathOnlySchema,
		},
		{
			Name: "write_file",
			Description: "Create a new file or overwrite an existing file with new " +
				"content. Only works within allowed directories.",
			InputSchema: writeFileSchema,
		},
		{
			Name: "edit_file",
			Description: "Make text replacements in a file. Each edit replaces an " +
				"exact text sequence with new content. Returns a unified diff of the " +
				"changes. Set dryRun to preview without writing. Only works within " +
				"allowed directories.",
			InputSchema: editFileSchema,
		},
		{
			Name: "list_directory",
			Description: "List files and directories at a path, with [FILE] and " +
				"[DIR] prefixes. Only works within allowed directories.",
			InputSchema: pathOnlySchema,
		},
		{
			Name: "search_files",
			Description: "Recursively search for files and directories whose name " +
				"contains a pattern, case-insensitive. Glob patterns in " +
				"excludePatterns filter out matches. Only searches within allowed " +
				"directories.",
			InputSchema: searchFilesSchema,
		},
		{
			Name: "get_file_info",
			Description: "Retrieve size, modification time, permissions and type of " +
				"a file or directory. Only works within allowed directories.",
			InputSchema: pathOnlySchema,
		},
		{
			Name:        "list_allowed_directories",
			Description: "List the root directories this toolset is allowed to access.",
			InputSchema: emptySchema,
		},
	},
}

var pathOnlySchema = []byte(`
  {
    "type": "object",
    "properties": {
      "path": {
        "type": "string"
      }
    },
    "required": ["path"]
  }
`)

var writeFileSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "path": {
        "type": "string"
      },
      "content": {
        "type": "string"
      }
    },
    "required": ["path", "content"]
  }
`)

var editFileSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "path": {
        "type": "string"
      },
      "edits": {
        "type": "array",
        "items": {
          "type": "object",
          "properties": {
            "oldText": {
              "type": "string"
            },
            "newText": {
              "type": "string"
            }
          },
          "required": ["oldText", "newText"]
        }
      },
      "dryRun": {
        "type": "boolean"
      }
    },
    "required": ["path", "edits"]
  }
`)

var searchFilesSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "path": {
        "type": "string"
      },
      "pattern": {
        "type": "string"
      },
      "excludePatterns": {
        "type": "array",
        "items": {
          "type": "string"
        }
      }
    },
    "required": ["path", "pattern"]
  }
`)

var emptySchema = []byte(`
  {
    "type": "object",
    "properties": {}
  }
`)
