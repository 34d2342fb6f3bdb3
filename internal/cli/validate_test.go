package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidModels(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeModelFile(t, tmpDir, "library.cue", libraryModels)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ 2 model(s) valid")
}

func TestValidateValidModelsJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeModelFile(t, tmpDir, "library.cue", libraryModels)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestValidateDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	writeModelFile(t, tmpDir, "author.cue", `
models: Author: fields: name: kind: "attribute"
`)
	writeModelFile(t, tmpDir, "book.cue", `
models: Book: fields: title: kind: "attribute"
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ 2 model(s) valid")
}

func TestValidateNonExistentPath(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E005") // ErrCodeNotFound
	assert.Contains(t, buf.String(), "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateEmptyDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, buf.String(), "no CUE files found")
}

func TestValidateUnknownTarget(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeModelFile(t, tmpDir, "bad.cue", `
models: Author: fields: books: {kind: "many", to: "Book"}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ Validation failed")
	assert.Contains(t, output, "E110")
	assert.Contains(t, output, "Book")
}

func TestValidateUnknownTargetJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeModelFile(t, tmpDir, "bad.cue", `
models: Author: fields: manager: {kind: "fk", to: "Team"}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E110", resp.Error.Code)
}

func TestValidateRelationalIDAttribute(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeModelFile(t, tmpDir, "bad.cue", `
models: {
	Team: {}
	Author: {
		idAttribute: "ref"
		fields: ref: {kind: "fk", to: "Team"}
	}
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "E106")
}

func TestValidateSynthesisCollision(t *testing.T) {
	tmpDir := t.TempDir()

	// AuthorBooks is both declared and the synthesized through name
	// for Author.books. Per-declaration rules pass; only resolution
	// sees the collision.
	path := writeModelFile(t, tmpDir, "collision.cue", `
models: {
	Author: {
		fields: {
			books: {kind: "many", to: "Book"}
		}
	}
	Book: {
		fields: title: kind: "attribute"
	}
	AuthorBooks: {
		fields: note: kind: "attribute"
	}
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "E113")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeModelFile(t, tmpDir, "bad.cue", `
models: {
	Author: {
		fields: {
			books: {kind: "many", to: "Book"}
			editor: {kind: "fk", to: "Person"}
		}
	}
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 error(s)")

	output := buf.String()
	assert.Contains(t, output, "books")
	assert.Contains(t, output, "editor")
}

func TestValidateModelPaths(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeModelFile(t, tmpDir, "library.cue", libraryModels)

	errs, err := ValidateModelPaths([]string{path})
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestValidateModelPathsInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeModelFile(t, tmpDir, "bad.cue", `
models: Author: fields: books: {kind: "many", to: "Book"}
`)

	errs, err := ValidateModelPaths([]string{path})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "E110", errs[0].Code)
}
