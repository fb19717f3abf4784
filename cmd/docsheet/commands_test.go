package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docsheet/internal/document"
)

func TestOutlineCmd_TextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Chapter 1: Intro\nSome text\n1.1 Details\n"), 0o644))

	var out bytes.Buffer
	cmd := outlineCmd(nil)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())

	var outline document.Outline
	require.NoError(t, json.Unmarshal(out.Bytes(), &outline))
	require.Len(t, outline.Chapters, 1)
	assert.Equal(t, document.HeadingRef{Number: "1", Title: "Intro", Line: 1}, outline.Chapters[0])
	require.Len(t, outline.Sections, 1)
	assert.Equal(t, "Details", outline.Sections[0].Title)
}

func TestOutlineCmd_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bmp")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	cmd := outlineCmd(nil)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path})
	assert.Error(t, cmd.Execute())
}
