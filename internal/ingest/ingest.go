// Package ingest turns a Source into candidate Documents: a recursive
// directory walk or a Chrome-style bookmarks file parse.
package ingest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/localsearch/docsearch/internal/model"
)

// Candidate is a discovered unit of content, not yet persisted.
type Candidate struct {
	URI       string
	Title     string
	MimeType  string
	SizeBytes int64
	MTime     time.Time
}

func mimeByExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".html", ".htm":
		return "text/html"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// ScanDirectory walks source.Path recursively, skipping dotfiles and
// dot-directories, and returns one Candidate per regular file found.
func ScanDirectory(source *model.Source) ([]Candidate, error) {
	var candidates []Candidate

	err := filepath.WalkDir(source.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != source.Path && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			absPath = path
		}

		candidates = append(candidates, Candidate{
			URI:       "file://" + absPath,
			Title:     d.Name(),
			MimeType:  mimeByExtension(path),
			SizeBytes: info.Size(),
			MTime:     info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", source.Path, err)
	}
	return candidates, nil
}

// bookmarkNode mirrors the Chrome bookmarks JSON shape:
// {roots: {<name>: {children: [...]}}}.
type bookmarkNode struct {
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	URL      string         `json:"url"`
	Children []bookmarkNode `json:"children"`
}

type bookmarkFile struct {
	Roots map[string]bookmarkNode `json:"roots"`
}

// ScanBookmarks parses a Chrome-style bookmarks JSON file and returns one
// Candidate per http(s) URL leaf.
func ScanBookmarks(source *model.Source) ([]Candidate, error) {
	data, err := os.ReadFile(source.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookmarks file %s: %w", source.Path, err)
	}

	var file bookmarkFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse bookmarks JSON %s: %w", source.Path, err)
	}

	var candidates []Candidate
	for _, root := range file.Roots {
		walkBookmarkNode(root, &candidates)
	}
	return candidates, nil
}

func walkBookmarkNode(node bookmarkNode, out *[]Candidate) {
	if node.Type == "url" && (strings.HasPrefix(node.URL, "http://") || strings.HasPrefix(node.URL, "https://")) {
		title := node.Name
		if title == "" {
			title = node.URL
		}
		*out = append(*out, Candidate{
			URI:      node.URL,
			Title:    title,
			MimeType: "text/html",
			MTime:    time.Now(),
		})
	}
	for _, child := range node.Children {
		walkBookmarkNode(child, out)
	}
}
