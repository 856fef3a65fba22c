package input

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// File is one document read from a directory.
type File struct {
	// Name is the base name of the file, used as the record source.
	Name string

	// HTML is the decoded content.
	HTML string
}

// ReadDir reads every regular file of dir in filename order.
//
// Files that cannot be read are skipped and reported through skip (when
// non-nil) so one bad file does not stop a directory run. Only a failure to
// list dir is an error.
func ReadDir(dir string, skip func(name string, err error)) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			if skip != nil {
				skip(e.Name(), err)
			}
			continue
		}
		html, err := Decode(b, "")
		if err != nil {
			if skip != nil {
				skip(e.Name(), err)
			}
			continue
		}
		files = append(files, File{Name: e.Name(), HTML: html})
	}
	return files, nil
}
