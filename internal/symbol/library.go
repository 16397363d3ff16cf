// Package symbol implements laser-mark recognition: taught character
// templates matched against the located body by normalized cross-correlation,
// with an optional OCR cross-check of the assembled sequence.
package symbol

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"
)

// Template is one taught mark character.
type Template struct {
	// Name is the character or token the template stands for, taken from
	// the file stem ("3", "R", "J3" ...).
	Name string
	// Mat is the grayscale template image.
	Mat gocv.Mat
}

// Library holds the taught template set for one device.
type Library struct {
	templates []Template
}

// imageExts are the template file types the loader accepts.
var imageExts = map[string]bool{
	".png": true, ".bmp": true, ".tif": true, ".tiff": true, ".jpg": true, ".jpeg": true,
}

// LoadLibrary reads every template image in dir. File stems become template
// names; non-image files are ignored. An empty directory is an error, since
// matching without templates can only fail.
func LoadLibrary(dir string) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir: %w", err)
	}

	lib := &Library{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !imageExts[ext] {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		mat := gocv.IMRead(path, gocv.IMReadGrayScale)
		if mat.Empty() {
			return nil, fmt.Errorf("unreadable template %s", path)
		}
		lib.templates = append(lib.templates, Template{
			Name: strings.TrimSuffix(entry.Name(), ext),
			Mat:  mat,
		})
	}
	if len(lib.templates) == 0 {
		return nil, fmt.Errorf("no templates in %s", dir)
	}

	sort.Slice(lib.templates, func(i, j int) bool {
		return lib.templates[i].Name < lib.templates[j].Name
	})
	return lib, nil
}

// Templates returns the loaded set.
func (l *Library) Templates() []Template {
	return l.templates
}

// Len returns the template count.
func (l *Library) Len() int {
	return len(l.templates)
}

// Close releases the template Mats.
func (l *Library) Close() {
	for i := range l.templates {
		l.templates[i].Mat.Close()
	}
	l.templates = nil
}
