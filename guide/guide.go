// Package guide serves the bundled research guide: markdown sections about
// Riksarkivet's source material, read from disk or from the embedded copy.
package guide

import (
	"bufio"
	"embed"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/ramcp/internal/errs"
)

// TableOfContents is the index section.
const TableOfContents = "00_Innehallsforteckning.md"

//go:embed resources/*.md
var embedded embed.FS

// Section describes one guide file.
type Section struct {
	Filename string
	Title    string
}

// Library reads guide sections from the first existing directory of its
// search path, falling back to the embedded copy.
type Library struct {
	fsys   fs.FS
	source string
}

// SearchPath returns the directories consulted in order: guideDir when
// set, ./resources, then resources next to the executable.
func SearchPath(guideDir string) []string {
	var dirs []string
	if guideDir != "" {
		dirs = append(dirs, guideDir)
	}
	dirs = append(dirs, "resources")
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), "resources"))
	}
	return dirs
}

// NewLibrary picks the first directory in dirs that holds a table of
// contents.
func NewLibrary(logger zerolog.Logger, dirs ...string) *Library {
	for _, d := range dirs {
		if st, err := os.Stat(filepath.Join(d, TableOfContents)); err == nil && !st.IsDir() {
			logger.Debug().Str("dir", d).Msg("guide resources found")
			return &Library{fsys: os.DirFS(d), source: d}
		}
	}
	sub, err := fs.Sub(embedded, "resources")
	if err != nil {
		// resources/ is compiled in
		panic(err)
	}
	logger.Debug().Msg("using embedded guide resources")
	return &Library{fsys: sub, source: "embedded"}
}

// Source names where sections are read from.
func (l *Library) Source() string { return l.source }

// Load returns a section by filename. Only the base name is used.
func (l *Library) Load(filename string) (string, error) {
	name := path.Base(filepath.ToSlash(strings.TrimSpace(filename)))
	if !strings.HasSuffix(name, ".md") || name == ".md" {
		return "", &errs.InvalidParameterError{Param: "filename", Reason: "Invalid filename format"}
	}
	b, err := fs.ReadFile(l.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", errs.NotFound("Guide section", filename)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Sections lists the available sections sorted by filename.
func (l *Library) Sections() ([]Section, error) {
	matches, err := fs.Glob(l.fsys, "*.md")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	out := make([]Section, 0, len(matches))
	for _, m := range matches {
		out = append(out, Section{Filename: m, Title: l.title(m)})
	}
	return out, nil
}

// title is the first markdown heading of a section, or its filename.
func (l *Library) title(name string) string {
	f, err := l.fsys.Open(name)
	if err != nil {
		return name
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return name
}
