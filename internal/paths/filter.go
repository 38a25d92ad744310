package paths

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Filter selects source files by extension and skips excluded paths.
// Exclude patterns use path.Match syntax and are tested against every path
// segment and against the whole slash-separated relative path.
type Filter struct {
	Extensions []string
	Exclude    []string
}

// Excluded reports whether rel (slash-separated, relative to the root) or one
// of its parent directories matches an exclude pattern.
func (f Filter) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return false
	}
	for _, pattern := range f.Exclude {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		for _, seg := range strings.Split(rel, "/") {
			if ok, _ := path.Match(pattern, seg); ok {
				return true
			}
		}
	}
	return false
}

// Match reports whether rel is a source file to process.
func (f Filter) Match(rel string) bool {
	ext := strings.ToLower(path.Ext(filepath.ToSlash(rel)))
	for _, e := range f.Extensions {
		if strings.EqualFold(e, ext) {
			return !f.Excluded(rel)
		}
	}
	return false
}

// Discover walks root and returns the slash-separated relative paths of every
// matching file, sorted.
func Discover(root string, f Filter) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if f.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && f.Match(rel) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Narrow limits discovered files to those under one of the given relative
// paths. An empty list keeps everything.
func Narrow(files, under []string) []string {
	if len(under) == 0 {
		return files
	}
	var out []string
	for _, f := range files {
		for _, u := range under {
			u = strings.TrimSuffix(filepath.ToSlash(filepath.Clean(u)), "/")
			if u == "." || f == u || strings.HasPrefix(f, u+"/") {
				out = append(out, f)
				break
			}
		}
	}
	return out
}
