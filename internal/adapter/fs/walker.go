package fs

import (
	iofs "io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"kbrag/internal/domain"
)

// documentNamespace scopes the name-based document ids.
var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kbrag:document"))

// Source reads knowledge-base documents from a directory tree.
type Source struct {
	includes []string
	excludes []string
}

func NewSource(includes, excludes []string) *Source {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Source{
		includes: includes,
		excludes: excludes,
	}
}

// FileInfo describes a matched file, relative to the walked root.
type FileInfo struct {
	Path    string
	RelPath string
	ModTime time.Time
}

func (s *Source) Walk(root string) ([]FileInfo, error) {
	var files []FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.WalkDir(root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && (s.shouldExclude(relPath) || s.shouldExclude(relPath+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.shouldInclude(relPath) || s.shouldExclude(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Path:    p,
			RelPath: relPath,
			ModTime: info.ModTime(),
		})
		return nil
	})

	return files, err
}

// Documents loads every matched text file under root. Files that are not
// valid UTF-8 are skipped.
func (s *Source) Documents(root string) ([]domain.Document, error) {
	files, err := s.Walk(root)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(data) {
			continue
		}
		doc := NewDocument(f.RelPath, string(data))
		doc.UpdatedAt = f.ModTime
		docs = append(docs, doc)
	}
	return docs, nil
}

// NewDocument builds a document for a slash-separated path relative to the
// knowledge-base root.
func NewDocument(relPath, content string) domain.Document {
	base := path.Base(relPath)
	ext := path.Ext(base)

	category := ""
	if dir := path.Dir(relPath); dir != "." {
		category = strings.SplitN(dir, "/", 2)[0]
	}

	return domain.Document{
		ID:       DocumentID(relPath),
		Title:    strings.TrimSuffix(base, ext),
		Type:     strings.ToLower(strings.TrimPrefix(ext, ".")),
		Content:  content,
		Category: category,
	}
}

// DocumentID is stable for a relative path across runs.
func DocumentID(relPath string) string {
	return uuid.NewSHA1(documentNamespace, []byte(relPath)).String()
}

func (s *Source) shouldInclude(p string) bool {
	for _, pattern := range s.includes {
		matched, err := doublestar.Match(pattern, p)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (s *Source) shouldExclude(p string) bool {
	for _, pattern := range s.excludes {
		matched, err := doublestar.Match(pattern, p)
		if err == nil && matched {
			return true
		}
	}
	return false
}
