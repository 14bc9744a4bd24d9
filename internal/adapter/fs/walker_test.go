package fs

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func TestSourceDocuments(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "# readme")
	writeFile(t, root, "guides/setup/Install.MD", "install steps")
	writeFile(t, root, "notes/todo.txt", "buy milk")
	writeFile(t, root, "notes/image.png", "not included")
	writeFile(t, root, ".git/HEAD.txt", "ref: main")
	writeFile(t, root, "notes/binary.txt", string([]byte{0xff, 0xfe, 0x00}))

	src := NewSource([]string{"**/*.md", "**/*.MD", "**/*.txt"}, []string{"**/.git/**"})
	docs, err := src.Documents(root)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	sort.Slice(docs, func(i, j int) bool { return docs[i].Title < docs[j].Title })

	require.Equal(t, "Install", docs[0].Title)
	require.Equal(t, "md", docs[0].Type)
	require.Equal(t, "guides", docs[0].Category)
	require.Equal(t, "install steps", docs[0].Content)
	require.Equal(t, DocumentID("guides/setup/Install.MD"), docs[0].ID)

	require.Equal(t, "README", docs[1].Title)
	require.Equal(t, "", docs[1].Category)

	require.Equal(t, "todo", docs[2].Title)
	require.Equal(t, "txt", docs[2].Type)
	require.Equal(t, "notes", docs[2].Category)
}

func TestDocumentIDStable(t *testing.T) {
	require.Equal(t, DocumentID("a/b.md"), DocumentID("a/b.md"))
	require.NotEqual(t, DocumentID("a/b.md"), DocumentID("a/c.md"))
	require.Len(t, DocumentID("a/b.md"), 36)
}

func TestWalkExcludesDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep/a.txt", "a")
	writeFile(t, root, "node_modules/pkg/b.txt", "b")

	files, err := NewSource(nil, []string{"**/node_modules/**"}).Walk(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "keep/a.txt", files[0].RelPath)
}

func TestSourceDocumentsCarryModTime(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "alpha")

	modTime := time.Date(2023, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(root, "a.md"), modTime, modTime))

	docs, err := NewSource([]string{"**/*.md"}, nil).Documents(root)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.True(t, docs[0].UpdatedAt.Equal(modTime))
}
