package definition

import (
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"
)

// Source abstracts where definition documents come from; the loader does
// not care whether that is a directory tree, an embedded resource set or
// a database.
type Source interface {
	Folders() ([]string, error)
	Files(folder string) ([]string, error)
	Read(folder, file string) ([]byte, error)
}

// DirSource serves definition documents from a directory tree: one
// sub-directory per definition plus the shared folder.
type DirSource struct {
	Root string
}

func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

func (s *DirSource) Folders() ([]string, error) {
	entries, err := ioutil.ReadDir(s.Root)
	if err != nil {
		return nil, err
	}
	var folders []string
	for _, entry := range entries {
		if entry.IsDir() {
			folders = append(folders, entry.Name())
		}
	}
	sort.Strings(folders)
	return folders, nil
}

func (s *DirSource) Files(folder string) ([]string, error) {
	entries, err := ioutil.ReadDir(filepath.Join(s.Root, folder))
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *DirSource) Read(folder, file string) ([]byte, error) {
	return ioutil.ReadFile(filepath.Join(s.Root, folder, file))
}

// MemSource holds documents in memory; used by tests.
type MemSource struct {
	Docs map[string]map[string][]byte
}

func (s *MemSource) Folders() ([]string, error) {
	var folders []string
	for folder := range s.Docs {
		folders = append(folders, folder)
	}
	sort.Strings(folders)
	return folders, nil
}

func (s *MemSource) Files(folder string) ([]string, error) {
	var files []string
	for file := range s.Docs[folder] {
		files = append(files, file)
	}
	sort.Strings(files)
	return files, nil
}

func (s *MemSource) Read(folder, file string) ([]byte, error) {
	return s.Docs[folder][file], nil
}
