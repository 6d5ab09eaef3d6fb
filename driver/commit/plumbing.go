package commit

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// change is one pending edit to the repository tree. A nil-hash change
// with remove set deletes the path.
type change struct {
	path   string
	blob   plumbing.Hash
	remove bool
}

// createBlob writes data into the object store without filesystem I/O.
func (s *Store) createBlob(data []byte) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("create blob writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", err)
	}
	writer.Close()

	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store blob: %w", err)
	}
	return hash, nil
}

// headTree returns the tree hash of HEAD, or ZeroHash before the first
// commit.
func (s *Store) headTree() (plumbing.Hash, error) {
	headRef, err := s.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, nil
	}
	c, err := s.repo.CommitObject(headRef.Hash())
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("head commit: %w", err)
	}
	return c.TreeHash, nil
}

func (s *Store) treeEntries(treeHash plumbing.Hash) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)
	if treeHash == plumbing.ZeroHash {
		return entries, nil
	}
	tree, err := object.GetTree(s.repo.Storer, treeHash)
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}
	for _, entry := range tree.Entries {
		entries[entry.Name] = entry
	}
	return entries, nil
}

func (s *Store) buildTree(entries map[string]object.TreeEntry) (plumbing.Hash, error) {
	slice := make([]object.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		slice = append(slice, entry)
	}
	// Git orders entries with directories compared as "name/".
	sort.Slice(slice, func(i, j int) bool {
		ni, nj := slice[i].Name, slice[j].Name
		if slice[i].Mode == filemode.Dir {
			ni += "/"
		}
		if slice[j].Mode == filemode.Dir {
			nj += "/"
		}
		return ni < nj
	})

	tree := &object.Tree{Entries: slice}
	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode tree: %w", err)
	}
	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store tree: %w", err)
	}
	return hash, nil
}

// applyChanges rewrites a tree with a batch of edits, recursing one
// directory level at a time so intermediate trees are built once.
func (s *Store) applyChanges(treeHash plumbing.Hash, changes []change) (plumbing.Hash, error) {
	if len(changes) == 0 {
		return treeHash, nil
	}

	grouped := make(map[string][]change)
	var local []change
	for _, c := range changes {
		dir, rest, nested := strings.Cut(c.path, "/")
		if !nested {
			local = append(local, c)
			continue
		}
		grouped[dir] = append(grouped[dir], change{path: rest, blob: c.blob, remove: c.remove})
	}

	entries, err := s.treeEntries(treeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	for _, c := range local {
		if c.remove {
			delete(entries, c.path)
			continue
		}
		entries[c.path] = object.TreeEntry{Name: c.path, Mode: filemode.Regular, Hash: c.blob}
	}

	for dir, sub := range grouped {
		var subTree plumbing.Hash
		if existing, ok := entries[dir]; ok && existing.Mode == filemode.Dir {
			subTree = existing.Hash
		}
		newSubTree, err := s.applyChanges(subTree, sub)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if newSubTree == plumbing.ZeroHash {
			delete(entries, dir)
			continue
		}
		entries[dir] = object.TreeEntry{Name: dir, Mode: filemode.Dir, Hash: newSubTree}
	}

	if len(entries) == 0 {
		return plumbing.ZeroHash, nil
	}
	return s.buildTree(entries)
}

// commitTree records treeHash as a new commit on the current branch.
func (s *Store) commitTree(treeHash plumbing.Hash, message string) error {
	actual := treeHash
	if treeHash == plumbing.ZeroHash {
		empty := &object.Tree{}
		obj := s.repo.Storer.NewEncodedObject()
		if err := empty.Encode(obj); err != nil {
			return fmt.Errorf("encode empty tree: %w", err)
		}
		var err error
		actual, err = s.repo.Storer.SetEncodedObject(obj)
		if err != nil {
			return fmt.Errorf("store empty tree: %w", err)
		}
	}

	var parents []plumbing.Hash
	headRef, err := s.repo.Head()
	if err == nil {
		parents = []plumbing.Hash{headRef.Hash()}
	}

	sig := object.Signature{
		Name:  s.identity.Name,
		Email: s.identity.Email,
		When:  time.Now(),
	}
	c := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     actual,
		ParentHashes: parents,
	}

	obj := s.repo.Storer.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		return fmt.Errorf("encode commit: %w", err)
	}
	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return fmt.Errorf("store commit: %w", err)
	}

	branch := plumbing.Master
	if headRef != nil && headRef.Name().IsBranch() {
		branch = headRef.Name()
	}
	if err := s.repo.Storer.SetReference(plumbing.NewHashReference(branch, hash)); err != nil {
		return fmt.Errorf("update %s: %w", branch, err)
	}
	return nil
}

// applyAndCommit runs a batch of edits against HEAD and commits them.
func (s *Store) applyAndCommit(changes []change, message string) error {
	current, err := s.headTree()
	if err != nil {
		return err
	}
	newTree, err := s.applyChanges(current, changes)
	if err != nil {
		return err
	}
	return s.commitTree(newTree, message)
}

// headHash returns the current HEAD commit hash, or ZeroHash before the
// first commit.
func (s *Store) headHash() plumbing.Hash {
	headRef, err := s.repo.Head()
	if err != nil {
		return plumbing.ZeroHash
	}
	return headRef.Hash()
}

// resetTo moves the current branch back to an earlier commit.
func (s *Store) resetTo(hash plumbing.Hash) error {
	headRef, err := s.repo.Head()
	branch := plumbing.Master
	if err == nil && headRef.Name().IsBranch() {
		branch = headRef.Name()
	}
	if hash == plumbing.ZeroHash {
		return s.repo.Storer.RemoveReference(branch)
	}
	return s.repo.Storer.SetReference(plumbing.NewHashReference(branch, hash))
}

// readFile reads a blob from the HEAD tree.
func (s *Store) readFile(filePath string) ([]byte, bool) {
	headRef, err := s.repo.Head()
	if err != nil {
		return nil, false
	}
	c, err := s.repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, false
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, false
	}
	file, err := tree.File(filePath)
	if err != nil {
		return nil, false
	}
	content, err := file.Contents()
	if err != nil {
		return nil, false
	}
	return []byte(content), true
}

// listDir lists entry names under a directory of the HEAD tree. An
// empty dirPath lists the root. Missing directories list as empty.
func (s *Store) listDir(dirPath string) ([]object.TreeEntry, error) {
	headRef, err := s.repo.Head()
	if err != nil {
		return nil, nil
	}
	c, err := s.repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("head commit: %w", err)
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("head tree: %w", err)
	}

	target := tree
	if dirPath != "" && dirPath != "." {
		target, err = tree.Tree(dirPath)
		if err != nil {
			return nil, nil
		}
	}
	return target.Entries, nil
}
