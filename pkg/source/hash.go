package source

import (
	"crypto/sha256"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	kerrors "github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/types"
)

// HashResource computes a stable sha256 over a resource's content:
// for files the bytes, for directories every file's relative path and
// bytes in sorted order. Used to decide what an update changed.
func HashResource(fsys types.FS, d types.ResourceDescriptor) (string, error) {
	h := sha256.New()

	switch d.Kind {
	case types.ResourceFile:
		data, err := fsys.ReadFile(d.SourcePath)
		if err != nil {
			return "", kerrors.Wrapf(err, kerrors.ErrFileAccess, "failed to hash %s", d.SourcePath)
		}
		h.Write(data)
	case types.ResourceDirectory:
		if err := hashTree(fsys, h, d.SourcePath, ""); err != nil {
			return "", err
		}
	default:
		return "", kerrors.Newf(kerrors.ErrInvalidInput, "unknown resource kind %q", d.Kind)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// HashResources maps resource names to their content hashes.
func HashResources(fsys types.FS, descriptors []types.ResourceDescriptor) (map[string]string, error) {
	hashes := make(map[string]string, len(descriptors))
	for _, d := range descriptors {
		sum, err := HashResource(fsys, d)
		if err != nil {
			return nil, err
		}
		hashes[d.Name] = sum
	}
	return hashes, nil
}

// ContentVersion derives a version tag from the resource set itself,
// for bundle sources that are not git repositories.
func ContentVersion(fsys types.FS, descriptors []types.ResourceDescriptor) (string, error) {
	hashes, err := HashResources(fsys, descriptors)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(hashes))
	for name := range hashes {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		io.WriteString(h, name)
		io.WriteString(h, hashes[name])
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:12], nil
}

func hashTree(fsys types.FS, h io.Writer, dir, rel string) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return kerrors.Wrapf(err, kerrors.ErrFileAccess, "failed to read %s", dir)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		entryRel := filepath.Join(rel, entry.Name())
		full := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := hashTree(fsys, h, full, entryRel); err != nil {
				return err
			}
			continue
		}

		data, err := fsys.ReadFile(full)
		if err != nil {
			return kerrors.Wrapf(err, kerrors.ErrFileAccess, "failed to read %s", full)
		}
		io.WriteString(h, filepath.ToSlash(entryRel))
		h.Write(data)
	}
	return nil
}
