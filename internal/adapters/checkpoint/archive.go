package checkpoint

import (
	"archive/tar"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/ulikunitz/xz"
	"go.trai.ch/zerr"
)

// packTree archives dir into a tar.xz file at dest. Headers are normalized
// (zero mtime, no ownership) so the same tree always produces the same
// archive bytes regardless of when or by whom it is packed. A missing dir is
// archived as an empty tree.
func packTree(dir, dest string) (err error) {
	out, err := os.Create(dest) //nolint:gosec // staging path owned by the manager
	if err != nil {
		return zerr.Wrap(err, "failed to create archive file")
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = zerr.Wrap(cerr, "failed to close archive file")
		}
	}()

	xzw, err := xz.NewWriter(out)
	if err != nil {
		return zerr.Wrap(err, "failed to create xz writer")
	}
	tw := tar.NewWriter(xzw)

	if _, serr := os.Stat(dir); serr == nil {
		if werr := writeTree(tw, dir); werr != nil {
			return werr
		}
	} else if !errors.Is(serr, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(serr, "failed to stat build directory"), "dir", dir)
	}

	if err := tw.Close(); err != nil {
		return zerr.Wrap(err, "failed to finalize tar stream")
	}
	if err := xzw.Close(); err != nil {
		return zerr.Wrap(err, "failed to finalize xz stream")
	}
	return nil
}

func writeTree(tw *tar.Writer, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return zerr.With(zerr.Wrap(err, "walk failed"), "path", path)
		}
		if path == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return zerr.Wrap(err, "failed to relativize path")
		}

		info, err := d.Info()
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to stat entry"), "path", path)
		}

		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to read symlink"), "path", path)
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return zerr.Wrap(err, "failed to build tar header")
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		// Normalize everything that varies between hosts and runs so the
		// archive checksum depends only on tree contents.
		hdr.ModTime = time.Unix(0, 0)
		hdr.AccessTime = time.Time{}
		hdr.ChangeTime = time.Time{}
		hdr.Uid = 0
		hdr.Gid = 0
		hdr.Uname = ""
		hdr.Gname = ""

		if err := tw.WriteHeader(hdr); err != nil {
			return zerr.Wrap(err, "failed to write tar header")
		}

		if info.Mode().IsRegular() {
			f, err := os.Open(path) //nolint:gosec // path comes from the walked tree
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
			}
			_, cerr := io.Copy(tw, f)
			f.Close() //nolint:errcheck,gosec // read-only handle
			if cerr != nil {
				return zerr.With(zerr.Wrap(cerr, "failed to archive file"), "path", path)
			}
		}
		return nil
	})
}

// unpackTree extracts a tar.xz archive into dir, which must be empty or
// absent. Entries escaping dir are rejected.
func unpackTree(src, dir string) error {
	in, err := os.Open(src) //nolint:gosec // archive path owned by the manager
	if err != nil {
		return zerr.Wrap(err, "failed to open archive")
	}
	defer in.Close() //nolint:errcheck // read-only handle

	xzr, err := xz.NewReader(in)
	if err != nil {
		return zerr.Wrap(err, "failed to create xz reader")
	}
	tr := tar.NewReader(xzr)

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create target directory")
	}

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return zerr.Wrap(err, "failed to read tar entry")
		}

		name := filepath.FromSlash(hdr.Name)
		if filepath.IsAbs(name) || strings.Contains(name, "..") {
			return zerr.With(zerr.New("archive entry escapes target"), "entry", hdr.Name)
		}
		target := filepath.Join(dir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, hdr.FileInfo().Mode().Perm()); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create directory"), "entry", hdr.Name)
			}
		case tar.TypeSymlink:
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create symlink"), "entry", hdr.Name)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return zerr.Wrap(err, "failed to create parent directory")
			}
			if err := extractFile(tr, target, hdr.FileInfo().Mode().Perm()); err != nil {
				return zerr.With(err, "entry", hdr.Name)
			}
		default:
			return zerr.With(zerr.New("unsupported archive entry type"), "entry", hdr.Name)
		}
	}
}

func extractFile(r io.Reader, target string, mode fs.FileMode) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode) //nolint:gosec // target validated against traversal
	if err != nil {
		return zerr.Wrap(err, "failed to create file")
	}
	if _, err := io.Copy(f, r); err != nil { //nolint:gosec // archive is integrity-checked before restore
		f.Close() //nolint:errcheck,gosec // error path
		return zerr.Wrap(err, "failed to extract file")
	}
	return f.Close()
}

// hashFile computes the xxhash64 checksum of a file as a fixed-width hex
// string.
func hashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // archive path owned by the manager
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to open archive for hashing"), "path", path)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to hash archive"), "path", path)
	}
	return formatChecksum(h.Sum64()), nil
}
