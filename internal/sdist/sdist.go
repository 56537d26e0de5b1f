// Package sdist builds source distribution archives. Archives are
// deterministic: member order, modes, and timestamps are fixed so the
// same inputs always produce the same bytes and checksum.
package sdist

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Name returns the archive file name for a repo and version,
// e.g. widgets-1.2.3.tar.gz
func Name(repo, version string) string {
	return fmt.Sprintf("%s-%s.tar.gz", repo, version)
}

// Build produces a gzipped tarball of the given files under a single
// {repo}-{version}/ root directory
func Build(repo, version string, files map[string]string) ([]byte, error) {
	root := fmt.Sprintf("%s-%s", repo, version)

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, path := range paths {
		content := files[path]
		hdr := &tar.Header{
			Name: root + "/" + path,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("failed to write header for %s: %w", path, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize compression: %w", err)
	}

	return buf.Bytes(), nil
}

// Extract unpacks a gzipped tarball into a path -> content map. The
// leading path element is stripped: both our own archives and repository
// source tarballs wrap everything in a single root directory.
func Extract(data []byte) (map[string]string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer gz.Close()

	files := make(map[string]string)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		_, rest, found := strings.Cut(hdr.Name, "/")
		if !found || rest == "" {
			continue
		}

		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		files[rest] = string(content)
	}

	return files, nil
}

// Checksum returns the hex-encoded SHA-256 of the archive
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ChecksumLine formats a sha256sum-compatible entry for the archive
func ChecksumLine(filename string, data []byte) string {
	return fmt.Sprintf("%s  %s\n", Checksum(data), filename)
}
