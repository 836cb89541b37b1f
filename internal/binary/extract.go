package binary

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/OpenSecretCloud/maple-sidecar/internal/platform"
)

// Extract unpacks archivePath into destDir, dispatching on the archive
// type. Every regular file is written under a temporary name and renamed
// into place after a complete copy, so a crash mid-extraction never leaves
// a runnable binary at its final path.
func Extract(archivePath, destDir string, archive platform.ArchiveType) error {
	switch archive {
	case platform.ArchiveTarGz:
		return extractTarGz(archivePath, destDir)
	case platform.ArchiveZip:
		return extractZip(archivePath, destDir)
	default:
		return fmt.Errorf("unsupported archive type: %s", archive)
	}
}

func extractTarGz(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := safeTarget(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := writeFileAtomic(target, tarReader, os.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("write file %s: %w", target, err)
			}

		case tar.TypeSymlink:
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", target, err)
			}

		default:
			// Skip char devices, block devices, etc.
			continue
		}
	}

	return nil
}

func extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for _, file := range reader.File {
		target, err := safeTarget(destDir, file.Name)
		if err != nil {
			return err
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
			continue
		}

		src, err := file.Open()
		if err != nil {
			return fmt.Errorf("open archived file %s: %w", file.Name, err)
		}
		err = writeFileAtomic(target, src, file.Mode())
		src.Close()
		if err != nil {
			return fmt.Errorf("write file %s: %w", target, err)
		}
	}

	return nil
}

// safeTarget joins name under destDir, rejecting path traversal.
func safeTarget(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path: %s", name)
	}
	return target, nil
}

// writeFileAtomic copies src to target via a temporary sibling file and a
// rename, creating parent directories as needed.
func writeFileAtomic(target string, src io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	tmpPath := target + ".partial"
	outFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(outFile, src); err != nil {
		outFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("copy contents: %w", err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// SetExecutable marks path executable. File modes carry no execute-bit
// semantics on Windows, where this is a no-op.
func SetExecutable(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	return nil
}
