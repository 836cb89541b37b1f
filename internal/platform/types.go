package platform

// ArchiveType identifies the compression format of a release artifact.
type ArchiveType string

const (
	// ArchiveTarGz is a gzip-compressed tarball (Linux and macOS releases).
	ArchiveTarGz ArchiveType = "tar.gz"
	// ArchiveZip is a zip archive (Windows releases).
	ArchiveZip ArchiveType = "zip"
)

// Artifact describes the platform-specific release archive for maple-proxy.
// It is derived purely from the running OS and architecture and is immutable
// for the process lifetime.
type Artifact struct {
	// Name is the archive base name without extension, e.g.
	// "maple-proxy-x86_64-unknown-linux-gnu".
	Name string
	// Archive is the compression format the archive uses.
	Archive ArchiveType
}

// Filename returns the full archive file name including extension.
func (a Artifact) Filename() string {
	return a.Name + "." + string(a.Archive)
}
