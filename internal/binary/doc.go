// Package binary downloads, verifies, extracts, and caches the maple-proxy
// executable the sidecar supervises.
//
// # Trust model
//
// Archives are downloaded only from the official release source and are
// never handed to the supervisor unverified: the published SHA-256 digest is
// checked before extraction, and a corrupt archive is deleted on the spot.
// Releases that predate checksum publication are tolerated with a logged
// warning. Operators who configure a GPG keyring additionally get a
// detached-signature check for authenticity.
//
// # Cache layout
//
// The cache root holds a ".latest-version" marker plus one directory per
// downloaded version, each owning the extracted executable; the downloaded
// archive lives there only transiently. Old versions beyond a small
// retention count are pruned best-effort after every install.
//
// # Components
//
//   - Manager: orchestrates resolve, download, verify, extract, prune
//   - Downloader: HTTP fetches with atomic file placement
//   - Verifier: SHA-256 checksum and optional GPG signature checks
//   - Extract: tar.gz and zip unpacking with path-traversal guards
package binary
