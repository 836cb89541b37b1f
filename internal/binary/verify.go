package binary

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/rs/zerolog"
)

// ErrChecksumMismatch indicates a downloaded archive did not match its
// published SHA-256 digest. The corrupt file is deleted before this error is
// returned.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Verifier checks downloaded archives against their published digests and,
// when a keyring is configured, a detached GPG signature.
type Verifier struct {
	downloader *Downloader
	// keyringPath is an armored public keyring on disk; empty disables GPG
	// verification entirely.
	keyringPath string
	log         zerolog.Logger
}

// NewVerifier creates a verifier sharing the manager's downloader.
func NewVerifier(downloader *Downloader, keyringPath string, log zerolog.Logger) *Verifier {
	return &Verifier{
		downloader:  downloader,
		keyringPath: keyringPath,
		log:         log,
	}
}

// VerifyChecksum fetches checksumURL and compares its published digest with
// the SHA-256 of the file at archivePath. A 404 means the release predates
// checksum publication: verification is skipped with a warning rather than
// failing. Any other non-2xx status is treated as an upstream outage and
// fails hard. On a digest mismatch the corrupt archive is deleted
// immediately so a later attempt starts clean.
func (v *Verifier) VerifyChecksum(ctx context.Context, archivePath, checksumURL string) error {
	body, status, err := v.downloader.Fetch(ctx, checksumURL)
	if err != nil {
		return fmt.Errorf("download checksum: %w", err)
	}
	if status == http.StatusNotFound {
		v.log.Warn().Str("url", checksumURL).Msg("no checksum published for this release; skipping verification")
		return nil
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("download checksum %s: unexpected status %d", checksumURL, status)
	}

	// The first whitespace-delimited token is the hex digest; anything after
	// it (usually the file name) is ignored.
	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return fmt.Errorf("checksum file %s is empty", checksumURL)
	}
	expected := fields[0]

	actual, err := fileSHA256(archivePath)
	if err != nil {
		return fmt.Errorf("hash archive: %w", err)
	}

	if !strings.EqualFold(actual, expected) {
		if rmErr := os.Remove(archivePath); rmErr != nil {
			v.log.Warn().Err(rmErr).Str("path", archivePath).Msg("remove corrupt archive")
		}
		return fmt.Errorf("%w for %s: got %s, want %s",
			ErrChecksumMismatch, filepath.Base(archivePath), actual, expected)
	}

	v.log.Debug().Str("sha256", actual).Msg("archive checksum verified")
	return nil
}

// VerifySignature checks the archive against its detached GPG signature. It
// is a no-op unless a keyring was configured. Like checksums, a 404 on the
// signature resource is tolerated with a warning; other failures are hard.
func (v *Verifier) VerifySignature(ctx context.Context, archivePath, signatureURL string) error {
	if v.keyringPath == "" {
		return nil
	}

	body, status, err := v.downloader.Fetch(ctx, signatureURL)
	if err != nil {
		return fmt.Errorf("download signature: %w", err)
	}
	if status == http.StatusNotFound {
		v.log.Warn().Str("url", signatureURL).Msg("no signature published for this release; skipping GPG verification")
		return nil
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("download signature %s: unexpected status %d", signatureURL, status)
	}

	keyring, err := loadKeyring(v.keyringPath)
	if err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	// Try armored first, then raw.
	_, err = openpgp.CheckArmoredDetachedSignature(keyring, archive, bytes.NewReader(body), nil)
	if err != nil {
		if _, seekErr := archive.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind archive: %w", seekErr)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, archive, bytes.NewReader(body), nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature of %s: %w", filepath.Base(archivePath), err)
	}

	v.log.Debug().Msg("archive signature verified")
	return nil
}

// loadKeyring reads an armored (or raw) public keyring from disk.
func loadKeyring(path string) (openpgp.EntityList, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer file.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(file)
	if err != nil {
		if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
			return nil, fmt.Errorf("rewind keyring: %w", seekErr)
		}
		keyring, err = openpgp.ReadKeyRing(file)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

// fileSHA256 calculates the SHA-256 digest of a file as lowercase hex.
func fileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
