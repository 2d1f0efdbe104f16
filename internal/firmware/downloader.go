package firmware

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// DefaultTransferTimeout bounds a single file download (§5).
const DefaultTransferTimeout = 60 * time.Second

// worldWritableMode preserves the source's legacy file mode (§4.F, §9).
// Deliberately not narrowed: the note in §9 says a follow-up migration
// should do that at the owning-service level, not here.
const worldWritableMode = 0777

// HTTPGetter fetches a URL's body. Grounded on net/http's client
// interface so tests can substitute a fake without a real network.
type HTTPGetter interface {
	Get(ctx context.Context, url string) (io.ReadCloser, error)
}

// defaultHTTPGetter is the production HTTPGetter, wrapping net/http with
// the per-transfer timeout from §5.
type defaultHTTPGetter struct {
	client *http.Client
}

// NewDefaultHTTPGetter returns an HTTPGetter bounded by DefaultTransferTimeout.
func NewDefaultHTTPGetter() HTTPGetter {
	return &defaultHTTPGetter{client: &http.Client{Timeout: DefaultTransferTimeout}}
}

func (g *defaultHTTPGetter) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("firmware: unexpected status %d fetching %s", resp.StatusCode, url)
	}
	return resp.Body, nil
}

// Downloader implements §4.F step 5: download each file, checksum
// verify, skip-if-present, atomic move, chmod 0777.
type Downloader struct {
	fs        afero.Fs
	getter    HTTPGetter
	baseURL   string
	firmwareDir string
}

// NewDownloader constructs a Downloader rooted at firmwareDir, fetching
// files relative to baseURL.
func NewDownloader(fs afero.Fs, getter HTTPGetter, baseURL, firmwareDir string) *Downloader {
	return &Downloader{fs: fs, getter: getter, baseURL: baseURL, firmwareDir: firmwareDir}
}

// DestinationPath returns the on-disk path for a file of the given type
// and name: <firmwareDir>/<type>/<fileName> (§6).
func (d *Downloader) DestinationPath(fileType, fileName string) string {
	return filepath.Join(d.firmwareDir, fileType, fileName)
}

// EnsureFile ensures the file described by info is present and valid at
// its destination, downloading it if necessary. Returns the destination
// path once available.
func (d *Downloader) EnsureFile(ctx context.Context, info FileInfo) (string, error) {
	dest := d.DestinationPath(info.Type, info.FileName)

	if exists, err := afero.Exists(d.fs, dest); err != nil {
		return "", fmt.Errorf("firmware: stat %s: %w", dest, err)
	} else if exists {
		if info.ExpectedMD5 == "" {
			return dest, nil
		}
		match, err := d.md5Matches(dest, info.ExpectedMD5)
		if err != nil {
			return "", err
		}
		if match {
			return dest, nil
		}
		// Integrity error: delete and treat as download failure, retry
		// loop re-enters (§7 item 5).
		if err := d.fs.Remove(dest); err != nil {
			return "", fmt.Errorf("firmware: removing stale %s: %w", dest, err)
		}
	}

	return dest, d.download(ctx, info, dest)
}

func (d *Downloader) md5Matches(path, expected string) (bool, error) {
	f, err := d.fs.Open(path)
	if err != nil {
		return false, fmt.Errorf("firmware: opening %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, fmt.Errorf("firmware: hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)) == expected, nil
}

func (d *Downloader) download(ctx context.Context, info FileInfo, dest string) error {
	if d.baseURL == "" {
		return fmt.Errorf("firmware: %w", ErrEmptyBaseURL)
	}

	url := d.baseURL + "/" + info.FileName

	body, err := d.getter.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("firmware: downloading %s: %w", url, err)
	}
	defer body.Close()

	if err := d.fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("firmware: creating firmware dir: %w", err)
	}

	tmpPath := dest + ".tmp-" + uuid.NewString()

	tmp, err := d.fs.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("firmware: creating temp file %s: %w", tmpPath, err)
	}

	h := md5.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), body); err != nil {
		tmp.Close()
		_ = d.fs.Remove(tmpPath)
		return fmt.Errorf("firmware: writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = d.fs.Remove(tmpPath)
		return fmt.Errorf("firmware: closing %s: %w", tmpPath, err)
	}

	if info.ExpectedMD5 != "" {
		sum := hex.EncodeToString(h.Sum(nil))
		if sum != info.ExpectedMD5 {
			_ = d.fs.Remove(tmpPath)
			return fmt.Errorf("firmware: %w: expected %s got %s", ErrChecksumMismatch, info.ExpectedMD5, sum)
		}
	}

	if err := d.fs.Rename(tmpPath, dest); err != nil {
		_ = d.fs.Remove(tmpPath)
		return fmt.Errorf("firmware: moving %s into place: %w", tmpPath, err)
	}

	if err := d.fs.Chmod(dest, worldWritableMode); err != nil {
		return fmt.Errorf("firmware: chmod %s: %w", dest, err)
	}

	return nil
}
