package publicsuffix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultURL is the upstream location of the Public Suffix List.
const DefaultURL = "https://raw.githubusercontent.com/publicsuffix/list/master/public_suffix_list.dat"

// maxListSize bounds the download; the real list is well under 1 MiB.
var maxListSize int64 = 16 << 20

// Loader keeps a local copy of the rule list fresh and parses it.
type Loader struct {
	// URL to download the list from. Default is DefaultURL.
	URL string

	// Path of the local copy. Required.
	Path string

	// MaxAge is how old the local copy may get before it is downloaded
	// again. Default is 7 days.
	MaxAge time.Duration

	// Timeout bounds a whole download. Default is 10 seconds.
	Timeout time.Duration

	// Client is used for downloads. Default is http.DefaultClient.
	Client *http.Client

	// Logger receives download diagnostics. Default is slog.Default().
	Logger *slog.Logger

	// Now returns the current time. Default is time.Now.
	Now func() time.Time
}

func (l *Loader) defaults() Loader {
	c := *l
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.MaxAge == 0 {
		c.MaxAge = 7 * 24 * time.Hour
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Load returns a RuleSet built from the local copy, downloading a new copy
// first if the local one is missing or older than MaxAge.
//
// If the download fails but an older local copy exists, that copy is used and
// a warning is logged.
func (l *Loader) Load(ctx context.Context) (*RuleSet, error) {
	c := l.defaults()
	if c.Path == "" {
		return nil, &SuffixDataError{Reason: "no local path configured"}
	}

	fi, statErr := os.Stat(c.Path)
	switch {
	case errors.Is(statErr, fs.ErrNotExist):
		c.Logger.Info("downloading public suffix list", slog.String("url", c.URL))
		if err := c.download(ctx); err != nil {
			return nil, &SuffixDataError{Reason: "downloading list", Err: err}
		}
	case statErr != nil:
		return nil, &SuffixDataError{Reason: "reading local copy", Err: statErr}
	case c.Now().Sub(fi.ModTime()) > c.MaxAge:
		c.Logger.Info("downloading new public suffix list",
			slog.String("url", c.URL),
			slog.Duration("age", c.Now().Sub(fi.ModTime())),
		)
		if err := c.download(ctx); err != nil {
			c.Logger.Warn("public suffix list download failed, using stale copy",
				slog.String("path", c.Path),
				slog.Any("error", err),
			)
		}
	}

	f, err := os.Open(c.Path)
	if err != nil {
		return nil, &SuffixDataError{Reason: "reading local copy", Err: err}
	}
	defer f.Close()

	return Parse(f)
}

// download fetches the list into a temporary file and renames it over Path.
func (l *Loader) download(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return err
	}
	tmp := l.Path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(resp.Body, maxListSize+1))
	if err == nil && n > maxListSize {
		err = fmt.Errorf("list exceeds %d bytes", maxListSize)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	// Reject a download that does not parse before it replaces a good copy.
	if err := checkFile(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, l.Path)
}

func checkFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = Parse(f)
	return err
}
