package upload

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ibeckermayer/postbot/internal/types"
)

const downloadTimeout = 5 * time.Minute

// PrepareError is a dropped attachment and why.
type PrepareError struct {
	Attachment types.Attachment
	Err        error
}

func (e *PrepareError) Error() string {
	return fmt.Sprintf("failed to prepare %s: %v", e.Attachment.Source, e.Err)
}

func (e *PrepareError) Unwrap() error {
	return e.Err
}

// Preparer makes an attachment's bytes available as a local file. It must
// be safe for concurrent use.
type Preparer interface {
	Prepare(ctx context.Context, a types.Attachment) (types.Attachment, error)
}

// FilePreparer checks local files and downloads remote ones into Dir.
type FilePreparer struct {
	client *resty.Client
	dir    string
}

// NewFilePreparer downloads into dir, or a temp directory when dir is
// empty.
func NewFilePreparer(dir string) *FilePreparer {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "postbot")
	}
	return &FilePreparer{
		client: resty.New().SetTimeout(downloadTimeout),
		dir:    dir,
	}
}

// Dir is where downloads and renamed copies go.
func (p *FilePreparer) Dir() string {
	return p.dir
}

func (p *FilePreparer) Prepare(ctx context.Context, a types.Attachment) (types.Attachment, error) {
	if a.Remote() {
		return p.download(ctx, a)
	}

	info, err := os.Stat(a.Source)
	if err != nil {
		return a, &PrepareError{Attachment: a, Err: err}
	}
	if info.IsDir() {
		return a, &PrepareError{Attachment: a, Err: fmt.Errorf("%s is a directory", a.Source)}
	}
	return a.WithLocalPath(a.Source), nil
}

func (p *FilePreparer) download(ctx context.Context, a types.Attachment) (types.Attachment, error) {
	if err := os.MkdirAll(p.dir, 0700); err != nil {
		return a, &PrepareError{Attachment: a, Err: err}
	}

	name := "download"
	if u, err := url.Parse(a.Source); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		name = path.Base(u.Path)
	}
	dest := filepath.Join(p.dir, shortID(a)+"_"+SafeName(name))

	resp, err := p.client.R().
		SetContext(ctx).
		SetOutput(dest).
		Get(a.Source)
	if err != nil {
		os.Remove(dest)
		return a, &PrepareError{Attachment: a, Err: err}
	}
	if resp.IsError() {
		os.Remove(dest)
		return a, &PrepareError{Attachment: a, Err: fmt.Errorf("download returned %s", resp.Status())}
	}
	return a.WithLocalPath(dest), nil
}

func shortID(a types.Attachment) string {
	if len(a.ID) > 8 {
		return a.ID[:8]
	}
	if a.ID == "" {
		return "file"
	}
	return a.ID
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName replaces characters upload forms commonly reject.
func SafeName(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	if s == "" || s == "." || s == ".." {
		return "file"
	}
	return s
}
