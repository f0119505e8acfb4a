// Package sources fetches import inputs from the local filesystem or from an
// S3-compatible bucket.
package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrInvalidRef = errors.New("invalid source reference")

const s3Scheme = "s3://"

// Ref points at one input. Bucket is empty for local files.
type Ref struct {
	Bucket string
	Key    string
	Path   string
}

func (r Ref) IsS3() bool { return r.Bucket != "" }

// Name is the base file name, used for format detection and branch inference.
func (r Ref) Name() string {
	if r.IsS3() {
		return path.Base(r.Key)
	}
	return filepath.Base(r.Path)
}

func (r Ref) String() string {
	if r.IsS3() {
		return s3Scheme + r.Bucket + "/" + r.Key
	}
	return r.Path
}

// ParseRef accepts a filesystem path or s3://bucket/key.
func ParseRef(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, fmt.Errorf("%w: empty", ErrInvalidRef)
	}
	if !strings.HasPrefix(strings.ToLower(raw), s3Scheme) {
		return Ref{Path: raw}, nil
	}
	rest := raw[len(s3Scheme):]
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Ref{}, fmt.Errorf("%w: missing bucket in %q", ErrInvalidRef, raw)
	}
	return Ref{Bucket: bucket, Key: key}, nil
}

type S3Config struct {
	Region    string
	Endpoint  string
	PathStyle bool
}

type Option func(*Loader)

// WithS3Client replaces the lazily built client.
func WithS3Client(client *s3.Client) Option {
	return func(l *Loader) {
		l.client = client
	}
}

type Loader struct {
	cfg S3Config

	mu     sync.Mutex
	client *s3.Client
}

func NewLoader(cfg S3Config, opts ...Option) *Loader {
	l := &Loader{cfg: cfg}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) s3Client(ctx context.Context) (*s3.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client, nil
	}
	region := l.cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	l.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if l.cfg.PathStyle {
			o.UsePathStyle = true
		}
		if l.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(l.cfg.Endpoint)
		}
	})
	return l.client, nil
}

// Fetch reads the whole input into memory.
func (l *Loader) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	if !ref.IsS3() {
		return os.ReadFile(ref.Path)
	}
	if ref.Key == "" || strings.HasSuffix(ref.Key, "/") {
		return nil, fmt.Errorf("%w: %s is not an object", ErrInvalidRef, ref)
	}
	client, err := l.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(ref.Bucket), Key: aws.String(ref.Key)})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	defer out.Body.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return buf.Bytes(), nil
}

// List returns the inputs under a directory or bucket prefix whose extension
// is one of exts, sorted by name.
func (l *Loader) List(ctx context.Context, dir Ref, exts ...string) ([]Ref, error) {
	if !dir.IsS3() {
		return listLocal(dir.Path, exts)
	}
	client, err := l.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	prefix := dir.Key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var refs []Ref
	p := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(dir.Bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.Contains(strings.TrimPrefix(key, prefix), "/") {
				continue
			}
			if matchExt(key, exts) {
				refs = append(refs, Ref{Bucket: dir.Bucket, Key: key})
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Key < refs[j].Key })
	return refs, nil
}

func listLocal(dir string, exts []string) ([]Ref, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var refs []Ref
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		if matchExt(e.Name(), exts) {
			refs = append(refs, Ref{Path: filepath.Join(dir, e.Name())})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs, nil
}

func matchExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
