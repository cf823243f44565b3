// Package ipfsstore stores index objects on an IPFS node through its HTTP
// RPC API (/api/v0).
package ipfsstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bsm/binindex"
	"github.com/ipfs/go-cid"
	"oras.land/oras-go/v2/registry/remote/retry"
)

// chunkSize is the default kubo chunker size. Objects up to this size are
// stored as a single raw block, so their CID can be derived locally.
const chunkSize = 256 << 10

// retryPolicy retries transient failures only. The RPC API answers every
// failed command with 500, so those are final.
var retryPolicy retry.Policy = &retry.GenericPolicy{
	Retryable: func(resp *http.Response, err error) (bool, error) {
		if err == nil && resp.StatusCode == http.StatusInternalServerError {
			return false, nil
		}
		return retry.DefaultPredicate(resp, err)
	},
	Backoff:  retry.DefaultBackoff,
	MinWait:  200 * time.Millisecond,
	MaxWait:  3 * time.Second,
	MaxRetry: 5,
}

func newRetryClient() *http.Client {
	transport := retry.NewTransport(http.DefaultTransport)
	transport.Policy = func() retry.Policy { return retryPolicy }
	return &http.Client{Transport: transport}
}

// APIError is returned when the node responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ipfsstore: api error (status %d): %s", e.StatusCode, e.Message)
}

// Options define store specific options.
type Options struct {
	// Client is the HTTP client to use.
	// Default: a client which retries timeouts, 429 and 502-504 responses.
	Client *http.Client

	// NoPin disables pinning of added objects.
	NoPin bool

	// Logger receives request failures. Default: discard.
	Logger *slog.Logger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.Client == nil {
		oo.Client = newRetryClient()
	}
	if oo.Logger == nil {
		oo.Logger = slog.New(slog.DiscardHandler)
	}
	return &oo
}

// Store is an IPFS backed binindex.Store. Addresses are CIDv1 strings.
type Store struct {
	base *url.URL
	o    *Options
}

// New returns a store for the node at endpoint, e.g.
// "http://127.0.0.1:5001". The /api/v0 path is appended automatically.
func New(endpoint string, o *Options) (*Store, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("ipfsstore: bad endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("ipfsstore: bad endpoint %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("ipfsstore: bad endpoint %q: missing host", endpoint)
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(u.Path, "/api/v0") {
		u.Path += "/api/v0"
	}
	u.RawQuery, u.Fragment = "", ""

	return &Store{base: u, o: o.norm()}, nil
}

// Put implements binindex.Store.
func (s *Store) Put(ctx context.Context, data []byte) (binindex.Address, error) {
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "object.json")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	query := url.Values{
		"cid-version": {"1"},
		"raw-leaves":  {"true"},
		"pin":         {fmt.Sprint(!s.o.NoPin)},
		"quieter":     {"true"},
	}

	var res struct {
		Hash string `json:"Hash"`
	}
	if err := s.call(ctx, "add", query, body, mw.FormDataContentType(), func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&res)
	}); err != nil {
		return "", err
	}

	c, err := cid.Decode(res.Hash)
	if err != nil {
		return "", fmt.Errorf("ipfsstore: node returned bad hash %q: %w", res.Hash, err)
	}
	if err := verify(c, data); err != nil {
		return "", err
	}
	return binindex.Address(c.String()), nil
}

// Get implements binindex.Store.
func (s *Store) Get(ctx context.Context, addr binindex.Address) ([]byte, error) {
	c, err := cid.Decode(string(addr))
	if err != nil {
		return nil, fmt.Errorf("ipfsstore: bad address %q: %w", addr, err)
	}

	var data []byte
	if err := s.call(ctx, "cat", url.Values{"arg": {c.String()}}, nil, "", func(r io.Reader) (err error) {
		data, err = io.ReadAll(r)
		return
	}); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "not found") {
			return nil, binindex.ErrNotFound
		}
		return nil, err
	}

	if err := verify(c, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) call(ctx context.Context, cmd string, query url.Values, body *bytes.Buffer, contentType string, parse func(io.Reader) error) error {
	u := *s.base
	u.Path += "/" + cmd
	u.RawQuery = query.Encode()

	var reqBody io.Reader
	if body != nil {
		reqBody = body
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), reqBody)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.o.Client.Do(req)
	if err != nil {
		s.o.Logger.Warn("ipfs request failed", slog.String("cmd", cmd), slog.Any("error", err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}

		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var payload struct {
			Message string `json:"Message"`
		}
		if json.Unmarshal(msg, &payload) == nil && payload.Message != "" {
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(msg))
		}

		s.o.Logger.Warn("ipfs request rejected", slog.String("cmd", cmd), slog.Int("status", resp.StatusCode), slog.String("message", apiErr.Message))
		return apiErr
	}
	return parse(resp.Body)
}

// verify checks single-block objects against their CID. Larger objects are
// chunked by the node into a DAG which cannot be checked without
// re-chunking.
func verify(c cid.Cid, data []byte) error {
	if c.Prefix().Codec != cid.Raw || len(data) > chunkSize {
		return nil
	}

	expected, err := c.Prefix().Sum(data)
	if err != nil {
		return err
	}
	if !expected.Equals(c) {
		return fmt.Errorf("%w: %s", binindex.ErrCorrupt, c)
	}
	return nil
}
