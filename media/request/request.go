// Package request turns image requests into signed URL tokens and back.
package request

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/leeforge/imagevise/errors"
	"github.com/leeforge/imagevise/json"
	"github.com/leeforge/imagevise/media/operator"
	"github.com/leeforge/imagevise/media/pipeline"
	"github.com/leeforge/imagevise/security"
)

// ImageRequest is a source URL plus the pipeline to render it with.
type ImageRequest struct {
	SourceURL *url.URL
	Pipeline  *pipeline.Pipeline
}

// payload is the signed JSON document. Field order is part of the wire
// format: pipeline first, then src_url.
type payload struct {
	Pipeline []pipeline.Step `json:"pipeline"`
	SrcURL   string          `json:"src_url"`
}

// New validates src and wraps it with p.
func New(src string, p *pipeline.Pipeline) (*ImageRequest, error) {
	u, err := parseSourceURL(src)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = pipeline.New()
	}
	return &ImageRequest{SourceURL: u, Pipeline: p}, nil
}

func parseSourceURL(src string) (*url.URL, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.NewURL("the src_url parameter must be non-empty")
	}
	u, err := url.Parse(src)
	if err != nil {
		return nil, errors.NewURL(fmt.Sprintf("the src_url parameter is not a valid URL: %v", err)).WithInnerError(err)
	}
	if u.Scheme == "" {
		return nil, errors.NewURL(fmt.Sprintf("the src_url parameter must be an absolute URL, got %s", src))
	}
	return u, nil
}

// MarshalJSON produces the canonical payload used for signing and ETags.
func (r *ImageRequest) MarshalJSON() ([]byte, error) {
	steps, err := r.Pipeline.ToParams()
	if err != nil {
		return nil, err
	}
	return json.Marshal(payload{Pipeline: steps, SrcURL: r.SourceURL.String()})
}

// Fingerprint is the SHA-1 hex digest of the canonical payload. The source
// is assumed never to change, so it identifies the render.
func (r *ImageRequest) Fingerprint() (string, error) {
	data, err := r.MarshalJSON()
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// Token is a signed request ready to be put in a URL. Q is already masked.
type Token struct {
	Q   string
	Sig string
}

// Path renders the token as "/<q>/<sig>".
func (t Token) Path() string {
	return "/" + t.Q + "/" + t.Sig
}

// Query renders the token as "q=<q>&sig=<sig>".
func (t Token) Query() string {
	return url.Values{"q": {t.Q}, "sig": {t.Sig}}.Encode()
}

// EncodeAndSign signs the unmasked, unpadded payload with secret.
func (r *ImageRequest) EncodeAndSign(secret string) (Token, error) {
	if secret == "" {
		return Token{}, fmt.Errorf("cannot sign with an empty secret")
	}
	data, err := r.MarshalJSON()
	if err != nil {
		return Token{}, err
	}
	q := security.EncodeUnpadded(data)
	sig := security.NewSigner(secret).GenerateSignature(q)
	return Token{Q: security.Mask(q), Sig: sig}, nil
}

// VerifyAndDecode checks sig against every secret and only then decodes
// the payload and resolves its pipeline through reg.
func VerifyAndDecode(q, sig string, secrets []string, reg *operator.Registry) (*ImageRequest, error) {
	unmasked := strings.TrimRight(security.Unmask(q), "=")

	if sig == "" || !security.VerifyAny(unmasked, sig, secrets) {
		return nil, errors.NewSignature("Invalid or missing signature")
	}

	data, err := security.DecodeUnpadded(unmasked)
	if err != nil {
		return nil, errors.NewInvalidRequest("The request payload is not valid Base64").WithInnerError(err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewInvalidRequest("The request payload is not a JSON object").WithInnerError(err)
	}

	rawURL, ok := doc["src_url"]
	if !ok {
		return nil, errors.NewMissingParameter("src_url")
	}
	var src string
	if err := json.Unmarshal(rawURL, &src); err != nil {
		return nil, errors.NewURL("the src_url parameter must be a string").WithInnerError(err)
	}
	u, err := parseSourceURL(src)
	if err != nil {
		return nil, err
	}

	rawPipeline, ok := doc["pipeline"]
	if !ok {
		return nil, errors.NewMissingParameter("pipeline")
	}
	var steps []pipeline.Step
	if err := json.Unmarshal(rawPipeline, &steps); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("the pipeline parameter is malformed: %v", err)).WithInnerError(err)
	}
	p, err := pipeline.FromParams(reg, steps)
	if err != nil {
		return nil, err
	}

	return &ImageRequest{SourceURL: u, Pipeline: p}, nil
}

// ParamsFrom picks q and sig out of framework parameters. Keys may be
// given as "q" or ":q".
func ParamsFrom(params map[string]string) (q, sig string, err error) {
	q, ok := lookup(params, "q")
	if !ok {
		return "", "", errors.NewMissingParameter("q")
	}
	sig, ok = lookup(params, "sig")
	if !ok {
		return "", "", errors.NewMissingParameter("sig")
	}
	return q, sig, nil
}

func lookup(params map[string]string, key string) (string, bool) {
	if v, ok := params[key]; ok {
		return v, true
	}
	v, ok := params[":"+key]
	return v, ok
}

// ImagePath builds a pipeline with build and returns the signed path for
// src. An empty pipeline is rejected.
func ImagePath(src, secret string, reg *operator.Registry, build func(b *pipeline.Builder)) (string, error) {
	b := pipeline.NewBuilder(reg)
	if build != nil {
		build(b)
	}
	p, err := b.Build()
	if err != nil {
		return "", err
	}
	if p.IsEmpty() {
		return "", errors.NewInvalidRequest("Image pipeline has no steps defined")
	}
	r, err := New(src, p)
	if err != nil {
		return "", err
	}
	token, err := r.EncodeAndSign(secret)
	if err != nil {
		return "", err
	}
	return token.Path(), nil
}
