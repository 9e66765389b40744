package utils

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iamcredentials/v1"
	"google.golang.org/api/option"
)

// SignerCredentials selects how download links are signed. A service account key (as JSON, or as
// email plus PEM key) signs locally; an email alone signs through the IAM credentials API.
type SignerCredentials struct {
	ServiceAccountJSON string
	Email              string
	PrivateKey         string
}

// URLSigner issues V4 signed GET links for stored objects.
type URLSigner struct {
	accessID   string
	privateKey []byte
	signBlob   func([]byte) ([]byte, error)
}

// NewURLSigner resolves the signing identity once.
func NewURLSigner(ctx context.Context, creds SignerCredentials) (*URLSigner, error) {
	if raw := strings.TrimSpace(creds.ServiceAccountJSON); raw != "" {
		var key struct {
			ClientEmail string `json:"client_email"`
			PrivateKey  string `json:"private_key"`
		}
		if err := json.Unmarshal([]byte(raw), &key); err != nil {
			return nil, fmt.Errorf("service account json: %w", err)
		}
		if key.ClientEmail == "" || key.PrivateKey == "" {
			return nil, errors.New("service account json needs client_email and private_key")
		}
		return &URLSigner{accessID: key.ClientEmail, privateKey: pemBytes(key.PrivateKey)}, nil
	}

	email := strings.TrimSpace(creds.Email)
	if email != "" && strings.TrimSpace(creds.PrivateKey) != "" {
		return &URLSigner{accessID: email, privateKey: pemBytes(creds.PrivateKey)}, nil
	}
	if email == "" && metadata.OnGCE() {
		var err error
		if email, err = metadata.Email("default"); err != nil {
			return nil, fmt.Errorf("default service account: %w", err)
		}
	}
	if email == "" {
		return nil, errors.New("a signer email or service account key is required")
	}
	signBlob, err := iamSignBlob(ctx, email)
	if err != nil {
		return nil, err
	}
	return &URLSigner{accessID: email, signBlob: signBlob}, nil
}

// AccessID is the service account the links are signed as.
func (s *URLSigner) AccessID() string { return s.accessID }

// SignedGetURL links to bucket/objectKey for ttl from now.
func (s *URLSigner) SignedGetURL(bucket, objectKey string, ttl time.Duration) (string, error) {
	if bucket == "" || objectKey == "" {
		return "", errors.New("bucket and object are required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("link lifetime must be positive, got %s", ttl)
	}
	return storage.SignedURL(bucket, objectKey, &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(ttl),
		GoogleAccessID: s.accessID,
		PrivateKey:     s.privateKey,
		SignBytes:      s.signBlob,
	})
}

// env files carry the PEM newlines escaped
func pemBytes(key string) []byte {
	return []byte(strings.ReplaceAll(strings.TrimSpace(key), `\n`, "\n"))
}

func iamSignBlob(ctx context.Context, email string) (func([]byte) ([]byte, error), error) {
	creds, err := google.FindDefaultCredentials(ctx, iamcredentials.CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("application default credentials: %w", err)
	}
	svc, err := iamcredentials.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("iamcredentials service: %w", err)
	}
	name := "projects/-/serviceAccounts/" + email
	return func(payload []byte) ([]byte, error) {
		resp, err := svc.Projects.ServiceAccounts.SignBlob(name, &iamcredentials.SignBlobRequest{
			Payload: base64.StdEncoding.EncodeToString(payload),
		}).Do()
		if err != nil {
			return nil, fmt.Errorf("sign blob as %s: %w", email, err)
		}
		return base64.StdEncoding.DecodeString(resp.SignedBlob)
	}, nil
}

// ObjectAccessURL is the plain url of an object. base may hold an {objectKey} placeholder or end in a
// query; when empty the public storage.googleapis.com url of the bucket is used.
func ObjectAccessURL(base, bucket, objectKey string) string {
	base = strings.TrimSpace(base)
	query := strings.Contains(base, "?")
	key := objectKey
	if query {
		key = url.QueryEscape(objectKey)
	}
	switch {
	case base == "":
		return "https://storage.googleapis.com/" + bucket + "/" + objectKey
	case strings.Contains(base, "{objectKey}"):
		return strings.ReplaceAll(base, "{objectKey}", key)
	case query:
		return base + key
	default:
		return strings.TrimRight(base, "/") + "/" + key
	}
}
