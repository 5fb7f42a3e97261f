package llmclient

import (
	"github.com/awnumar/memguard"
)

// Secret holds one credential-adjacent value (an API key or bearer token)
// sealed in a memguard enclave rather than as a plain Go string, so it
// never lingers decrypted in the heap or shows up in a crash dump.
type Secret struct {
	enclave *memguard.Enclave
}

// NewSecret seals raw into an enclave. raw is wiped by memguard as part of
// sealing; callers should not reuse it afterward.
func NewSecret(raw []byte) *Secret {
	if len(raw) == 0 {
		return &Secret{}
	}
	return &Secret{enclave: memguard.NewEnclave(raw)}
}

// NewSecretString is a convenience wrapper for callers holding a string
// (e.g. from os.Getenv), which cannot itself be wiped.
func NewSecretString(s string) *Secret {
	return NewSecret([]byte(s))
}

// Empty reports whether no credential was ever sealed.
func (s *Secret) Empty() bool { return s == nil || s.enclave == nil }

// Use decrypts the secret into a locked buffer for the duration of fn,
// then destroys the buffer before returning. The plaintext never escapes
// this call.
func (s *Secret) Use(fn func(plaintext []byte) error) error {
	if s.Empty() {
		return fn(nil)
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// String decrypts and copies out a plain string. Prefer Use for anything
// that can avoid holding the plaintext outside a guarded buffer; this
// exists because net/http's API (Authorization header, query string)
// ultimately requires a plain string anyway.
func (s *Secret) String() string {
	if s.Empty() {
		return ""
	}
	var out string
	_ = s.Use(func(plaintext []byte) error {
		out = string(plaintext)
		return nil
	})
	return out
}
