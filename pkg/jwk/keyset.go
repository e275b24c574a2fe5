package jwk

import (
	"sync"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

type keyRef struct {
	alg string
	kid string
}

// KeySet maps (algorithm, key id) to keys. It is safe for concurrent use.
type KeySet struct {
	mu   sync.RWMutex
	keys map[keyRef]*Key
}

// NewKeySet returns a set holding keys. Duplicates keep the first key.
func NewKeySet(keys ...*Key) *KeySet {
	s := &KeySet{keys: make(map[keyRef]*Key, len(keys))}
	for _, k := range keys {
		s.Put(k)
	}
	return s
}

// Put inserts k and reports whether it was added. A key with the same
// algorithm and id already in the set is left untouched and Put returns
// false.
func (s *KeySet) Put(k *Key) bool {
	if k == nil {
		return false
	}
	ref := keyRef{alg: k.Algorithm, kid: k.ID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[ref]; exists {
		return false
	}
	s.keys[ref] = k
	return true
}

// Get returns the key for (alg, kid). An empty kid looks up DefaultKeyID.
func (s *KeySet) Get(alg, kid string) (*Key, bool) {
	if kid == "" {
		kid = DefaultKeyID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[keyRef{alg: alg, kid: kid}]
	return k, ok
}

// Resolve finds the verification key for a token header. A kid must match
// exactly. Without a kid the default key is used, or the only key of that
// algorithm when there is exactly one.
func (s *KeySet) Resolve(alg, kid string) (*Key, error) {
	if k, ok := s.Get(alg, kid); ok {
		return k, nil
	}
	if kid == "" {
		s.mu.RLock()
		var only *Key
		n := 0
		for ref, k := range s.keys {
			if ref.alg == alg {
				only = k
				n++
			}
		}
		s.mu.RUnlock()
		if n == 1 {
			return only, nil
		}
	}
	return nil, sserr.Newf(sserr.CodeKeyNotFound, "jwk: no key for alg %q and kid %q", alg, kid).
		WithDetails(map[string]any{"alg": alg, "kid": kid})
}

// Len returns the number of keys.
func (s *KeySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// IsEmpty reports whether the set has no keys.
func (s *KeySet) IsEmpty() bool { return s.Len() == 0 }

// Keys returns a snapshot of the keys in no particular order.
func (s *KeySet) Keys() []*Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Key, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k)
	}
	return out
}
