package delegation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/olekid/signer-agent/internal/infra/keystore"
	"github.com/olekid/signer-agent/pkg/identity"
	"github.com/olekid/signer-agent/pkg/principal"
)

const (
	chainKeyPrefix    = "delegation:"
	identityKeyPrefix = "identity:"
)

// Store 在通用 keystore 之上持久化委托链和基础身份。
type Store struct {
	kv keystore.Store
}

// NewStore 构造 Store。
func NewStore(kv keystore.Store) (*Store, error) {
	if kv == nil {
		return nil, errors.New("keystore is required")
	}
	return &Store{kv: kv}, nil
}

func chainKey(owner principal.Principal, publicKey []byte) string {
	return chainKeyPrefix + owner.String() + ":" + base64.StdEncoding.EncodeToString(publicKey)
}

func identityKey(owner principal.Principal) string {
	return identityKeyPrefix + owner.String()
}

// Chain 按 (owner, publicKey) 查找缓存的委托链。
func (s *Store) Chain(ctx context.Context, owner principal.Principal, publicKey []byte) (identity.Chain, bool, error) {
	data, ok, err := s.kv.Get(ctx, chainKey(owner, publicKey))
	if err != nil || !ok {
		return identity.Chain{}, false, err
	}
	chain, err := identity.UnmarshalChain(data)
	if err != nil {
		return identity.Chain{}, false, fmt.Errorf("cached chain for %s: %w", owner, err)
	}
	return chain, true, nil
}

// PutChain 缓存委托链，覆盖旧条目。
func (s *Store) PutChain(ctx context.Context, owner principal.Principal, publicKey []byte, chain identity.Chain) error {
	data, err := identity.MarshalChain(chain)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, chainKey(owner, publicKey), data)
}

// BaseIdentity 按账户查找缓存的基础身份。
func (s *Store) BaseIdentity(ctx context.Context, owner principal.Principal) (identity.Identity, bool, error) {
	data, ok, err := s.kv.Get(ctx, identityKey(owner))
	if err != nil || !ok {
		return nil, false, err
	}
	var rec identity.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("cached identity for %s: %w", owner, err)
	}
	id, err := identity.FromRecord(rec)
	if err != nil {
		return nil, false, fmt.Errorf("cached identity for %s: %w", owner, err)
	}
	return id, true, nil
}

// PutBaseIdentity 持久化基础身份。
func (s *Store) PutBaseIdentity(ctx context.Context, owner principal.Principal, id identity.Persistable) error {
	rec, err := id.Record()
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, identityKey(owner), data)
}
