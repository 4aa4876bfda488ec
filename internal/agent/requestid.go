package agent

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/olekid/signer-agent/internal/infra/remotesigner"
)

// RequestID 是请求内容的规范化标识。
type RequestID [sha256.Size]byte

// String 返回十六进制形式。
func (id RequestID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes 返回字节副本。
func (id RequestID) Bytes() []byte {
	return append([]byte(nil), id[:]...)
}

// RequestIDFromContent 按表示无关哈希计算规范 request id：
// 对每个字段取 sha256(key) || sha256(value)，按序拼接后再做一次 sha256。
func RequestIDFromContent(c remotesigner.Content) RequestID {
	pairs := make([][]byte, 0, 7)
	add := func(key string, value []byte) {
		keyHash := sha256.Sum256([]byte(key))
		valueHash := sha256.Sum256(value)
		pair := make([]byte, 0, 2*sha256.Size)
		pair = append(pair, keyHash[:]...)
		pair = append(pair, valueHash[:]...)
		pairs = append(pairs, pair)
	}

	add("request_type", []byte(c.RequestType))
	add("sender", c.Sender.Raw())
	add("canister_id", c.CanisterID.Raw())
	add("method_name", []byte(c.Method))
	add("arg", c.Arg)
	add("ingress_expiry", encodeULEB128(c.IngressExpiry))
	if len(c.Nonce) > 0 {
		add("nonce", c.Nonce)
	}

	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i], pairs[j]) < 0
	})

	h := sha256.New()
	for _, pair := range pairs {
		h.Write(pair)
	}
	var id RequestID
	copy(id[:], h.Sum(nil))
	return id
}

// encodeULEB128 编码无符号 LEB128，用于整数字段的值哈希。
func encodeULEB128(v uint64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}
