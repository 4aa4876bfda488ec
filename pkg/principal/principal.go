package principal

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
)

const (
	// maxRawLen 是 principal 原始字节的最大长度。
	maxRawLen = 29
	// selfAuthSuffix 标记自认证 principal（由公钥派生）。
	selfAuthSuffix = 0x02
	// anonymousByte 是匿名 principal 的唯一字节。
	anonymousByte = 0x04
)

var (
	// ErrInvalidText 表示文本形式无法解析。
	ErrInvalidText = errors.New("invalid principal text")
	// ErrChecksumMismatch 表示 CRC32 校验失败。
	ErrChecksumMismatch = errors.New("principal checksum mismatch")
)

var base32Enc = base32.StdEncoding.WithPadding(base32.NoPadding)

// Principal 是标识调用方账户的不可变值，可直接比较、可作 map key。
type Principal struct {
	raw string
}

// FromRaw 从原始字节构造 Principal。
func FromRaw(raw []byte) (Principal, error) {
	if len(raw) > maxRawLen {
		return Principal{}, fmt.Errorf("principal raw too long: %d bytes", len(raw))
	}
	return Principal{raw: string(raw)}, nil
}

// MustFromRaw 等价于 FromRaw，解析失败时 panic，仅用于常量和测试。
func MustFromRaw(raw []byte) Principal {
	p, err := FromRaw(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// SelfAuthenticating 由 DER 公钥派生自认证 principal。
func SelfAuthenticating(derPublicKey []byte) Principal {
	digest := sha256.Sum224(derPublicKey)
	raw := make([]byte, 0, sha256.Size224+1)
	raw = append(raw, digest[:]...)
	raw = append(raw, selfAuthSuffix)
	return Principal{raw: string(raw)}
}

// Anonymous 返回匿名 principal。
func Anonymous() Principal {
	return Principal{raw: string([]byte{anonymousByte})}
}

// FromText 解析标准文本形式（小写 base32，5 字符分组，带 CRC32 前缀）。
func FromText(text string) (Principal, error) {
	ungrouped := strings.ReplaceAll(text, "-", "")
	for _, group := range strings.Split(text, "-") {
		if len(group) == 0 || len(group) > 5 {
			return Principal{}, fmt.Errorf("%w: bad grouping in %q", ErrInvalidText, text)
		}
	}
	decoded, err := base32Enc.DecodeString(strings.ToUpper(ungrouped))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidText, err)
	}
	if len(decoded) < 4 {
		return Principal{}, fmt.Errorf("%w: too short", ErrInvalidText)
	}
	sum := binary.BigEndian.Uint32(decoded[:4])
	raw := decoded[4:]
	if sum != crc32.ChecksumIEEE(raw) {
		return Principal{}, ErrChecksumMismatch
	}
	return FromRaw(raw)
}

// Raw 返回原始字节副本。
func (p Principal) Raw() []byte {
	return []byte(p.raw)
}

// Empty 报告是否为零值 principal。
func (p Principal) Empty() bool {
	return len(p.raw) == 0
}

// Equal 比较两个 principal 是否相同。
func (p Principal) Equal(other Principal) bool {
	return p.raw == other.raw
}

// IsAnonymous 报告是否为匿名 principal。
func (p Principal) IsAnonymous() bool {
	return p.raw == string([]byte{anonymousByte})
}

// String 输出文本形式：CRC32 前缀 + 原始字节，小写 base32，5 字符分组。
func (p Principal) String() string {
	buf := make([]byte, 4, 4+len(p.raw))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE([]byte(p.raw)))
	buf = append(buf, p.raw...)
	encoded := strings.ToLower(base32Enc.EncodeToString(buf))
	var b strings.Builder
	for i, r := range encoded {
		if i > 0 && i%5 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MarshalText 实现 encoding.TextMarshaler，供 JSON 序列化使用。
func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler。
func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := FromText(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
