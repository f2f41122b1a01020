package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer HMAC-SHA256 签名工具
type Signer struct {
	secretKey []byte
}

// NewSigner 创建签名工具
func NewSigner(secretKey string) *Signer {
	return &Signer{
		secretKey: []byte(secretKey),
	}
}

// GenerateSignature 生成签名（小写十六进制）
func (s *Signer) GenerateSignature(data string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature 验证签名
func (s *Signer) VerifySignature(data, signature string) bool {
	expectedSignature := s.GenerateSignature(data)
	return hmac.Equal([]byte(expectedSignature), []byte(signature))
}

// VerifyAny 用任一密钥验证签名
//
// 所有密钥都会被计算一遍，不会在命中后提前返回。
func VerifyAny(data, signature string, secretKeys []string) bool {
	matched := false
	for _, key := range secretKeys {
		if NewSigner(key).VerifySignature(data, signature) {
			matched = true
		}
	}
	return matched
}
