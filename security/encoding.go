package security

import (
	"encoding/base64"
	"strings"
)

var (
	// URL 中不安全的字符与替代字符
	maskReplacer   = strings.NewReplacer("/", "-", "+", "_")
	unmaskReplacer = strings.NewReplacer("-", "/", "_", "+")
)

// EncodeUnpadded 标准 base64 编码并去掉尾部的 '='
func EncodeUnpadded(data []byte) string {
	return strings.TrimRight(base64.StdEncoding.EncodeToString(data), "=")
}

// DecodeUnpadded 解码标准 base64，尾部 '=' 可有可无
func DecodeUnpadded(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// Mask 将 '/' 与 '+' 替换为 '-' 与 '_'
func Mask(s string) string {
	return maskReplacer.Replace(s)
}

// Unmask 是 Mask 的逆操作
func Unmask(s string) string {
	return unmaskReplacer.Replace(s)
}
