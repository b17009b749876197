package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashSeparator 文本与媒体标识之间的固定分隔符
// 保证纯文本帖与纯媒体帖只有在非空部分完全相同时才会碰撞
const hashSeparator = "|"

// Fingerprint 计算内容指纹：sha256(text + "|" + mediaID) 的十六进制
// 空文本与无媒体都归一化为空串参与拼接，结果确定且与调用时机无关
func Fingerprint(text, mediaID string) string {
	sum := sha256.Sum256([]byte(text + hashSeparator + mediaID))
	return hex.EncodeToString(sum[:])
}
