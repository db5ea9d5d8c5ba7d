package upbit

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// signToken 生成 Upbit Open API 要求的 JWT。
// 带参数的请求要附上参数串的 SHA512 摘要（query_hash）。
func signToken(creds Credentials, rawQuery string, payload any) (string, error) {
	claims := jwt.MapClaims{
		"access_key": creds.AccessKey,
		"nonce":      uuid.NewString(),
	}
	queryString, err := paramString(rawQuery, payload)
	if err != nil {
		return "", err
	}
	if queryString != "" {
		sum := sha512.Sum512([]byte(queryString))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(creds.SecretKey))
	if err != nil {
		return "", fmt.Errorf("签发 upbit token 失败: %w", err)
	}
	return signed, nil
}

// paramString 把查询串或 JSON 请求体统一成 k=v&k=v 形式。
// POST 请求体也参与 query_hash 计算，这是 Upbit 的约定。
func paramString(rawQuery string, payload any) (string, error) {
	if rawQuery != "" {
		decoded, err := url.QueryUnescape(rawQuery)
		if err != nil {
			return rawQuery, nil
		}
		return decoded, nil
	}
	if payload == nil {
		return "", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("序列化签名参数失败: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", fmt.Errorf("解析签名参数失败: %w", err)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, "&"), nil
}
