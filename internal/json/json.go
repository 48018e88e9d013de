// Package json 统一项目内的 JSON 编解码实现，底层使用 bytedance/sonic。
//
// 采用 sonic.ConfigStd，行为与标准库 encoding/json 保持一致（转义 HTML、map key 排序）。
package json

import "github.com/bytedance/sonic"

var api = sonic.ConfigStd

// Marshal 将 v 编码为 JSON。
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// Unmarshal 将 JSON 数据解码到 v，v 必须为指针。
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}
