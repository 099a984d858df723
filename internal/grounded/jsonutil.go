package grounded

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// decodeModelJSON 将LLM返回的文本解析到v。
// 依次做: BOM剥离、markdown围栏剥离、花括号配平截取、UTF-8清理，
// 首次反序列化失败后自动修复字符串内部的引号再试一次。
func decodeModelJSON(raw string, v any) error {
	content := strings.TrimPrefix(strings.TrimSpace(raw), "\uFEFF")
	content = stripCodeFence(content)

	jsonStr := extractJSON(content)
	if jsonStr == "" {
		return fmt.Errorf("响应中未找到JSON对象")
	}

	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	// ① 正常解析
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		// ② 解析失败 -> 自动修复再试一次
		fixed := sanitizeJSON(jsonStr)
		if jsonErr := json.Unmarshal([]byte(fixed), v); jsonErr != nil {
			return fmt.Errorf("JSON反序列化失败(修复后仍失败): %w", err)
		}
	}
	return nil
}

// stripCodeFence 去掉 ```json ... ``` 这样的markdown围栏
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// extractJSON 用花括号配平从文本中截取第一个完整的JSON对象
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '{' {
			level++
		} else if text[i] == '}' {
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON 会遍历 src，将任何位于字符串字面量内部但并非"真正结束"的双引号写成 \"，
// 以保证整个 JSON 在 Go 端能够正常反序列化。
// 它通过检查下一个非空白字符是否为 :, ], }, 或 , 来判断该 " 是否为字符串的结束。
// 反斜杠转义逻辑则正常处理 \\ 和 \"。
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '"' && !escaped {
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				// 下一个非空白字符是 JSON 语法里的 :, ], }, 或 , 时，才是真正的 string-end
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					b.WriteString("\\\"")
				}
			}
			escaped = false

		} else if c == '\\' && !escaped {
			escaped = true
			b.WriteByte(c)

		} else {
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}
