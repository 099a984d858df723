package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resume-match-go/internal/logger"
	"resume-match-go/internal/types"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// DocumentExtractor 从简历文件中提取纯文本。
// PDF走 Eino PDF Parser，其余扩展名按纯文本读取。
type DocumentExtractor struct {
	pdfParser *pdf.PDFParser
}

// NewDocumentExtractor 初始化文档提取器
// PDF解析配置为不按页面分割，以获取整个文档的连续文本
func NewDocumentExtractor(ctx context.Context) (*DocumentExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}
	return &DocumentExtractor{pdfParser: p}, nil
}

// ExtractFromFile 从文件路径提取文本。文件不存在时返回 KindNotFound 错误。
func (e *DocumentExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", types.NewError(types.KindNotFound, fmt.Sprintf("文件不存在: %s", filePath), err)
		}
		return "", fmt.Errorf("打开文件失败 %s: %w", filePath, err)
	}
	defer file.Close()

	if isPDF(filePath) {
		text, err := e.extractPDF(ctx, file, filePath)
		if err != nil {
			return "", err
		}
		return CleanText(text), nil
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("读取文件失败 %s: %w", filePath, err)
	}
	return CleanText(string(data)), nil
}

// ExtractFromBytes 从内存中的文件内容提取文本，name用于推断格式
func (e *DocumentExtractor) ExtractFromBytes(ctx context.Context, data []byte, name string) (string, error) {
	if isPDF(name) {
		text, err := e.extractPDF(ctx, bytes.NewReader(data), name)
		if err != nil {
			return "", err
		}
		return CleanText(text), nil
	}
	return CleanText(string(data)), nil
}

// CleanText 去掉每行首尾空白并丢弃空行
func CleanText(raw string) string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func (e *DocumentExtractor) extractPDF(ctx context.Context, reader io.Reader, uri string) (string, error) {
	startTime := time.Now()
	logger.Debug().Str("uri", uri).Msg("开始提取PDF文本")

	// 30秒超时
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs, err := e.pdfParser.Parse(ctx, reader,
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(map[string]interface{}{
			"source_file_path": uri,
			"extraction_time":  time.Now().Format(time.RFC3339),
		}),
	)

	duration := time.Since(startTime)
	if err != nil {
		return "", types.NewError(types.KindParseFailure, fmt.Sprintf("PDF解析失败: %s", uri), err)
	}
	if len(docs) == 0 {
		return "", types.NewError(types.KindParseFailure, fmt.Sprintf("PDF解析无内容: %s", uri), nil)
	}

	// 合并所有文档的内容（以防万一返回了多个）
	var sb strings.Builder
	for i, doc := range docs {
		sb.WriteString(doc.Content)
		if i < len(docs)-1 {
			sb.WriteString("\n\n")
		}
	}

	logger.Debug().
		Str("uri", uri).
		Int("chars", sb.Len()).
		Float64("seconds", duration.Seconds()).
		Msg("PDF提取完成")

	return sb.String(), nil
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
