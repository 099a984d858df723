package main

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"resume-match-go/internal/config"
	"resume-match-go/internal/parser"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/types"

	"github.com/spf13/pflag"
)

// 批量导入简历目录到向量索引。
// 目录结构约定: <dir>/<category>/<file>.txt|.pdf，子目录名即简历分类。
func main() {
	var (
		configPath string
		resumeDir  string
		archive    bool
	)
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径 (留空则按默认位置搜索)")
	pflag.StringVarP(&resumeDir, "dir", "d", "", "简历目录 (必填)")
	pflag.BoolVar(&archive, "archive", false, "是否将原始文件归档到MinIO")
	pflag.Parse()

	if resumeDir == "" {
		log.Fatal("必须通过 --dir 指定简历目录")
	}

	ctx := context.Background()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()

	embedder, err := parser.NewAliyunEmbedder(cfg.Aliyun.APIKey, cfg.Aliyun.Embedding)
	if err != nil {
		log.Fatalf("初始化阿里云Embedder失败: %v", err)
	}

	var indexOpts []storage.ResumeIndexOption
	if storageManager.Redis != nil {
		indexOpts = append(indexOpts, storage.WithQueryVectorCache(storageManager.Redis, cfg.Aliyun.Embedding.Model))
	}
	index := storage.NewResumeIndex(embedder, storageManager.VectorDB, indexOpts...)

	extractor, err := parser.NewDocumentExtractor(ctx)
	if err != nil {
		log.Fatalf("初始化文档提取器失败: %v", err)
	}

	if count, err := index.Count(ctx); err == nil {
		log.Printf("索引当前简历数量: %d", count)
	}

	importer := &bulkImporter{
		index:     index,
		extractor: extractor,
		baseDir:   resumeDir,
	}
	if archive && storageManager.MinIO != nil {
		importer.archive = storageManager.MinIO
	}

	imported, errCount := importer.run(ctx)

	log.Printf("导入完成: 成功 %d, 失败 %d", imported, errCount)
	if count, err := index.Count(ctx); err == nil {
		log.Printf("索引最终简历数量: %d", count)
	}
	if errCount > 0 {
		os.Exit(1)
	}
}

type bulkImporter struct {
	index     *storage.ResumeIndex
	extractor *parser.DocumentExtractor
	archive   *storage.MinIO
	baseDir   string
}

// run 遍历目录并逐个导入。单个文件失败只计数不中断。
func (b *bulkImporter) run(ctx context.Context) (imported, errCount int) {
	total := 0
	err := filepath.WalkDir(b.baseDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			log.Printf("访问 %s 失败: %v", path, walkErr)
			errCount++
			return nil
		}
		if d.IsDir() || !isResumeFile(path) {
			return nil
		}
		total++

		if err := b.importOne(ctx, path); err != nil {
			errCount++
			if errCount <= 5 {
				log.Printf("导入 %s 失败: %v", path, err)
			}
			return nil
		}
		imported++
		if imported%100 == 0 {
			log.Printf("  已处理 %d 份简历...", imported)
		}
		return nil
	})
	if err != nil {
		log.Printf("遍历目录失败: %v", err)
	}
	log.Printf("共发现 %d 个简历文件", total)
	return imported, errCount
}

func (b *bulkImporter) importOne(ctx context.Context, path string) error {
	text, err := b.extractor.ExtractFromFile(ctx, path)
	if err != nil {
		return err
	}

	relPath, err := filepath.Rel(b.baseDir, path)
	if err != nil {
		relPath = filepath.Base(path)
	}
	relPath = filepath.ToSlash(relPath)

	fields := parser.ExtractFields(text)
	meta := types.ResumeMetadata{
		Skills:   fields.Skills,
		Titles:   fields.Titles,
		Years:    fields.Years,
		Category: categoryOf(relPath),
		Filename: relPath,
	}

	if _, err := b.index.Upsert(ctx, relPath, text, meta); err != nil {
		return err
	}

	if b.archive != nil {
		data, readErr := os.ReadFile(path)
		if readErr == nil {
			if _, archiveErr := b.archive.ArchiveDocumentBytes(ctx, relPath, data, ""); archiveErr != nil {
				log.Printf("归档 %s 失败: %v", relPath, archiveErr)
			}
		}
	}
	return nil
}

// categoryOf 从相对路径提取分类，顶层文件归为 general。
func categoryOf(relPath string) string {
	if dir := filepath.Dir(relPath); dir != "." {
		parts := strings.Split(filepath.ToSlash(dir), "/")
		return parts[0]
	}
	return "general"
}

func isResumeFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".pdf":
		return true
	}
	return false
}
