package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gentle/pkg/core"
	"gentle/pkg/ident"
	"gentle/pkg/storage"
	"gentle/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

const (
	objectsPrefix  = "objects/"
	pointersPrefix = "pointers/"

	maxCASRetries = 32
)

// Config 用于初始化 Store
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string

	// KeyPrefix 可选，多个仓库共用一个 Bucket 时做隔离
	KeyPrefix string

	Logger *zap.Logger
}

// Store 是基于 S3 (或 MinIO) 的 DataStore
// 指针用条件写入 (If-Match / If-None-Match) 实现 CAS
type Store struct {
	content  *ContentStore
	pointers *PointerStore
}

var (
	_ storage.DataStore                = (*Store)(nil)
	_ storage.ContentStore             = (*ContentStore)(nil)
	_ storage.PointerStore             = (*PointerStore)(nil)
	_ storage.Deleter[types.Hash]      = (*ContentStore)(nil)
	_ storage.Deleter[types.PointerID] = (*PointerStore)(nil)
)

// New 初始化 S3 客户端 (适配 AWS SDK v2 最新规范)
func New(ctx context.Context, cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// 1. 加载基础配置 (仅包含 Region 和 Credentials)
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	// 2. 使用 BaseEndpoint 而不是全局 Resolver
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// 如果指定了 Endpoint (比如 MinIO 的 localhost:9000)，则覆盖默认值
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// MinIO 必须强制使用 Path Style
		o.UsePathStyle = true
	})

	// 3. 自动创建 Bucket
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &cfg.Bucket}); err != nil {
		if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &cfg.Bucket}); err != nil {
			// 可能是并发创建或权限问题，生产环境建议手动管理 Bucket
			logger.Warn("failed to ensure bucket exists", zap.String("bucket", cfg.Bucket), zap.Error(err))
		}
	}

	b := &bucket{client: client, name: cfg.Bucket, root: cfg.KeyPrefix}
	return &Store{
		content:  &ContentStore{b: b},
		pointers: &PointerStore{b: b, now: time.Now},
	}, nil
}

func (s *Store) ContentStore() storage.ContentStore { return s.content }
func (s *Store) PointerStore() storage.PointerStore { return s.pointers }
func (s *Store) Close() error                       { return nil }

// -----------------------------------------------------------------------------
// bucket: 两个 store 共用的底层操作
// -----------------------------------------------------------------------------

type bucket struct {
	client *s3.Client
	name   string
	root   string
}

// object 读取对象内容和 ETag
func (b *bucket) object(ctx context.Context, key string) ([]byte, string, error) {
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, aws.ToString(resp.ETag), nil
}

// put 条件写入；ifMatch 为空时要求对象不存在
func (b *bucket) put(ctx context.Context, key string, data []byte, contentType, ifMatch string) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(b.name),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if ifMatch == "" {
		in.IfNoneMatch = aws.String("*")
	} else {
		in.IfMatch = aws.String(ifMatch)
	}
	_, err := b.client.PutObject(ctx, in)
	return err
}

func (b *bucket) exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// list 分页列出 prefix 下的全部 Key (S3 按字典序返回)
func (b *bucket) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.name),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (b *bucket) remove(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	return err
}

// -----------------------------------------------------------------------------
// ContentStore
// -----------------------------------------------------------------------------

type ContentStore struct {
	b *bucket
}

// contentKey 将 Hash 转换为 S3 Key (Sharding)
// Logic: "aabbcc..." -> "objects/aa/bbcc..."
func (s *ContentStore) contentKey(hash types.Hash) string {
	h := string(hash)
	return s.b.root + objectsPrefix + h[:2] + "/" + h[2:]
}

func (s *ContentStore) Put(ctx context.Context, data []byte) (types.Hash, error) {
	hash := core.CalculateBlobHash(data)
	key := s.contentKey(hash)

	// 1. 幂等性检查 (去重)
	// 对于 S3，Head 请求比 Put 请求便宜且快
	exists, err := s.b.exists(ctx, key)
	if err != nil {
		return hash, fmt.Errorf("s3 put existence check failed: %w", err)
	}

	// 2. 不存在则上传；并发上传同一对象时，输家会收到 412
	if !exists {
		err = s.b.put(ctx, key, data, "application/octet-stream", "")
		if err == nil {
			return hash, nil
		}
		if !isPreconditionFailed(err) {
			return hash, fmt.Errorf("s3 put failed: %w", err)
		}
	}

	// 3. 已存在：比对
	stored, _, err := s.b.object(ctx, key)
	if err != nil {
		return hash, fmt.Errorf("s3 get failed: %w", err)
	}
	return hash, storage.CheckIntegrity(hash, stored, data)
}

func (s *ContentStore) Get(ctx context.Context, hash types.Hash) ([]byte, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return nil, err
	}

	data, _, err := s.b.object(ctx, s.contentKey(hash))
	if err != nil {
		// 将 AWS 的 NoSuchKey 错误映射为我们自己的 ErrNotFound
		if isNotFound(err) {
			return nil, storage.NotFound("content", string(hash))
		}
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	if !core.VerifyBlob(hash, data) {
		return nil, fmt.Errorf("%w: s3 object %s does not hash to its key", storage.ErrIntegrityViolation, hash.Short())
	}
	return core.Clone(data), nil
}

func (s *ContentStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return false, err
	}
	return s.b.exists(ctx, s.contentKey(hash))
}

// Find 利用 Prefix 查询；前缀至少 2 位时只列出一个分片
func (s *ContentStore) Find(ctx context.Context, prefix string) ([]types.Hash, error) {
	base := s.b.root + objectsPrefix
	listPrefix := base + prefix
	if len(prefix) >= 2 {
		// 构造前缀: "a8fd" -> "objects/a8/fd"
		listPrefix = base + prefix[:2] + "/" + prefix[2:]
	}

	keys, err := s.b.list(ctx, listPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]types.Hash, 0, len(keys))
	for _, k := range keys {
		// 还原 Hash: "objects/a8/fd123..." -> "a8fd123..."
		h := types.Hash(strings.Replace(strings.TrimPrefix(k, base), "/", "", 1))
		if h.IsValid() {
			out = append(out, h)
		}
	}
	return storage.FilterPrefix(out, prefix), nil
}

func (s *ContentStore) Delete(ctx context.Context, hash types.Hash) error {
	if err := ident.ValidateHash(hash); err != nil {
		return err
	}
	ok, err := s.Has(ctx, hash)
	if err != nil {
		return err
	}
	if !ok {
		return storage.NotFound("content", string(hash))
	}
	return s.b.remove(ctx, s.contentKey(hash))
}

// -----------------------------------------------------------------------------
// PointerStore
// -----------------------------------------------------------------------------

type PointerStore struct {
	b   *bucket
	now func() time.Time
}

func (s *PointerStore) pointerKey(p types.PointerID) string {
	return s.b.root + pointersPrefix + string(p)
}

func (s *PointerStore) load(ctx context.Context, p types.PointerID) (*core.PointerRecord, string, error) {
	data, etag, err := s.b.object(ctx, s.pointerKey(p))
	if err != nil {
		return nil, "", err
	}
	rec, err := core.DecodePointerRecord(data)
	if err != nil {
		return nil, "", fmt.Errorf("pointer %q: %w", p, err)
	}
	return &rec, etag, nil
}

// Put 读取当前记录和 ETag，然后条件写入；ETag 变化说明被抢先，重读重试
func (s *PointerStore) Put(ctx context.Context, pointer types.PointerID, content types.Hash) (types.Hash, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return types.NoHash, err
	}
	if err := ident.ValidateHash(content); err != nil {
		return types.NoHash, err
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		prev, etag, err := s.load(ctx, pointer)
		if err != nil && !isNotFound(err) {
			return types.NoHash, fmt.Errorf("s3 get failed: %w", err)
		}

		data, err := core.EncodePointerRecord(core.NextPointerRecord(prev, pointer, content, s.now()))
		if err != nil {
			return types.NoHash, err
		}

		err = s.b.put(ctx, s.pointerKey(pointer), data, "application/cbor", etag)
		if isPreconditionFailed(err) {
			continue
		}
		if err != nil {
			return types.NoHash, fmt.Errorf("s3 put failed: %w", err)
		}

		if prev == nil {
			return types.NoHash, nil
		}
		return prev.Target, nil
	}
	return types.NoHash, storage.ErrConcurrentUpdate
}

func (s *PointerStore) Get(ctx context.Context, pointer types.PointerID) (types.Hash, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return types.NoHash, err
	}
	rec, _, err := s.load(ctx, pointer)
	if err != nil {
		if isNotFound(err) {
			return types.NoHash, storage.NotFound("pointer", string(pointer))
		}
		return types.NoHash, err
	}
	return rec.Target, nil
}

func (s *PointerStore) Has(ctx context.Context, pointer types.PointerID) (bool, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return false, err
	}
	return s.b.exists(ctx, s.pointerKey(pointer))
}

func (s *PointerStore) Find(ctx context.Context, prefix string) ([]types.PointerID, error) {
	base := s.b.root + pointersPrefix
	keys, err := s.b.list(ctx, base+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]types.PointerID, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.PointerID(strings.TrimPrefix(k, base)))
	}
	return storage.FilterPrefix(out, prefix), nil
}

func (s *PointerStore) Delete(ctx context.Context, pointer types.PointerID) error {
	ok, err := s.Has(ctx, pointer)
	if err != nil {
		return err
	}
	if !ok {
		return storage.NotFound("pointer", string(pointer))
	}
	return s.b.remove(ctx, s.pointerKey(pointer))
}

// -----------------------------------------------------------------------------
// 错误识别
// -----------------------------------------------------------------------------

func isNotFound(err error) bool {
	var notFound *s3types.NotFound
	var noKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noKey) {
		return true
	}
	// 兼容性：某些 S3 实现可能返回 generic 404 error string
	return strings.Contains(err.Error(), "StatusCode: 404")
}

// isPreconditionFailed 条件写入失败 (412) 或与并发条件写入冲突 (409)
func isPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}
