package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
)

// ObjectPutter は S3 互換ストレージへの書き込み口
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options は S3 保存先の設定
type S3Options struct {
	Bucket        string
	Prefix        string
	PublicBaseURL string
	Region        string
	Endpoint      string
}

// S3Store はチケットごとのメタデータJSONを S3 に保存する
type S3Store struct {
	client ObjectPutter
	opts   S3Options
}

// Document はトークンのメタデータ
type Document struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attributes  []Attribute `json:"attributes"`
}

// Attribute はメタデータの属性
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// NewS3Store は既定の認証情報で S3 クライアントを作成する
// Endpoint が指定された場合は MinIO などを想定してパス形式にする
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗: %w", err)
	}

	var s3opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}
	return NewS3StoreWithClient(s3.NewFromConfig(cfg, s3opts...), opts), nil
}

// NewS3StoreWithClient は任意のクライアントで S3Store を作成する
func NewS3StoreWithClient(client ObjectPutter, opts S3Options) *S3Store {
	return &S3Store{client: client, opts: opts}
}

// TokenURI はメタデータを保存し、その公開URIを返す
// 同じ nonce への再保存は同じキーを上書きする
func (s *S3Store) TokenURI(ctx context.Context, ev *event.Event, buyerID, nonce string) (string, error) {
	data, err := json.Marshal(documentFor(ev, nonce))
	if err != nil {
		return "", fmt.Errorf("メタデータのエンコードに失敗: %w", err)
	}

	key := s.objectKey(ev.ID, nonce)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"buyer-id": buyerID},
	})
	if err != nil {
		return "", fmt.Errorf("メタデータの保存に失敗: %w", err)
	}
	return s.publicURI(key), nil
}

func (s *S3Store) objectKey(eventID int64, nonce string) string {
	return path.Join(s.opts.Prefix, event.MetadataHashFor(eventID), nonce+".json")
}

func (s *S3Store) publicURI(key string) string {
	if s.opts.PublicBaseURL == "" {
		return "s3://" + s.opts.Bucket + "/" + key
	}
	return strings.TrimSuffix(s.opts.PublicBaseURL, "/") + "/" + key
}

func documentFor(ev *event.Event, nonce string) Document {
	return Document{
		Name:        ev.Name,
		Description: ev.Description,
		Attributes: []Attribute{
			{TraitType: "event_id", Value: ev.ID},
			{TraitType: "location", Value: ev.Location},
			{TraitType: "date", Value: ev.Date.UTC().Format("2006-01-02T15:04:05Z")},
			{TraitType: "mint_nonce", Value: nonce},
		},
	}
}
