package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/chtzvt/tablemapper/internal/compression"
	"github.com/chtzvt/tablemapper/internal/secrets"
)

type S3Sink struct {
	bucket           string
	prefix           string
	region           string
	compression      string
	secrets          secrets.Store
	opts             map[string]interface{}
	endpoint         string
	client           PutObjectAPI // test only; nil in prod, set by test
	disableChecksums bool
	usePathStyle     bool
}

// PutObjectAPI abstracts the S3 PutObject method (for testing)
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func NewS3Sink(opts map[string]interface{}, secrets secrets.Store) (Sink, error) {
	bucket, _ := opts["bucket"].(string)
	prefix, _ := opts["prefix"].(string)
	region, _ := opts["region"].(string)
	comp, _ := opts["compression"].(string)
	endpoint, _ := opts["endpoint"].(string)
	baseEndpoint, _ := opts["base_endpoint"].(string) // support both for flexibility

	if bucket == "" || region == "" {
		return nil, fmt.Errorf("s3 sink requires 'bucket' and 'region' options")
	}
	if !compression.Supported(comp) {
		return nil, fmt.Errorf("unsupported compression: %s", comp)
	}

	return &S3Sink{
		bucket:           bucket,
		prefix:           prefix,
		region:           region,
		compression:      comp,
		secrets:          secrets,
		opts:             opts,
		endpoint:         chooseEndpoint(endpoint, baseEndpoint),
		disableChecksums: toBool(opts["disable_checksums"]),
		usePathStyle:     toBool(opts["path_style"]),
	}, nil
}

// Helper to select which endpoint to use
func chooseEndpoint(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func (s *S3Sink) newClient(ctx context.Context) (PutObjectAPI, error) {
	accessKey, err := lookupSecret(ctx, s.secrets, s.opts, "access_key_secret", "AWS_ACCESS_KEY_ID")
	if err != nil {
		return nil, err
	}
	secretKey, err := lookupSecret(ctx, s.secrets, s.opts, "secret_key_secret", "AWS_SECRET_ACCESS_KEY")
	if err != nil {
		return nil, err
	}
	awsCfgOpts := []func(*config.LoadOptions) error{
		config.WithRegion(s.region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(string(accessKey), string(secretKey), ""),
		),
	}
	if s.disableChecksums {
		awsCfgOpts = append(awsCfgOpts,
			config.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
			config.WithResponseChecksumValidation(aws.ResponseChecksumValidationWhenRequired),
		)
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, awsCfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config load error: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
		}
		o.UsePathStyle = s.usePathStyle
	}), nil
}

func (s *S3Sink) Close() error { return nil }

func (s *S3Sink) Open(ctx context.Context, name string) (SinkWriter, error) {
	client := s.client
	if client == nil {
		var err error
		if client, err = s.newClient(ctx); err != nil {
			return nil, err
		}
	}

	key := s.prefix + name
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		if err != nil {
			_ = pr.CloseWithError(err)
		} else {
			_ = pr.Close()
		}
		done <- err
	}()
	w, err := compression.NewWriter(pw, s.compression)
	if err != nil {
		_ = pw.CloseWithError(err)
		<-done
		return nil, err
	}
	return &pipeSinkWriter{Writer: w, compressor: w, pw: pw, done: done}, nil
}

func init() {
	Register("s3", NewS3Sink)
}
