package config

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dgraph-io/badger/v4"
	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/auth"
	"github.com/marmos91/wopihost/pkg/discovery"
	"github.com/marmos91/wopihost/pkg/gc"
	"github.com/marmos91/wopihost/pkg/lock"
	lockBadger "github.com/marmos91/wopihost/pkg/lock/badger"
	"github.com/marmos91/wopihost/pkg/proof"
	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/store/content"
	contentFs "github.com/marmos91/wopihost/pkg/store/content/fs"
	contentMemory "github.com/marmos91/wopihost/pkg/store/content/memory"
	contentS3 "github.com/marmos91/wopihost/pkg/store/content/s3"
	"github.com/marmos91/wopihost/pkg/store/metadata"
	metadataBadger "github.com/marmos91/wopihost/pkg/store/metadata/badger"
	metadataMemory "github.com/marmos91/wopihost/pkg/store/metadata/memory"
	"github.com/marmos91/wopihost/pkg/userinfo"
	"github.com/mitchellh/mapstructure"
)

// decodeOptions decodes a store-specific section into target. Durations may
// be given as strings ("30s") and scalars are weakly typed, since values
// coming from environment variables are always strings.
func decodeOptions(options map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

// ============================================================================
// Metadata
// ============================================================================

// CreateMetadataStore creates a metadata store based on configuration.
//
// This factory function uses the Type field to determine which store implementation
// to create, then decodes the type-specific configuration from the corresponding
// map and passes it to the store's constructor.
//
// Supported types:
//   - "memory": Uses pkg/store/metadata/memory (in-memory storage, ephemeral)
//   - "badger": Uses pkg/store/metadata/badger (BadgerDB storage, persistent)
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig) (metadata.Store, error) {
	switch cfg.Type {
	case "memory":
		return createMemoryMetadataStore(ctx, cfg)
	case "badger":
		return createBadgerMetadataStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger)", cfg.Type)
	}
}

// createMemoryMetadataStore creates an in-memory metadata store.
func createMemoryMetadataStore(ctx context.Context, cfg *MetadataConfig) (metadata.Store, error) {
	// Check context before creating store
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return metadataMemory.NewMemoryMetadataStore(metadataMemory.Config{
		RootName: cfg.RootName,
	}), nil
}

// createBadgerMetadataStore creates a BadgerDB-backed metadata store.
func createBadgerMetadataStore(ctx context.Context, cfg *MetadataConfig) (metadata.Store, error) {
	type BadgerMetadataStoreOptions struct {
		DBPath   string `mapstructure:"db_path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var storeOpts BadgerMetadataStoreOptions
	if err := decodeOptions(cfg.Badger, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger metadata store options: %w", err)
	}

	if storeOpts.DBPath == "" && !storeOpts.InMemory {
		return nil, fmt.Errorf("badger metadata store: db_path is required")
	}

	store, err := metadataBadger.NewBadgerMetadataStore(ctx, metadataBadger.BadgerMetadataStoreConfig{
		DBPath:   storeOpts.DBPath,
		InMemory: storeOpts.InMemory,
		RootName: cfg.RootName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
	}

	logger.Info("Badger metadata store initialized: path=%s, in_memory=%t", storeOpts.DBPath, storeOpts.InMemory)
	return store, nil
}

// ============================================================================
// Content
// ============================================================================

// CreateContentStore creates a content store based on configuration.
//
// Supported types:
//   - "filesystem": Uses pkg/store/content/fs (local filesystem storage)
//   - "memory": Uses pkg/store/content/memory (ephemeral, for tests and demos)
//   - "s3": Uses pkg/store/content/s3 (Amazon S3 or compatible storage)
//
// s3Metrics may be nil.
func CreateContentStore(ctx context.Context, cfg *ContentConfig, s3Metrics contentS3.S3Metrics) (content.Store, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemContentStore(ctx, cfg.Filesystem)
	case "memory":
		return contentMemory.NewMemoryContentStore(ctx)
	case "s3":
		return createS3ContentStore(ctx, cfg.S3, s3Metrics)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
}

// createFilesystemContentStore creates a filesystem-based content store.
func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.Store, error) {
	type FilesystemContentStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg FilesystemContentStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem content store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}

	store, err := contentFs.NewFSContentStore(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
	}

	return store, nil
}

// s3StoreOptions mirrors the content.s3 section.
type s3StoreOptions struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	PartSize        int64  `mapstructure:"part_size"`
	Concurrency     int    `mapstructure:"concurrency"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// createS3ContentStore creates an S3-based content store.
func createS3ContentStore(ctx context.Context, options map[string]any, s3Metrics contentS3.S3Metrics) (content.Store, error) {
	var storeCfg s3StoreOptions
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 content store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 content store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 content store: region is required")
	}

	client, err := newS3Client(ctx, storeCfg)
	if err != nil {
		return nil, err
	}

	store, err := contentS3.NewS3ContentStore(ctx, contentS3.S3ContentStoreConfig{
		Client:      client,
		Bucket:      storeCfg.Bucket,
		KeyPrefix:   storeCfg.KeyPrefix,
		PartSize:    storeCfg.PartSize,
		Concurrency: storeCfg.Concurrency,
		Metrics:     s3Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// newS3Client builds the AWS config and the S3 client for the content store.
func newS3Client(ctx context.Context, storeCfg s3StoreOptions) (*s3.Client, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Set custom endpoint if provided (for MinIO, Localstack, etc.)
	if storeCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint once the remaining resolver users are gone
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint once the remaining resolver users are gone
				return aws.Endpoint{
					URL:               storeCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint once the remaining resolver users are gone
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Set credentials if provided, otherwise use default credential chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Default to 10 attempts; the AWS default of 3 gives up too early on
	// throttling during large PutFile uploads
	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Path-style addressing for MinIO/Localstack compatibility
		if storeCfg.Endpoint != "" || storeCfg.ForcePathStyle {
			o.UsePathStyle = true
		}
		// Many S3-compatible servers reject the flexible checksum headers
		if storeCfg.Endpoint != "" {
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	}), nil
}

// ============================================================================
// Locks
// ============================================================================

// LockStoreResult is the lock store and, when the store owns resources,
// the function releasing them.
type LockStoreResult struct {
	Store lock.Store

	// Close is nil when nothing needs closing (memory store, shared DB)
	Close func() error
}

// dbProvider is implemented by metadata stores backed by BadgerDB.
type dbProvider interface {
	DB() *badger.DB
}

// CreateLockStore creates the lock store based on configuration.
//
// Supported types:
//   - "memory": Uses pkg/lock (process-local; locks are lost on restart)
//   - "badger": Uses pkg/lock/badger. Without a db_path the locks are kept
//     in the metadata store's database
func CreateLockStore(ctx context.Context, cfg *LocksConfig, metaStore metadata.Store) (*LockStoreResult, error) {
	switch cfg.Type {
	case "memory":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &LockStoreResult{Store: lock.NewMemoryStore(nil)}, nil
	case "badger":
		return createBadgerLockStore(ctx, cfg.Badger, metaStore)
	default:
		return nil, fmt.Errorf("unknown lock store type: %q (supported: memory, badger)", cfg.Type)
	}
}

func createBadgerLockStore(ctx context.Context, options map[string]any, metaStore metadata.Store) (*LockStoreResult, error) {
	type BadgerLockStoreOptions struct {
		DBPath   string `mapstructure:"db_path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var storeOpts BadgerLockStoreOptions
	if err := decodeOptions(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger lock store options: %w", err)
	}

	storeCfg := lockBadger.BadgerLockStoreConfig{
		DBPath:   storeOpts.DBPath,
		InMemory: storeOpts.InMemory,
	}

	shared := storeOpts.DBPath == "" && !storeOpts.InMemory
	if shared {
		provider, ok := metaStore.(dbProvider)
		if !ok {
			return nil, fmt.Errorf("badger lock store: db_path is required unless metadata.type is badger")
		}
		storeCfg.DB = provider.DB()
	}

	store, err := lockBadger.NewBadgerLockStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger lock store: %w", err)
	}

	if shared {
		logger.Info("Badger lock store initialized in the metadata database")
		return &LockStoreResult{Store: store}, nil
	}

	logger.Info("Badger lock store initialized: path=%s, in_memory=%t", storeOpts.DBPath, storeOpts.InMemory)
	return &LockStoreResult{Store: store, Close: store.Close}, nil
}

// ============================================================================
// User info, checksums, tokens and proof keys
// ============================================================================

// CreateUserInfoStore returns the PUT_USER_INFO store, or nil when disabled.
// Badger metadata keeps user info in the same database; otherwise it is
// held in memory.
func CreateUserInfoStore(cfg *UserInfoConfig, metaStore metadata.Store) userinfo.Store {
	if !cfg.Enabled {
		return nil
	}
	if provider, ok := metaStore.(dbProvider); ok {
		return userinfo.NewBadgerStore(provider.DB())
	}
	return userinfo.NewMemoryStore()
}

// CreateChecksumCache returns the SHA-256 digest cache. A zero size yields
// a cache that never stores anything.
func CreateChecksumCache(cfg *ServerConfig) (*resource.ChecksumCache, error) {
	return resource.NewChecksumCache(cfg.ChecksumCacheEntries)
}

// CreateTokenResolver creates the access-token resolver.
func CreateTokenResolver(cfg *AuthConfig) (*auth.JWTResolver, error) {
	return auth.NewJWTResolver(auth.JWTConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.Issuer,
		TTL:    cfg.TokenTTL,
	})
}

// CreateProofKeys creates the proof key provider. It returns nil, nil when
// proof validation is disabled.
//
// Supported sources:
//   - "discovery": keys are read from the client's discovery document and
//     refreshed periodically
//   - "static": keys are given as base64 modulus/exponent pairs
func CreateProofKeys(cfg *ProofConfig) (proof.KeyProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Source {
	case "discovery":
		type DiscoveryOptions struct {
			URL             string        `mapstructure:"url"`
			RefreshInterval time.Duration `mapstructure:"refresh_interval"`
			Timeout         time.Duration `mapstructure:"timeout"`
		}

		var opts DiscoveryOptions
		if err := decodeOptions(cfg.Discovery, &opts); err != nil {
			return nil, fmt.Errorf("failed to decode proof discovery options: %w", err)
		}

		var httpClient *http.Client
		if opts.Timeout > 0 {
			httpClient = &http.Client{Timeout: opts.Timeout}
		}

		client, err := discovery.NewClient(discovery.Config{
			URL:             opts.URL,
			RefreshInterval: opts.RefreshInterval,
			HTTPClient:      httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create discovery client: %w", err)
		}
		logger.Info("Proof keys from discovery: url=%s, refresh=%s", opts.URL, opts.RefreshInterval)
		return client, nil

	case "static":
		var keyCfg proof.StaticKeyConfig
		if err := decodeOptions(cfg.Static, &keyCfg); err != nil {
			return nil, fmt.Errorf("failed to decode static proof keys: %w", err)
		}

		provider, err := proof.NewStaticKeyProviderFromConfig(keyCfg)
		if err != nil {
			return nil, fmt.Errorf("invalid static proof keys: %w", err)
		}
		logger.Info("Proof keys from static configuration")
		return provider, nil

	default:
		return nil, fmt.Errorf("unknown proof key source: %q (supported: discovery, static)", cfg.Source)
	}
}

// CreateCollector creates the orphaned-content collector over the
// registry's stores. The caller starts and stops it.
// gcMetrics may be nil.
func CreateCollector(cfg *GCConfig, metadataStore metadata.Store, contentStore content.Store, gcMetrics gc.Metrics) *gc.Collector {
	return gc.NewCollector(metadataStore, contentStore, gc.Config{
		Enabled:     cfg.Enabled,
		Interval:    cfg.Interval,
		Concurrency: cfg.Concurrency,
		DryRun:      cfg.DryRun,
		Metrics:     gcMetrics,
	})
}
