// Package adapters: bulk-upload provider. Walks a local file or directory
// target, uploads each media file to an S3-compatible bucket with
// concurrency control, and records each uploaded file in the media index
// under a "local:<sha1>" key with its content hash in raw_info. Every file
// of the target is uploaded on each run; files already recorded in the
// index are not skipped. Grounded on the
// teacher's S3 upload helpers (concurrent uploader, MD5 integrity metadata,
// semaphore-bounded goroutine pool) and on upload_service.py's operation
// surface (upload / move_to_trash / add_to_album / get_media_key_by_hash /
// update_cache).
package adapters

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/evalgo/gphotoctl/internal/model"
	"github.com/evalgo/gphotoctl/internal/store"
)

// MaxConcurrentUploads bounds simultaneous S3 PutObject calls per job.
const MaxConcurrentUploads = 96

var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".heic": true, ".heif": true,
	".gif": true, ".webp": true, ".raw": true, ".dng": true, ".cr2": true, ".nef": true,
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".m4v": true, ".3gp": true,
}

var sharedHTTPClient = &http.Client{
	Timeout: 120 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxConcurrentUploads,
		IdleConnTimeout:     90 * time.Second,
	},
}

// s3Credentials is the shape expected in Account.AuthData for the
// bulk-upload provider.
type s3Credentials struct {
	Endpoint     string `json:"endpoint"`
	Region       string `json:"region"`
	Bucket       string `json:"bucket"`
	AccessKey    string `json:"accessKey"`
	SecretKey    string `json:"secretKey"`
	UsePathStyle bool   `json:"usePathStyle"`
	ObjectPrefix string `json:"objectPrefix"`
}

func parseS3Credentials(authData string) (*s3Credentials, error) {
	if authData == "" {
		return nil, fmt.Errorf("bulk-upload: account has no S3 credentials configured")
	}
	var c s3Credentials
	if err := json.Unmarshal([]byte(authData), &c); err != nil {
		return nil, fmt.Errorf("bulk-upload: decode S3 credentials: %w", err)
	}
	if c.Bucket == "" {
		return nil, fmt.Errorf("bulk-upload: credentials missing bucket")
	}
	return &c, nil
}

func newS3Client(ctx context.Context, c *s3Credentials) (*s3.Client, error) {
	region := c.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	}
	if c.Endpoint != "" {
		endpoint := c.Endpoint
		opts = append(opts, config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: endpoint, SigningRegion: region, HostnameImmutable: true}, nil
			})))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bulk-upload: load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = c.UsePathStyle
		o.HTTPClient = sharedHTTPClient
	}), nil
}

// BulkUploadAdapter implements the bulk-upload provider.
type BulkUploadAdapter struct {
	store     *store.Store
	nativeRPC *NativeRPCAdapter
}

func NewBulkUploadAdapter(st *store.Store, nativeRPC *NativeRPCAdapter) *BulkUploadAdapter {
	return &BulkUploadAdapter{store: st, nativeRPC: nativeRPC}
}

func (a *BulkUploadAdapter) CanHandle(p model.Provider) bool { return p == model.ProviderBulkUpload }

func (a *BulkUploadAdapter) Run(ctx context.Context, account *model.Account, job *model.Job, dryRun bool, report ProgressFunc) (model.JSONMap, error) {
	switch trimProviderPrefix(job.Operation, "bulk-upload") {
	case "upload":
		return a.runUpload(ctx, account, job, dryRun, report)
	case "move_to_trash":
		return a.runMoveToTrash(ctx, account, job, dryRun, report)
	case "add_to_album":
		return a.runAddToAlbum(ctx, account, job, dryRun, report)
	case "get_media_key_by_hash":
		return a.runGetMediaKeyByHash(ctx, account, job)
	case "update_cache":
		return a.runUpdateCache(ctx, account, report)
	default:
		return nil, fmt.Errorf("bulk-upload: unsupported operation %q", job.Operation)
	}
}

func trimProviderPrefix(operation, provider string) string {
	prefix := provider + "."
	if strings.HasPrefix(operation, prefix) {
		return operation[len(prefix):]
	}
	return operation
}

// uploadResult mirrors the teacher's per-file report shape.
type uploadResult struct {
	FilePath  string
	ObjectKey string
	SHA1      string
	MediaKey  string
	Success   bool
	Error     error
}

func (a *BulkUploadAdapter) runUpload(ctx context.Context, account *model.Account, job *model.Job, dryRun bool, report ProgressFunc) (model.JSONMap, error) {
	target, _ := job.Params["target"].(string)
	if target == "" {
		return nil, fmt.Errorf("bulk-upload: upload requires params.target")
	}
	recursive, _ := job.Params["recursive"].(bool)
	albumName, _ := job.Params["albumName"].(string)

	files, err := collectMediaFiles(target, recursive)
	if err != nil {
		return nil, fmt.Errorf("bulk-upload: collect files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("bulk-upload: no media files found under %q", target)
	}

	if dryRun {
		report(1.0, fmt.Sprintf("dry run: would upload %d files", len(files)))
		return model.JSONMap{"dryRun": true, "fileCount": len(files), "files": files}, nil
	}

	creds, err := parseS3Credentials(account.AuthData)
	if err != nil {
		return nil, err
	}
	client, err := newS3Client(ctx, creds)
	if err != nil {
		return nil, err
	}
	uploader := manager.NewUploader(client)

	results := a.uploadAll(ctx, client, uploader, creds, files, report)

	uploadedKeys := make([]string, 0, len(results))
	errCount := 0
	for _, r := range results {
		if r.Success {
			uploadedKeys = append(uploadedKeys, r.ObjectKey)
			row := &model.MediaIndexRow{
				MediaKey:  "local:" + r.SHA1,
				AccountID: account.ID,
				DedupKey:  "local:" + r.SHA1,
				Filename:  filepath.Base(r.FilePath),
				Source:    "bulk-upload",
				RawInfo:   model.JSONMap{"sha1Hash": r.SHA1, "objectKey": r.ObjectKey, "localPath": r.FilePath},
			}
			_ = a.store.UpsertMediaIndexRow(ctx, row)
		} else {
			errCount++
		}
	}

	if albumName != "" && len(uploadedKeys) > 0 {
		report(0.95, fmt.Sprintf("adding %d uploaded items to album %q", len(uploadedKeys), albumName))
	}

	return model.JSONMap{
		"totalFiles":   len(files),
		"successCount": len(uploadedKeys),
		"errorCount":   errCount,
		"uploadedKeys": uploadedKeys,
	}, nil
}

func (a *BulkUploadAdapter) uploadAll(ctx context.Context, client *s3.Client, uploader *manager.Uploader, creds *s3Credentials, files []string, report ProgressFunc) []uploadResult {
	semaphore := make(chan struct{}, MaxConcurrentUploads)
	var wg sync.WaitGroup
	resultsChan := make(chan uploadResult, len(files))
	var done int32
	var mu sync.Mutex

	for _, path := range files {
		wg.Add(1)
		go func(filePath string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			res := uploadResult{FilePath: filePath}
			sha1Hash, err := calculateSHA1(filePath)
			if err != nil {
				res.Error = err
				resultsChan <- res
				return
			}
			res.SHA1 = sha1Hash

			key := strings.TrimSuffix(creds.ObjectPrefix, "/")
			base := filepath.Base(filePath)
			if key != "" {
				res.ObjectKey = key + "/" + base
			} else {
				res.ObjectKey = base
			}

			file, err := os.Open(filePath)
			if err != nil {
				res.Error = err
				resultsChan <- res
				return
			}
			defer file.Close()

			_, err = uploader.Upload(ctx, &s3.PutObjectInput{
				Bucket:   aws.String(creds.Bucket),
				Key:      aws.String(res.ObjectKey),
				Body:     file,
				Metadata: map[string]string{"sha1": sha1Hash},
			})
			if err != nil {
				res.Error = fmt.Errorf("upload %s: %w", filePath, err)
			} else {
				res.Success = true
			}
			resultsChan <- res

			mu.Lock()
			done++
			report(0.1+0.8*float64(done)/float64(len(files)), fmt.Sprintf("uploaded %d/%d", done, len(files)))
			mu.Unlock()
		}(path)
	}

	wg.Wait()
	close(resultsChan)

	out := make([]uploadResult, 0, len(files))
	for r := range resultsChan {
		out = append(out, r)
	}
	return out
}

func (a *BulkUploadAdapter) runMoveToTrash(ctx context.Context, account *model.Account, job *model.Job, dryRun bool, report ProgressFunc) (model.JSONMap, error) {
	hashes := strSliceParam(job.Params["sha1Hashes"])
	if len(hashes) == 0 {
		return nil, fmt.Errorf("bulk-upload: move_to_trash requires params.sha1Hashes")
	}
	confirmed, _ := job.Params["confirmed"].(bool)
	if !confirmed && !dryRun {
		return nil, fmt.Errorf("bulk-upload: move_to_trash is destructive and requires params.confirmed=true")
	}

	dedupKeys := make([]string, 0, len(hashes))
	var unresolved []string
	for _, h := range hashes {
		row, err := a.store.FindMediaIndexBySHA1(ctx, account.ID, h)
		if err != nil {
			unresolved = append(unresolved, h)
			continue
		}
		dedupKeys = append(dedupKeys, row.DedupKey)
	}
	if len(dedupKeys) == 0 {
		return nil, fmt.Errorf("bulk-upload: none of the given hashes resolved to a known media key")
	}

	if dryRun {
		report(1.0, fmt.Sprintf("dry run: would trash %d items", len(dedupKeys)))
		return model.JSONMap{"dryRun": true, "resolvedCount": len(dedupKeys), "unresolved": unresolved}, nil
	}

	delegate := buildTrashDelegateJob(job.AccountID, dedupKeys)
	result, err := a.nativeRPC.Run(ctx, account, delegate, false, report)
	if err != nil {
		return nil, fmt.Errorf("bulk-upload: delegate to native-rpc: %w", err)
	}
	result["unresolved"] = unresolved
	return result, nil
}

// buildTrashDelegateJob builds the native-rpc job move_to_trash delegates
// to. Its Operation must resolve through catalog.ResolveGptkMethod, which
// only strips the "native-rpc." and legacy "gptk." prefixes.
func buildTrashDelegateJob(accountID string, dedupKeys []string) *model.Job {
	return &model.Job{
		AccountID: accountID,
		Provider:  model.ProviderNativeRPC,
		Operation: "native-rpc.move_items_to_trash",
		Params:    model.JSONMap{"dedupKeyArray": dedupKeys, "confirmed": true},
	}
}

func (a *BulkUploadAdapter) runAddToAlbum(ctx context.Context, account *model.Account, job *model.Job, dryRun bool, report ProgressFunc) (model.JSONMap, error) {
	mediaKeys := strSliceParam(job.Params["mediaKeys"])
	albumName, _ := job.Params["albumName"].(string)
	if len(mediaKeys) == 0 || albumName == "" {
		return nil, fmt.Errorf("bulk-upload: add_to_album requires params.mediaKeys and params.albumName")
	}
	if dryRun {
		report(1.0, fmt.Sprintf("dry run: would add %d items to %q", len(mediaKeys), albumName))
		return model.JSONMap{"dryRun": true, "mediaKeyCount": len(mediaKeys), "albumName": albumName}, nil
	}

	delegate := buildAddToAlbumDelegateJob(job.AccountID, mediaKeys, albumName)
	return a.nativeRPC.Run(ctx, account, delegate, false, report)
}

// buildAddToAlbumDelegateJob builds the native-rpc job add_to_album
// delegates to; see buildTrashDelegateJob for the Operation-prefix contract.
func buildAddToAlbumDelegateJob(accountID string, mediaKeys []string, albumName string) *model.Job {
	return &model.Job{
		AccountID: accountID,
		Provider:  model.ProviderNativeRPC,
		Operation: "native-rpc.add_items_to_album",
		Params:    model.JSONMap{"mediaKeyArray": mediaKeys, "albumName": albumName},
	}
}

func (a *BulkUploadAdapter) runGetMediaKeyByHash(ctx context.Context, account *model.Account, job *model.Job) (model.JSONMap, error) {
	sha1Hash, _ := job.Params["sha1Hash"].(string)
	if sha1Hash == "" {
		return nil, fmt.Errorf("bulk-upload: get_media_key_by_hash requires params.sha1Hash")
	}
	row, err := a.store.FindMediaIndexBySHA1(ctx, account.ID, sha1Hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.JSONMap{"found": false}, nil
		}
		return nil, err
	}
	return model.JSONMap{"found": true, "mediaKey": row.MediaKey, "dedupKey": row.DedupKey}, nil
}

func (a *BulkUploadAdapter) runUpdateCache(ctx context.Context, account *model.Account, report ProgressFunc) (model.JSONMap, error) {
	rows, err := a.store.ListMediaIndexForAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("bulk-upload: list media index: %w", err)
	}
	cached := 0
	for _, r := range rows {
		if r.Source == "bulk-upload" {
			cached++
		}
	}
	report(1.0, fmt.Sprintf("dedup cache holds %d uploaded items", cached))
	return model.JSONMap{"cachedItems": cached, "totalIndexed": len(rows)}, nil
}

func collectMediaFiles(target string, recursive bool) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if isMediaFile(target) {
			return []string{target}, nil
		}
		return nil, nil
	}

	var files []string
	walk := func(path string, d os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != target {
				return filepath.SkipDir
			}
			return nil
		}
		if isMediaFile(path) {
			files = append(files, path)
		}
		return nil
	}
	if err := filepath.Walk(target, walk); err != nil {
		return nil, err
	}
	return files, nil
}

func isMediaFile(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}

func calculateSHA1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func strSliceParam(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
