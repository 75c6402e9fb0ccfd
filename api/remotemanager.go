package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/aouyang1/inkframe/config"
	"github.com/aouyang1/inkframe/util"
)

const remoteSyncTimeout = 30 * time.Minute

// s3API is the part of *s3.Client the mirror uses.
type s3API interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

// RemoteManager mirrors "<folder>/<file>" objects of an S3 bucket into the shared
// image tree. The mirror owns the shared tree: images without a remote object are
// removed.
type RemoteManager struct {
	client s3API

	s3Bucket string
	s3Prefix string
	interval time.Duration

	outputPath string

	Updated chan bool
}

func NewRemoteManager(ctx context.Context, cfg config.RemoteConfig, outputPath string) (*RemoteManager, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSProfile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
	}

	ctxCfg, cancelCfg := context.WithTimeout(ctx, 3*time.Second)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctxCfg, opts...)
	cancelCfg()
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return newRemoteManager(s3.NewFromConfig(awsCfg), cfg, outputPath), nil
}

func newRemoteManager(client s3API, cfg config.RemoteConfig, outputPath string) *RemoteManager {
	prefix := strings.Trim(cfg.S3Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &RemoteManager{
		client:     client,
		s3Bucket:   cfg.S3Bucket,
		s3Prefix:   prefix,
		interval:   cfg.SyncInterval.Duration,
		outputPath: outputPath,
		Updated:    make(chan bool, 1),
	}
}

// mirrorKey turns an object key into "<folder>/<file>", rejecting keys that are not
// exactly one folder deep or not a supported image.
func (r *RemoteManager) mirrorKey(key string) (string, bool) {
	rel, ok := strings.CutPrefix(key, r.s3Prefix)
	if !ok {
		return "", false
	}
	folder, name, ok := strings.Cut(rel, "/")
	if !ok || folder == "" || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	if !util.IsSupportedImage(name) {
		return "", false
	}
	return rel, true
}

func (r *RemoteManager) getRemoteFiles(ctx context.Context) (mapset.Set[string], error) {
	remoteFiles := mapset.NewThreadUnsafeSet[string]()

	input := &s3.ListObjectsV2Input{Bucket: aws.String(r.s3Bucket)}
	if r.s3Prefix != "" {
		input.Prefix = aws.String(r.s3Prefix)
	}
	paginator := s3.NewListObjectsV2Paginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3 objects: %w", err)
		}
		for _, object := range page.Contents {
			if rel, ok := r.mirrorKey(aws.ToString(object.Key)); ok {
				remoteFiles.Add(rel)
			}
		}
	}

	if remoteFiles.Cardinality() == 0 {
		slog.Info("no remote files found", "bucket", r.s3Bucket)
	}
	return remoteFiles, nil
}

func (r *RemoteManager) getLocalFiles() (mapset.Set[string], error) {
	localFiles := mapset.NewThreadUnsafeSet[string]()

	folders, err := os.ReadDir(r.outputPath)
	if os.IsNotExist(err) {
		return localFiles, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read directory, %s, %w", r.outputPath, err)
	}

	for _, folder := range folders {
		if !folder.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(r.outputPath, folder.Name()))
		if err != nil {
			return nil, fmt.Errorf("unable to read directory, %s, %w", folder.Name(), err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && util.IsSupportedImage(entry.Name()) {
				localFiles.Add(path.Join(folder.Name(), entry.Name()))
			}
		}
	}
	return localFiles, nil
}

// plan lists what to download and what to delete so local matches remote.
func plan(local, remote mapset.Set[string]) (toDownload, toDelete []string) {
	toDownload = remote.Difference(local).ToSlice()
	toDelete = local.Difference(remote).ToSlice()
	slices.Sort(toDownload)
	slices.Sort(toDelete)
	return toDownload, toDelete
}

func (r *RemoteManager) downloadObject(ctx context.Context, downloader *manager.Downloader, rel string) error {
	dest := filepath.Join(r.outputPath, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("unable to create folder for s3 download, %s, %w", rel, err)
	}

	f, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("unable to create file for s3 download, %s, %w", rel, err)
	}
	defer os.Remove(f.Name())

	_, err = downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(r.s3Bucket),
		Key:    aws.String(r.s3Prefix + rel),
	})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("unable to download object from s3, %s, %w", rel, err)
	}

	if err := os.Rename(f.Name(), dest); err != nil {
		return fmt.Errorf("unable to move s3 download into place, %s, %w", rel, err)
	}
	return nil
}

// SyncFolder brings the shared tree in line with the bucket and reports whether
// anything changed.
func (r *RemoteManager) SyncFolder(ctx context.Context) (bool, error) {
	localFiles, err := r.getLocalFiles()
	if err != nil {
		return false, err
	}
	remoteFiles, err := r.getRemoteFiles(ctx)
	if err != nil {
		return false, err
	}

	toDownload, toDelete := plan(localFiles, remoteFiles)
	changed := false

	if len(toDelete) > 0 {
		slog.Info("deleting local files", "count", len(toDelete), "names", toDelete)
		for _, rel := range toDelete {
			if err := os.Remove(filepath.Join(r.outputPath, filepath.FromSlash(rel))); err != nil {
				slog.Warn("unable to remove local file", "name", rel, "error", err)
				continue
			}
			changed = true
		}
	}

	if len(toDownload) > 0 {
		slog.Info("adding files", "count", len(toDownload), "names", toDownload)
		downloader := manager.NewDownloader(r.client)
		for _, rel := range toDownload {
			if err := r.downloadObject(ctx, downloader, rel); err != nil {
				slog.Warn("error while downloading s3 object", "name", rel, "error", err)
				continue
			}
			changed = true
		}
	}

	if changed {
		select {
		case r.Updated <- true:
		default:
		}
	}
	return changed, nil
}

func (r *RemoteManager) sync(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, remoteSyncTimeout)
	defer cancel()
	if _, err := r.SyncFolder(ctx); err != nil {
		slog.Warn("error while syncing with remote", "bucket", r.s3Bucket, "error", err)
	}
}

func (r *RemoteManager) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Initial sync
	r.sync(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sync(ctx)
		}
	}
}
