package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/zonetiles/internal/publish"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var publishCmd = &cobra.Command{
	Use:   "publish path...",
	Short: "Upload MBTiles files or region folders to OSS",
	Long: `Upload packed regions to an Aliyun OSS bucket. Objects already in the
bucket are skipped unless --force is given. Credentials can be supplied with
ZONETILES_PUBLISH_ACCESS_KEY_ID and ZONETILES_PUBLISH_ACCESS_KEY_SECRET.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().String("endpoint", "", "OSS endpoint, e.g. oss-cn-hangzhou.aliyuncs.com")
	publishCmd.Flags().String("bucket", "", "OSS bucket name")
	publishCmd.Flags().String("access-key-id", "", "OSS access key id")
	publishCmd.Flags().String("access-key-secret", "", "OSS access key secret")
	publishCmd.Flags().String("prefix", "", "Object key prefix")
	publishCmd.Flags().Int("concurrency", publish.DefaultConcurrency, "Parallel uploads")
	publishCmd.Flags().Bool("force", false, "Upload objects that already exist")

	bindFlags(publishCmd, [][2]string{
		{"publish.endpoint", "endpoint"},
		{"publish.bucket", "bucket"},
		{"publish.access_key_id", "access-key-id"},
		{"publish.access_key_secret", "access-key-secret"},
		{"publish.prefix", "prefix"},
		{"publish.concurrency", "concurrency"},
		{"publish.force", "force"},
	})
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg := publish.Config{
		Endpoint:        viper.GetString("publish.endpoint"),
		AccessKeyID:     viper.GetString("publish.access_key_id"),
		AccessKeySecret: viper.GetString("publish.access_key_secret"),
		Bucket:          viper.GetString("publish.bucket"),
		Prefix:          viper.GetString("publish.prefix"),
		Concurrency:     viper.GetInt("publish.concurrency"),
		Force:           viper.GetBool("publish.force"),
	}

	if logger == nil {
		initLogging()
	}
	cfg.Logger = logger

	bucket, err := publish.OpenBucket(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return publishPaths(ctx, publish.NewUploader(bucket, cfg), args)
}

func publishPaths(ctx context.Context, u *publish.Uploader, paths []string) error {
	var total publish.Stats
	for _, p := range paths {
		stats, err := u.Upload(ctx, p)
		total.Uploaded += stats.Uploaded
		total.Skipped += stats.Skipped
		total.Bytes += stats.Bytes
		if err != nil {
			return err
		}
		logger.Info("Published", "path", p, "uploaded", stats.Uploaded, "skipped", stats.Skipped,
			"size", humanize.Bytes(uint64(stats.Bytes)))
	}

	logger.Info(fmt.Sprintf("Published %d files (%s), skipped %d",
		total.Uploaded, humanize.Bytes(uint64(total.Bytes)), total.Skipped))
	return nil
}
