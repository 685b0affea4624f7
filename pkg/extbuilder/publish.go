package extbuilder

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
)

// ParseS3URL splits s3://bucket/some/prefix into bucket and prefix
func ParseS3URL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", eris.Wrapf(err, "Invalid publish URL %s", raw)
	}

	if u.Scheme != "s3" {
		return "", "", eris.Errorf("Invalid publish URL %s, only s3:// is supported", raw)
	}

	if u.Host == "" {
		return "", "", eris.Errorf("Publish URL %s is missing the bucket name", raw)
	}

	return u.Host, strings.Trim(u.Path, "/"), nil
}

// Publish uploads the package and its manifest to the S3 location publishURL
func (b *Builder) Publish(ctx context.Context, publishURL string, artifact *Artifact) error {
	bucket, prefix, err := ParseS3URL(publishURL)
	if err != nil {
		return err
	}

	files := []string{artifact.Path, artifact.ManifestPath}
	if b.Args.DryRun {
		for _, file := range files {
			log(ctx).Info().Msgf("Would upload %s to s3://%s/%s", file, bucket, path.Join(prefix, filepath.Base(file)))
		}
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(b.Config.Publish.Region))
	if err != nil {
		return eris.Wrap(err, "Failed to load AWS configuration")
	}

	uploader := manager.NewUploader(s3.NewFromConfig(awsCfg))
	for _, file := range files {
		key := path.Join(prefix, filepath.Base(file))
		err = uploadFile(ctx, uploader, bucket, key, file)
		if err != nil {
			return err
		}

		log(ctx).Info().Msgf("Uploaded %s to s3://%s/%s", filepath.Base(file), bucket, key)
	}

	return nil
}

func uploadFile(ctx context.Context, uploader *manager.Uploader, bucket, key, file string) error {
	handle, err := os.Open(file)
	if err != nil {
		return eris.Wrapf(err, "Failed to open %s", file)
	}
	defer handle.Close()

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   handle,
	})
	if err != nil {
		return eris.Wrapf(err, "Failed to upload %s to s3://%s/%s", file, bucket, key)
	}

	return nil
}
