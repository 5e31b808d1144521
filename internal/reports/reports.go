/*
Copyright 2025 Cardpilot Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package reports uploads run artifacts to S3 for off-box retention.
package reports

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/korelabs/cardpilot/config"
)

// UploadToS3 pushes a local run summary to the configured bucket under
// summaries/<itemKey>.
func UploadToS3(ctx context.Context, cnf *config.Configuration, filePath, itemKey string) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cnf.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cnf.AwsAccessKeyId, cnf.AwsSecretAccessKey, "")),
	)
	if err != nil {
		return err
	}

	client := s3.NewFromConfig(awsCfg)

	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(cnf.S3BucketName),
		Key:    aws.String(fmt.Sprintf("summaries/%s", itemKey)),
		Body:   file,
	})
	return err
}
