// internal/services/contract_service.go
package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/machinesoul11/yg-backend-sub001/internal/config"
)

// ContractService stores executed license agreements: the countersigned
// document captured during the signature step. Keys follow
// agreements/<licenseID>/<uuid>.pdf.
type ContractService struct {
	s3Client *s3.S3
	config   *config.Config
}

type StoredAgreement struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

func NewContractService(config *config.Config) (*ContractService, error) {
	if config.AWS.AccessKeyID == "" {
		// Return service without S3 for local development
		return &ContractService{config: config}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &ContractService{
		s3Client: s3.New(sess),
		config:   config,
	}, nil
}

// StoreAgreement uploads the executed agreement bytes and returns the object
// key recorded on the license.
func (s *ContractService) StoreAgreement(licenseID uuid.UUID, content []byte, contentType string) (*StoredAgreement, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("agreement document is empty")
	}
	if contentType == "" {
		contentType = "application/pdf"
	}

	key := fmt.Sprintf("agreements/%s/%s.pdf", licenseID, uuid.New())

	if s.s3Client == nil {
		// Local development: accept the document, skip the upload
		return &StoredAgreement{Key: key, Size: int64(len(content))}, nil
	}

	_, err := s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:               aws.String(s.config.AWS.S3Bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(content),
		ContentType:          aws.String(contentType),
		ContentLength:        aws.Int64(int64(len(content))),
		ServerSideEncryption: aws.String("AES256"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload agreement: %w", err)
	}

	return &StoredAgreement{Key: key, Size: int64(len(content))}, nil
}

// AgreementURL returns a presigned GET URL for a stored agreement.
func (s *ContractService) AgreementURL(key string, expiry time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("no agreement stored")
	}
	if s.s3Client == nil {
		return "", fmt.Errorf("document storage is not configured")
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign agreement URL: %w", err)
	}
	return url, nil
}
