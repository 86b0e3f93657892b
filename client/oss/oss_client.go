package oss

import (
	"bytes"
	"io/ioutil"
	"os"

	"caseflow/common"
	"caseflow/domain/instance"
	"caseflow/session"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/sony/sonyflake"
)

var (
	ArtifactBucket *oss.Bucket

	SaveFileFunc   = SaveFile
	GetFileFunc    = GetFile
	DeleteFileFunc = DeleteFile

	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})
)

func Bootstrap() {
	var err error
	ArtifactBucket, err = BuildBucketFromEnv()
	if err != nil {
		panic(err)
	}
}

// BuildBucketFromEnv OSS_ENDPOINT, OSS_ACCESS_KEY, OSS_SECRET_KEY, OSS_BUCKET
func BuildBucketFromEnv() (*oss.Bucket, error) {
	endpoint := os.ExpandEnv(os.Getenv("OSS_ENDPOINT"))
	if endpoint == "" {
		endpoint = "dummy"
	}
	accessKey := os.Getenv("OSS_ACCESS_KEY")
	secretKey := os.Getenv("OSS_SECRET_KEY")
	bucket := os.Getenv("OSS_BUCKET")
	if bucket == "" {
		bucket = "caseflow"
	}
	return BuildBucket(endpoint, accessKey, secretKey, bucket)
}

func BuildBucket(endpoint, accesskey, secretKey, bucketName string) (*oss.Bucket, error) {
	// endpoint http://oss-cn-hangzhou.aliyuncs.com
	cli, err := oss.New(endpoint, accesskey, secretKey, oss.HTTPClient(nil))
	if err != nil {
		return nil, err
	}
	return cli.Bucket(bucketName)
}

// SaveFile stores the content under a generated object key and returns
// the reference a file-typed property carries.
func SaveFile(name string, content []byte, s *session.Session) (*instance.FileRef, error) {
	id := common.NextId(idWorker).String()

	childSpan := startChildSpan(s, "save-file", id)
	err := ArtifactBucket.PutObject(id, bytes.NewReader(content))
	finishChildSpan(childSpan, err)
	if err != nil {
		return nil, err
	}
	return &instance.FileRef{ID: id, Name: name}, nil
}

func GetFile(id string, s *session.Session) ([]byte, error) {
	childSpan := startChildSpan(s, "get-file", id)
	r, err := ArtifactBucket.GetObject(id)
	finishChildSpan(childSpan, err)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}

func DeleteFile(id string, s *session.Session) error {
	childSpan := startChildSpan(s, "delete-file", id)
	err := ArtifactBucket.DeleteObject(id)
	finishChildSpan(childSpan, err)
	return err
}

func startChildSpan(s *session.Session, op, key string) *opentracing.Span {
	if s == nil || s.Context == nil {
		return nil
	}
	parentSpan := opentracing.SpanFromContext(s.Context)
	if parentSpan == nil {
		return nil
	}
	sp := parentSpan.Tracer().StartSpan(op, opentracing.ChildOf(parentSpan.Context()))
	sp.SetTag("object-key", key)
	return &sp
}

func finishChildSpan(span *opentracing.Span, err error) {
	if span == nil {
		return
	}
	ext.Error.Set(*span, err != nil)
	(*span).Finish()
}
