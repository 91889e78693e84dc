package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	objects map[string][]byte
	err     error
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestLoadS3(t *testing.T) {
	data, err := json.Marshal(DefaultMenu())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	client := &fakeS3{objects: map[string][]byte{"menus/spa/catalog.json": data}}

	c, err := LoadS3(context.Background(), client, "menus", "spa/catalog.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := c.Service("swedish-massage"); !ok {
		t.Fatal("expected indexes rebuilt after load")
	}

	if _, err := LoadS3(context.Background(), client, "menus", "missing.json"); err == nil {
		t.Fatal("expected missing object to fail")
	}
}

func TestLoadS3RejectsInvalidDocument(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{"menus/bad.json": []byte(`{"services":[{"id":"x"}]}`)}}
	if _, err := LoadS3(context.Background(), client, "menus", "bad.json"); err == nil {
		t.Fatal("expected invalid catalog to fail validation")
	}
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://menus/spa/catalog.json")
	if err != nil || bucket != "menus" || key != "spa/catalog.json" {
		t.Fatalf("got %q %q %v", bucket, key, err)
	}
	for _, bad := range []string{"menus/catalog.json", "s3://menus", "s3:///key"} {
		if _, _, err := ParseS3URI(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}
